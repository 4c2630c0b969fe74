package llm

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rivo/uniseg"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"google.golang.org/api/option"
	unifiedgenai "google.golang.org/genai"
)

// maxGeminiResponseLogBytes is the max length of a Gemini response body to log in full (to avoid huge logs).
const maxGeminiResponseLogBytes = 8192

// maxPreviewGraphemes bounds chat text previews in logs.
const maxPreviewGraphemes = 80

// Balance backends selectable with GEMINI_BALANCE_BACKEND.
const (
	BackendGenAI     = "genai"
	BackendLegacy    = "legacy"
	BackendLangChain = "langchain"
)

// httpClientForEndpoint returns an http.Client that rewrites request URLs to the given base endpoint (e.g. http://host.docker.internal:31300/gemini).
func httpClientForEndpoint(baseEndpoint string) *http.Client {
	base, err := url.Parse(baseEndpoint)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", baseEndpoint).Msg("Invalid GEMINI_API_ENDPOINT, using default")
		return nil
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	return &http.Client{
		Transport: &endpointRoundTripper{base: base, next: http.DefaultTransport},
	}
}

// endpointRoundTripper rewrites request URLs to a custom base (scheme, host, path prefix).
type endpointRoundTripper struct {
	base *url.URL
	next http.RoundTripper
}

func (e *endpointRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.URL.Scheme = e.base.Scheme
	req2.URL.Host = e.base.Host
	req2.URL.Path = path.Join(e.base.Path, strings.TrimPrefix(req.URL.Path, "/"))
	if req.URL.RawQuery != "" {
		req2.URL.RawQuery = req.URL.RawQuery
	}
	return e.next.RoundTrip(req2)
}

// logGeminiResponse logs Gemini response text, truncating if over maxGeminiResponseLogBytes.
func logGeminiResponse(caller, raw string) {
	if len(raw) <= maxGeminiResponseLogBytes {
		log.Info().Str("caller", caller).Str("gemini_response", raw).Msg("Gemini response")
		return
	}
	log.Info().
		Str("caller", caller).
		Str("gemini_response", raw[:maxGeminiResponseLogBytes]+"... [truncated]").
		Int("gemini_response_len", len(raw)).
		Msg("Gemini response")
}

// preview shortens s to at most n grapheme clusters for logging.
func preview(s string, n int) string {
	if uniseg.GraphemeClusterCount(s) <= n {
		return s
	}
	var b strings.Builder
	gr := uniseg.NewGraphemes(s)
	for i := 0; i < n && gr.Next(); i++ {
		b.WriteString(gr.Str())
	}
	b.WriteString("…")
	return b.String()
}

// Options configures the Gemini clients.
type Options struct {
	APIKey         string
	Endpoint       string // optional base URL; all Gemini calls use it when set
	ModelBalance   string // e.g. gemini-2.5-pro
	ModelChat      string // e.g. gemini-2.5-flash
	ModelTTS       string // e.g. gemini-2.5-flash-preview-tts
	TTSVoice       string // prebuilt voice, e.g. Kore
	BalanceBackend string // genai, legacy or langchain
}

// Client wraps the Gemini SDKs used by the balancer, the chat and the narrator.
type Client struct {
	modelBalance   string
	modelChat      string
	modelTTS       string
	ttsVoice       string
	balanceBackend string
	llmBalance     llms.Model           // langchaingo backend
	genaiClient    *genai.Client        // generative-ai-go backend with response schema
	unifiedClient  *unifiedgenai.Client // unified genai SDK: default backend, chat and TTS
}

// NewClient creates a new LLM client. Backends that fail to initialize are
// logged and left nil; calls that need them return an error.
func NewClient(opts Options) *Client {
	if opts.ModelBalance == "" {
		opts.ModelBalance = "gemini-2.5-pro"
	}
	if opts.ModelChat == "" {
		opts.ModelChat = "gemini-2.5-flash"
	}
	if opts.ModelTTS == "" {
		opts.ModelTTS = "gemini-2.5-flash-preview-tts"
	}
	if opts.TTSVoice == "" {
		opts.TTSVoice = "Kore"
	}
	if opts.BalanceBackend == "" {
		opts.BalanceBackend = BackendGenAI
	}

	c := &Client{
		modelBalance:   opts.ModelBalance,
		modelChat:      opts.ModelChat,
		modelTTS:       opts.ModelTTS,
		ttsVoice:       opts.TTSVoice,
		balanceBackend: opts.BalanceBackend,
	}
	if opts.APIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, LLM calls will fail")
		return c
	}

	// Unified genai client: structured balance output, chat sessions and TTS
	unifiedCfg := &unifiedgenai.ClientConfig{APIKey: opts.APIKey, Backend: unifiedgenai.BackendGeminiAPI}
	if opts.Endpoint != "" {
		unifiedCfg.HTTPOptions = unifiedgenai.HTTPOptions{BaseURL: opts.Endpoint}
	}
	unifiedClient, err := unifiedgenai.NewClient(context.Background(), unifiedCfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize unified genai client")
	}
	c.unifiedClient = unifiedClient

	switch opts.BalanceBackend {
	case BackendLegacy:
		genaiOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
		if opts.Endpoint != "" {
			genaiOpts = append(genaiOpts, option.WithEndpoint(opts.Endpoint))
		}
		c.genaiClient, err = genai.NewClient(context.Background(), genaiOpts...)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize genai client for balancing")
		}
	case BackendLangChain:
		lcOpts := []googleai.Option{googleai.WithAPIKey(opts.APIKey), googleai.WithDefaultModel(opts.ModelBalance)}
		if opts.Endpoint != "" {
			if hc := httpClientForEndpoint(opts.Endpoint); hc != nil {
				lcOpts = append(lcOpts, googleai.WithHTTPClient(hc))
			}
		}
		llmBalance, err := googleai.New(context.Background(), lcOpts...)
		if err != nil {
			log.Error().Err(err).Str("model", opts.ModelBalance).Msg("Failed to initialize langchaingo model")
		} else {
			c.llmBalance = llmBalance
		}
	}

	log.Info().
		Str("model_balance", c.modelBalance).
		Str("model_chat", c.modelChat).
		Str("model_tts", c.modelTTS).
		Str("tts_voice", c.ttsVoice).
		Str("balance_backend", c.balanceBackend).
		Str("api_endpoint", opts.Endpoint).
		Bool("unified_client", c.unifiedClient != nil).
		Msg("LLM client initialized")

	return c
}

// Close releases the legacy client connection, if any.
func (c *Client) Close() error {
	if c.genaiClient != nil {
		return c.genaiClient.Close()
	}
	return nil
}
