package llm

import (
	"context"
	"fmt"
	"iter"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/chat"
	"github.com/snappy-loop/skynet/internal/contract"
	unifiedgenai "google.golang.org/genai"
)

// StartConversation opens a stateful Gemini chat session with the tutor persona.
// History lives in the session; each turn sends only the new user text.
func (c *Client) StartConversation(ctx context.Context) (chat.Conversation, error) {
	if c.unifiedClient == nil {
		return nil, ErrNotConfigured
	}
	config := &unifiedgenai.GenerateContentConfig{
		SystemInstruction: unifiedgenai.NewContentFromText(contract.ChatSystemInstruction, unifiedgenai.RoleUser),
	}
	session, err := c.unifiedClient.Chats.Create(ctx, c.modelChat, config, nil)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	log.Debug().Str("model", c.modelChat).Msg("Chat session created")
	return &conversation{session: session, model: c.modelChat}, nil
}

type conversation struct {
	session *unifiedgenai.Chat
	model   string
}

// SendStream sends text and yields the reply fragments in arrival order.
func (cv *conversation) SendStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		log.Debug().Str("model", cv.model).Str("text", preview(text, maxPreviewGraphemes)).Msg("Chat turn sent")
		chunks := 0
		for resp, err := range cv.session.SendMessageStream(ctx, unifiedgenai.Part{Text: text}) {
			if err != nil {
				yield("", fmt.Errorf("chat stream: %w", err))
				return
			}
			fragment := resp.Text()
			if fragment == "" {
				continue
			}
			chunks++
			if !yield(fragment, nil) {
				return
			}
		}
		log.Debug().Str("model", cv.model).Int("chunks", chunks).Msg("Chat turn streamed")
	}
}
