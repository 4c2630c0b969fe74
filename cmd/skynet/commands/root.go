package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/app"
	"github.com/snappy-loop/skynet/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "skynet",
	Short: "Chemistry assistant: equation balancing, narration and tutoring",
	Long: `skynet - balance chemical equations with a Gemini model.

Every result is classified as NONE, COLD (H >= 14), HEAT (O >= 16) or
IMPOSSIBLE, and can be read aloud or copied to the clipboard.

Configuration comes from the environment (and a .env file), optionally
overlaid by a YAML file passed with --config or SKYNET_CONFIG.

Examples:
  skynet balance "Fe + O2 -> Fe2O3"
  skynet balance --speak --copy "C5H12 + O2 -> CO2 + H2O"
  skynet chat`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config overlay (default $SKYNET_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setupLogging keeps the terminal quiet unless --verbose or LOG_LEVEL asks otherwise.
func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level := zerolog.WarnLevel
	if l, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && os.Getenv("LOG_LEVEL") != "" {
		level = l
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env")
	}
	path := configPath
	if path == "" {
		path = os.Getenv("SKYNET_CONFIG")
	}
	return config.LoadWithFile(path)
}

func loadApp(ctx context.Context, opts app.Options) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, opts)
}
