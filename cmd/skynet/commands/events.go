package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/snappy-loop/skynet/internal/kafka"
	"github.com/snappy-loop/skynet/internal/models"
	"github.com/snappy-loop/skynet/internal/render"
	"github.com/spf13/cobra"
)

var eventsGroup string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail balance events from Kafka",
	Long: `Print one line per completed balance request published to KAFKA_TOPIC_EVENTS.

Without --group the tail starts at the newest offset and commits nothing.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVarP(&eventsGroup, "group", "g", "", "consumer group id")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.KafkaEnabled() {
		return errors.New("KAFKA_BROKERS is not set")
	}

	out := cmd.OutOrStdout()
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopicEvents, eventsGroup, func(ctx context.Context, e *models.BalanceEvent) error {
		fmt.Fprintln(out, formatEvent(out, e))
		return nil
	})
	defer consumer.Close()

	if err := consumer.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func formatEvent(w io.Writer, e *models.BalanceEvent) string {
	theme := render.ThemeFor(e.NeutralizationType)
	balanced := e.BalancedEquation
	if balanced == "" {
		balanced = "-"
	}
	line := fmt.Sprintf("%s  %-10s  %s => %s", e.CompletedAt.Local().Format("15:04:05"), e.NeutralizationType, e.Equation, balanced)
	if e.Cached {
		line += "  (cache)"
	}
	return render.Tint(w, theme, line)
}
