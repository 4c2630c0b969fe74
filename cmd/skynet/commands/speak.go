package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/snappy-loop/skynet/internal/app"
	"github.com/spf13/cobra"
)

var speakFile string

var speakCmd = &cobra.Command{
	Use:   "speak",
	Short: "Play a base64 PCM speech payload",
	Long: `Decode a base64 payload of 16-bit little-endian mono PCM at 24 kHz and play it
through the narration devices.

Examples:
  skynet speak --file payload.b64
  cat payload.b64 | skynet speak --file -`,
	Args: cobra.NoArgs,
	RunE: runSpeak,
}

func init() {
	speakCmd.Flags().StringVarP(&speakFile, "file", "f", "", "payload file, - for stdin")
	speakCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(speakCmd)
}

func runSpeak(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if speakFile == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(speakFile)
	}
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	a, err := loadApp(cmd.Context(), app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	pb, err := a.Player.Play(cmd.Context(), strings.TrimSpace(string(data)))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Playing %d samples (%.2fs)\n", pb.Buffer.Len(), pb.Buffer.Duration().Seconds())
	select {
	case <-pb.Done():
	case <-cmd.Context().Done():
		pb.Stop()
		<-pb.Done()
	}
	if err := pb.Wait(); err != nil {
		return err
	}
	if path := a.Files.Last(); path != "" {
		fmt.Fprintf(out, "Saved to %s\n", path)
	}
	return nil
}
