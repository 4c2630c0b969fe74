// Package clipboard copies text to the user's clipboard through the terminal
// using OSC 52, which also works over SSH.
package clipboard

import (
	"io"
	"os"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/rs/zerolog/log"
)

// Copy writes text to the clipboard via w. Failures are logged and reported
// as false; an empty text is a no-op.
func Copy(w io.Writer, text string) bool {
	if text == "" {
		return false
	}
	seq := osc52.New(text)
	if os.Getenv("TMUX") != "" {
		seq = seq.Tmux()
	} else if strings.HasPrefix(os.Getenv("TERM"), "screen") {
		seq = seq.Screen()
	}
	if _, err := seq.WriteTo(w); err != nil {
		log.Warn().Err(err).Msg("Failed to copy text")
		return false
	}
	log.Debug().Int("length", len(text)).Msg("Copied to clipboard")
	return true
}
