package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/snappy-loop/skynet/internal/app"
	"github.com/snappy-loop/skynet/internal/chat"
	"github.com/snappy-loop/skynet/internal/models"
	"github.com/snappy-loop/skynet/internal/render"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the chemistry tutor",
	Long: `Open an interactive session with the Skynet tutor. Replies stream as they
arrive. Type /salir (or press Ctrl-D) to close the session.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	printer := &replyPrinter{w: out}
	cancel := a.Chat.Watch(printer.update)
	defer cancel()

	if err := a.Chat.Open(cmd.Context()); err != nil {
		return fmt.Errorf("open chat session: %w", err)
	}
	defer a.Chat.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(out, render.Speaker(out, models.RoleUser)+" ")
		var line string
		select {
		case <-cmd.Context().Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = l
		}
		if strings.TrimSpace(line) == "/salir" {
			return nil
		}

		err := a.Chat.SendTurn(cmd.Context(), line)
		var streamErr *chat.StreamError
		switch {
		case err == nil, errors.As(err, &streamErr):
			// The printer has already shown the reply or the apology.
		case errors.Is(err, chat.ErrEmptyTurn):
			continue
		default:
			fmt.Fprintln(out, render.Error(out, err.Error()))
		}
	}
}

// replyPrinter streams the model reply to w as fragments land in the transcript.
type replyPrinter struct {
	w io.Writer

	mu      sync.Mutex
	printed int
}

func (p *replyPrinter) update(u chat.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(u.Transcript) == 0 {
		return
	}
	last := u.Transcript[len(u.Transcript)-1]

	switch u.Kind {
	case "open":
		fmt.Fprintf(p.w, "%s %s\n", render.Speaker(p.w, models.RoleModel), last.Content)
	case "placeholder":
		p.printed = 0
		fmt.Fprint(p.w, render.Speaker(p.w, models.RoleModel)+" ")
	case "fragment":
		if len(last.Content) > p.printed {
			fmt.Fprint(p.w, last.Content[p.printed:])
			p.printed = len(last.Content)
		}
	case "commit":
		fmt.Fprintln(p.w)
	case "fail":
		if p.printed > 0 {
			fmt.Fprintln(p.w)
		}
		fmt.Fprintln(p.w, render.Error(p.w, last.Content))
	}
}
