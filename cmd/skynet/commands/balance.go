package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/snappy-loop/skynet/internal/app"
	"github.com/snappy-loop/skynet/internal/clipboard"
	"github.com/snappy-loop/skynet/internal/render"
	"github.com/spf13/cobra"
)

var (
	balanceSpeak bool
	balanceCopy  bool
	balanceJSON  bool
)

var balanceCmd = &cobra.Command{
	Use:   "balance <equation>",
	Short: "Balance a chemical equation",
	Long: `Balance a chemical equation and classify the outcome.

The equation may be given as one quoted argument or as several words.

Examples:
  skynet balance "KMnO4 + HCl -> KCl + MnCl2 + Cl2 + H2O"
  skynet balance --json Fe + O2 -> Fe2O3
  skynet balance --speak --copy "S + NaOH -> Na2S + Na2S2O3 + H2O"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBalance,
}

func init() {
	balanceCmd.Flags().BoolVar(&balanceSpeak, "speak", false, "read the explanation aloud")
	balanceCmd.Flags().BoolVar(&balanceCopy, "copy", false, "copy the balanced equation to the clipboard")
	balanceCmd.Flags().BoolVar(&balanceJSON, "json", false, "print the raw result as JSON")
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	equation := strings.Join(args, " ")
	if !balanceJSON {
		fmt.Fprintln(out, render.Dim(out, "Procesando..."))
	}

	result, err := a.Balancer.Balance(cmd.Context(), equation)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), render.Error(out, err.Error()))
		return err
	}

	if balanceJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprintln(out, render.Report(out, result))
	}

	if balanceCopy {
		if clipboard.Copy(out, result.BalancedEquation) {
			fmt.Fprintln(out, render.Dim(out, "Copiado al portapapeles."))
		}
	}

	if balanceSpeak {
		pb, _, err := a.Narrator.Speak(cmd.Context(), result)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), render.Error(out, err.Error()))
			return err
		}
		fmt.Fprintln(out, render.Dim(out, fmt.Sprintf("Reproduciendo %.1fs de audio...", pb.Buffer.Duration().Seconds())))
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
			fmt.Fprintln(out, render.Dim(out, "Narración guardada en "+path))
		}
	}
	return nil
}
