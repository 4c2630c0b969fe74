// Package render draws balance reports and chat messages for the terminal.
package render

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/snappy-loop/skynet/internal/models"
)

var stepPrefixRe = regexp.MustCompile(`(?i)^paso \d+: `)

// Theme is the palette of one classification.
type Theme struct {
	Title      string
	AlertTitle string
	Icon       string
	Accent     lipgloss.Color
	Border     lipgloss.Color
}

var themes = map[models.NeutralizationType]Theme{
	models.NeutralizationNone: {
		Title:  "RESULTADO DEL BALANCEO",
		Accent: lipgloss.Color("#60a5fa"),
		Border: lipgloss.Color("#7f1d1d"),
	},
	models.NeutralizationImpossible: {
		Title:      "ERROR: CONTRADICCIÓN",
		AlertTitle: "Neutralización por Contradicción",
		Icon:       "⚠",
		Accent:     lipgloss.Color("#ef4444"),
		Border:     lipgloss.Color("#6b7280"),
	},
	models.NeutralizationCold: {
		Title:      "NEUTRALIZACIÓN POR FRÍO",
		AlertTitle: "Exceso de Hidrógeno (≥14)",
		Icon:       "↓ *",
		Accent:     lipgloss.Color("#67e8f9"),
		Border:     lipgloss.Color("#22d3ee"),
	},
	models.NeutralizationHeat: {
		Title:      "NEUTRALIZACIÓN POR CALOR",
		AlertTitle: "Exceso de Oxígeno (≥16)",
		Icon:       "↑ △",
		Accent:     lipgloss.Color("#fdba74"),
		Border:     lipgloss.Color("#f97316"),
	},
}

// ThemeFor returns the palette for t, falling back to the plain result theme.
func ThemeFor(t models.NeutralizationType) Theme {
	if th, ok := themes[t]; ok {
		return th
	}
	return themes[models.NeutralizationNone]
}

// CleanStep strips a leading "paso N: " from a step.
func CleanStep(step string) string {
	return stepPrefixRe.ReplaceAllString(step, "")
}

// BalancedLabel names the balanced equation depending on solvability.
func BalancedLabel(r *models.BalanceResult) string {
	if r.IsSolvable {
		return "Ecuación Balanceada"
	}
	return "Ecuación Aproximada/Detectada"
}

// Report renders r with styles bound to w's color profile.
func Report(w io.Writer, r *models.BalanceResult) string {
	re := lipgloss.NewRenderer(w)
	th := ThemeFor(r.NeutralizationType)

	title := re.NewStyle().Bold(true).Foreground(th.Accent)
	label := re.NewStyle().Bold(true).Faint(true)
	mono := re.NewStyle().Bold(true).Padding(0, 1)
	italic := re.NewStyle().Italic(true)
	box := re.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(th.Border).Padding(0, 1)

	var lines []string
	lines = append(lines, title.Render(th.Title), "")

	if r.NeutralizationType.HasBanner() {
		alert := re.NewStyle().
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(th.Border).
			PaddingLeft(1)
		head := re.NewStyle().Bold(true).Render(th.AlertTitle)
		if th.Icon != "" {
			head = head + "  " + re.NewStyle().Bold(true).Foreground(th.Accent).Render(th.Icon)
		}
		body := head
		if r.WarningMessage != "" {
			body += "\n" + r.WarningMessage
		}
		lines = append(lines, alert.Render(body), "")
	}

	lines = append(lines, label.Render("Ecuación Original:"), mono.Render(r.UnbalancedEquation), "")

	if r.BalancedEquation != "" {
		lines = append(lines,
			label.Render(BalancedLabel(r)+":"),
			mono.Foreground(th.Accent).Render(r.BalancedEquation),
			"",
			label.Render("Síntesis:"),
			italic.Render(r.Synthesis),
			"",
			label.Render("Explicación:"),
			r.Explanation,
			"",
			label.Render("Pasos Detallados:"),
		)
		for i, step := range r.Steps {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, CleanStep(step)))
		}
	}

	return box.Render(strings.Join(lines, "\n"))
}
