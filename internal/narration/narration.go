// Package narration turns a balance result into the Spanish script read aloud by the narrator.
package narration

import (
	"strings"

	"github.com/snappy-loop/skynet/internal/models"
)

// Defaults used when the model omits the warning for a classified result.
const (
	DefaultImpossibleWarning = "Contradicción por frio"
	DefaultColdWarning       = "Exceso de Hidrógeno detectado"
	DefaultHeatWarning       = "Exceso de Oxígeno detectado"
)

const (
	impossibleIntro = "Atención. Error crítico de sistema. Ecuación imposible. "
	coldIntro       = "Atención. Protocolo de Neutralización por Frío activado. Flecha hacia abajo y asterisco. "
	heatIntro       = "Atención. Protocolo de Neutralización por Calor activado. Flecha hacia arriba y triángulo. "
)

// Compose builds the narration script for r. The output depends only on r.
func Compose(r *models.BalanceResult) string {
	if r == nil {
		return ""
	}
	var b strings.Builder

	switch r.NeutralizationType {
	case models.NeutralizationImpossible:
		alert(&b, impossibleIntro, r.WarningMessage, DefaultImpossibleWarning)
	case models.NeutralizationCold:
		alert(&b, coldIntro, r.WarningMessage, DefaultColdWarning)
	case models.NeutralizationHeat:
		alert(&b, heatIntro, r.WarningMessage, DefaultHeatWarning)
	}

	b.WriteString("Explicación del proceso: ")
	b.WriteString(r.Explanation)
	b.WriteString(". Pasos realizados: ")
	b.WriteString(strings.Join(r.Steps, ". "))
	b.WriteString(". ")

	if r.IsSolvable || r.BalancedEquation != "" {
		b.WriteString("Sintetizando resultados: ")
		b.WriteString(r.Synthesis)
		b.WriteString(". Por lo tanto, el resultado final de la ecuación balanceada es: ")
		b.WriteString(r.BalancedEquation)
		b.WriteString(".")
	}
	return b.String()
}

func alert(b *strings.Builder, intro, warning, fallback string) {
	b.WriteString(intro)
	if warning == "" {
		warning = fallback
	}
	b.WriteString(warning)
	b.WriteString(". ")
}
