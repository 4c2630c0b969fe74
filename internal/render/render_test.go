package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/snappy-loop/skynet/internal/models"
)

func TestCleanStep(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Paso 1: Contar átomos", "Contar átomos"},
		{"paso 12: Ajustar", "Ajustar"},
		{"Contar átomos", "Contar átomos"},
		{"Paso uno: x", "Paso uno: x"},
	}
	for _, tt := range tests {
		if got := CleanStep(tt.in); got != tt.want {
			t.Errorf("CleanStep(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReport(t *testing.T) {
	tests := []struct {
		name    string
		in      models.BalanceResult
		want    []string
		notWant []string
	}{
		{
			name: "plain result",
			in: models.BalanceResult{
				UnbalancedEquation: "H2 + O2 -> H2O",
				BalancedEquation:   "2H2 + O2 -> 2H2O",
				Synthesis:          "síntesis",
				Explanation:        "explicación",
				Steps:              []string{"Paso 1: contar"},
				IsSolvable:         true,
				NeutralizationType: models.NeutralizationNone,
			},
			want:    []string{"RESULTADO DEL BALANCEO", "Ecuación Balanceada:", "2H2 + O2 -> 2H2O", "1. contar"},
			notWant: []string{"Paso 1:", "Exceso"},
		},
		{
			name: "cold approximation",
			in: models.BalanceResult{
				UnbalancedEquation: "C8H18 + O2",
				BalancedEquation:   "~",
				IsSolvable:         false,
				NeutralizationType: models.NeutralizationCold,
				WarningMessage:     "Congelación",
			},
			want: []string{"NEUTRALIZACIÓN POR FRÍO", "Exceso de Hidrógeno (≥14)", "↓ *", "Congelación", "Ecuación Aproximada/Detectada:"},
		},
		{
			name: "heat",
			in:   models.BalanceResult{NeutralizationType: models.NeutralizationHeat, BalancedEquation: "x", IsSolvable: true},
			want: []string{"NEUTRALIZACIÓN POR CALOR", "↑ △"},
		},
		{
			name:    "impossible without equation hides details",
			in:      models.BalanceResult{UnbalancedEquation: "Au -> Fe", Synthesis: "nada", NeutralizationType: models.NeutralizationImpossible},
			want:    []string{"ERROR: CONTRADICCIÓN", "Neutralización por Contradicción", "Au -> Fe"},
			notWant: []string{"Síntesis:", "Pasos Detallados:"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			out := Report(&buf, &tt.in)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("report missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("report should not contain %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestSpeaker(t *testing.T) {
	var buf bytes.Buffer
	if got := Speaker(&buf, models.RoleUser); !strings.Contains(got, "Tú:") {
		t.Errorf("Speaker(user) = %q", got)
	}
	if got := Speaker(&buf, models.RoleModel); !strings.Contains(got, "Skynet:") {
		t.Errorf("Speaker(model) = %q", got)
	}
}

func TestTint(t *testing.T) {
	var buf bytes.Buffer
	// A bytes.Buffer has no colour profile, so the text comes back unstyled.
	if got := Tint(&buf, ThemeFor(models.NeutralizationHeat), "HEAT"); got != "HEAT" {
		t.Errorf("Tint() = %q", got)
	}
}
