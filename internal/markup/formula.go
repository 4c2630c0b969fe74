// Package markup renders model text for the browser desk.
package markup

import (
	"html"
	"regexp"
)

// subscriptRe matches a count that follows an element symbol or a closing group.
var subscriptRe = regexp.MustCompile(`([A-Za-z)\]])(\d+)`)

// FormulaHTML renders an equation with atom counts as subscripts.
// Leading stoichiometric coefficients stay on the baseline.
//
//	FormulaHTML("2H2 + O2 -> 2H2O") == "2H<sub>2</sub> + O<sub>2</sub> -&gt; 2H<sub>2</sub>O"
func FormulaHTML(equation string) string {
	return subscriptRe.ReplaceAllString(html.EscapeString(equation), "$1<sub>$2</sub>")
}
