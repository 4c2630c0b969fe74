package markup

import "testing"

func TestReplyHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "  \n", ""},
		{"bold", "Hola **mundo**", "Hola <b>mundo</b>"},
		{"escapes html", "<script>x</script>", "&lt;script&gt;x&lt;/script&gt;"},
		{"unordered list", "Pasos:\n- uno\n- *dos*\nFin", "Pasos:<br><ul><li>uno</li><li><i>dos</i></li></ul>Fin"},
		{"ordered list", "1. a\n2. b", "<ol><li>a</li><li>b</li></ol>"},
		{"code block", "Mira:\n```\nH2 + O2\n```", "Mira:<br><pre>H2 + O2</pre>"},
		{"inline code", "usa `O2`", "usa <code>O2</code>"},
		{"header", "## Moles\ntexto", "<b>Moles</b><br>texto"},
		{"arithmetic asterisks", "2 * 3 * 4", "2 * 3 * 4"},
		{"paragraphs", "uno\n\ndos", "uno<br><br>dos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReplyHTML(tt.in); got != tt.want {
				t.Errorf("ReplyHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormulaHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2H2 + O2 -> 2H2O", "2H<sub>2</sub> + O<sub>2</sub> -&gt; 2H<sub>2</sub>O"},
		{"Fe2(SO4)3", "Fe<sub>2</sub>(SO<sub>4</sub>)<sub>3</sub>"},
		{"C + O2", "C + O<sub>2</sub>"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormulaHTML(tt.in); got != tt.want {
			t.Errorf("FormulaHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
