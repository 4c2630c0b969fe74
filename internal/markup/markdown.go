package markup

import (
	"html"
	"regexp"
	"strings"
)

var (
	codeBlockRe  = regexp.MustCompile("(?s)```[a-z]*\n?(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
	boldRe       = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicRe     = regexp.MustCompile(`(^|[^*\w])\*([^*\s][^*\n]*?)\*`)
	headerRe     = regexp.MustCompile(`^#{1,4} (.+)$`)
	ulItemRe     = regexp.MustCompile(`^\s*[-*+]\s+(.*)$`)
	olItemRe     = regexp.MustCompile(`^\s*\d+\.\s+(.*)$`)
)

// ReplyHTML converts a tutor reply written in light markdown to HTML for the desk.
// Supported: fenced and inline code, bold, italic, #-headers and flat lists.
// All text is escaped before any tag is produced.
func ReplyHTML(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	text = html.EscapeString(text)

	// Code blocks are cut out first so their content is left alone.
	var blocks []string
	text = codeBlockRe.ReplaceAllStringFunc(text, func(m string) string {
		blocks = append(blocks, "<pre>"+strings.Trim(codeBlockRe.FindStringSubmatch(m)[1], "\n")+"</pre>")
		return "\x00"
	})

	var out strings.Builder
	list := ""
	closeList := func() {
		if list != "" {
			out.WriteString("</" + list + ">")
			list = ""
		}
	}
	openList := func(tag string) {
		if list != tag {
			closeList()
			out.WriteString("<" + tag + ">")
			list = tag
		}
	}

	restore := func(s string) string {
		for strings.Contains(s, "\x00") && len(blocks) > 0 {
			s = strings.Replace(s, "\x00", blocks[0], 1)
			blocks = blocks[1:]
		}
		return s
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		switch {
		case line == "\x00":
			closeList()
			out.WriteString(restore(line))
		case ulItemRe.MatchString(line):
			openList("ul")
			out.WriteString("<li>" + inline(ulItemRe.FindStringSubmatch(line)[1]) + "</li>")
		case olItemRe.MatchString(line):
			openList("ol")
			out.WriteString("<li>" + inline(olItemRe.FindStringSubmatch(line)[1]) + "</li>")
		case headerRe.MatchString(line):
			closeList()
			out.WriteString("<b>" + inline(headerRe.FindStringSubmatch(line)[1]) + "</b><br>")
		case strings.TrimSpace(line) == "":
			if list != "" {
				continue
			}
			if i > 0 && i < len(lines)-1 {
				out.WriteString("<br>")
			}
		default:
			closeList()
			out.WriteString(restore(inline(line)))
			if i < len(lines)-1 {
				out.WriteString("<br>")
			}
		}
	}
	closeList()
	return out.String()
}

// inline handles spans inside one already escaped line.
func inline(s string) string {
	s = inlineCodeRe.ReplaceAllString(s, "<code>$1</code>")
	s = boldRe.ReplaceAllString(s, "<b>$1</b>")
	s = italicRe.ReplaceAllString(s, "$1<i>$2</i>")
	return s
}
