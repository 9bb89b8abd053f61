package email

import (
	"html"
	"regexp"
	"strings"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)
	tagPattern         = regexp.MustCompile(`<[^>]*>`)
	blankLinesPattern  = regexp.MustCompile(`\n{3,}`)
)

// Render replaces {{key}} markers in body with HTML-escaped values from vars.
// Unknown keys render as the empty string.
func Render(body string, vars map[string]string) string {
	return substitute(body, vars, html.EscapeString)
}

// RenderPlain substitutes without escaping. Used for subject lines.
func RenderPlain(body string, vars map[string]string) string {
	return substitute(body, vars, func(s string) string { return s })
}

func substitute(body string, vars map[string]string, escape func(string) string) string {
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		return escape(vars[key])
	})
}

// PlainText derives a text/plain alternative from rendered HTML.
func PlainText(htmlBody string) string {
	s := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n\n", "</li>", "\n").Replace(htmlBody)
	s = html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(blankLinesPattern.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
