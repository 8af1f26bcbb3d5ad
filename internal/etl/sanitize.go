package etl

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]+>`)
	urlPattern   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// SanitizeText prepares post text for embedding: HTML entities are resolved,
// tags, URLs and email addresses stripped, non-printable and non-ASCII
// characters dropped, and whitespace collapsed to single spaces.
func SanitizeText(text string) string {
	t := html.UnescapeString(text)
	t = tagPattern.ReplaceAllString(t, " ")
	t = urlPattern.ReplaceAllString(t, " ")
	t = emailPattern.ReplaceAllString(t, " ")

	var b strings.Builder
	b.Grow(len(t))
	for _, r := range t {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}

	t = spacePattern.ReplaceAllString(b.String(), " ")
	return strings.TrimSpace(t)
}
