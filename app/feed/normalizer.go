package feed

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxTitleBytes caps post titles; Lemmy rejects longer ones.
const MaxTitleBytes = 200

var (
	tagRE        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// NormalizeTitle strips markup and HTML entities from a raw entry title
// and collapses whitespace. The result is NFC-normalized so that
// visually identical titles hash identically.
func NormalizeTitle(title string) string {
	title = tagRE.ReplaceAllString(title, "")
	title = html.UnescapeString(title)
	title = whitespaceRE.ReplaceAllString(title, " ")
	return norm.NFC.String(strings.TrimSpace(title))
}

// TrimTitle shortens a title to at most maxBytes bytes, cutting at a
// word boundary and appending an ellipsis. Multi-byte runes are never
// split.
func TrimTitle(title string, maxBytes int) string {
	if len(title) <= maxBytes {
		return title
	}

	budget := maxBytes - 3 // room for "..."
	trimmed := ""
	byteCount := 0
	for _, r := range title {
		runeBytes := len(string(r))
		if byteCount+runeBytes > budget {
			break
		}
		trimmed += string(r)
		byteCount += runeBytes
	}

	if idx := strings.LastIndexAny(trimmed, " \t"); idx > 0 {
		trimmed = trimmed[:idx]
	}

	return trimmed + "..."
}
