package voice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	promptMarkdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	promptURLPattern          = regexp.MustCompile(`https?://\S+`)
)

// spokenText prepares authored prompt text for a speech host. Catalog files
// may carry light markup; hosts should hear plain words.
func spokenText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = promptMarkdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = promptURLPattern.ReplaceAllString(raw, " ")
	raw = strings.NewReplacer(
		" & ", " and ",
		" / ", " or ",
		"*", " ",
		"_", " ",
		"#", " ",
		"`", " ",
		"~", " ",
		"|", " ",
	).Replace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	pendingSpace := false
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsControl(r), r == '\u200d', r == '\ufe0f':
		case unicode.In(r, unicode.So, unicode.Sk):
			// emoji
		default:
			if pendingSpace {
				if !isClosingPunctuation(r) {
					b.WriteByte(' ')
				}
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isClosingPunctuation(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', ')':
		return true
	default:
		return false
	}
}
