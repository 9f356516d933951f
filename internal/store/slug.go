package store

import (
	"strings"

	"github.com/google/uuid"
)

// slugify lowercases a title and reduces it to hyphen-separated word
// characters, capped at 60 chars.
func slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		if b.Len() >= 60 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}

// newSlug builds a URL slug from a bundle title plus a short random suffix to
// keep slugs unique without a global sequence.
func newSlug(title string) string {
	base := slugify(title)
	suffix := uuid.New().String()[:6]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
