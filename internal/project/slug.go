package project

import (
	"strings"
	"time"
	"unicode"
)

// NameMaxLength is the maximum length for auto-generated project names.
const NameMaxLength = 50

// NameFromPrompt derives a human-readable project name from the first user
// prompt when the user has not supplied one.
// Rules:
// - Max 50 characters (runes, not bytes - supports UTF-8)
// - Truncates at word boundary if possible
// - Adds "..." if truncated
func NameFromPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "Untitled Project"
	}

	runes := []rune(prompt)
	if len(runes) <= NameMaxLength {
		return prompt
	}

	truncated := string(runes[:NameMaxLength])
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > NameMaxLength/2 {
		truncated = truncated[:lastSpace]
	}

	return strings.TrimSpace(truncated) + "..."
}

// MintSlug derives a URL-safe identifier from a project name plus a
// timestamp-based disambiguator. Slugs are minted once on insert and preserved
// by updates, so bookmarked project URLs survive renames.
func MintSlug(name string, now time.Time) string {
	base := slugify(name)
	if base == "" {
		base = "project"
	}
	return base + "-" + now.UTC().Format("20060102150405")
}

// slugify lowercases the name and collapses every non-alphanumeric run into a
// single hyphen.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			// Keep ASCII only; non-ASCII letters would need transliteration
			// and the timestamp suffix already guarantees uniqueness.
			if r < 128 {
				b.WriteRune(r)
				lastHyphen = false
			}
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
