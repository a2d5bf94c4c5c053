// Package slug turns snippet titles into unique, URL-safe identifiers.
//
// Slugify is pure. Allocate adds the uniqueness step: it probes candidates
// "base", "base-1", "base-2", ... against a caller-supplied existence check
// until it finds a free one. The database's UNIQUE(slug) constraint is still
// the final arbiter; callers retry Allocate when an insert loses a race.
package slug

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxBaseLength caps the base slug, leaving room for a numeric suffix
// within 250 characters. The slug column itself is unbounded TEXT.
const MaxBaseLength = 240

// maxAttempts bounds the suffix search. Reaching it means something is badly
// wrong with the existence check (e.g. it always returns true).
const maxAttempts = 10000

// ErrExhausted is returned when no free candidate was found within maxAttempts.
var ErrExhausted = errors.New("slug: no free candidate found")

// ExistsFunc reports whether a slug is already taken.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Slugify normalises a title into a base slug.
//
// Accented letters are folded to their ASCII base ("Café" → "cafe"), the
// result is lowercased, every run of other characters becomes a single hyphen,
// and leading/trailing hyphens are trimmed.
//
//	Slugify("Hello World!!")   → "hello-world"
//	Slugify("  3D -- Cube  ") → "3d-cube"
//	Slugify("!!!")             → ""
func Slugify(title string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))),
		title,
	)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false

	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	s := b.String()
	if len(s) > MaxBaseLength {
		s = strings.TrimRight(s[:MaxBaseLength], "-")
	}
	return s
}

// Allocate returns the first candidate in base, base-1, base-2, ... for
// which exists reports false.
func Allocate(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	if base == "" {
		return "", errors.New("slug: empty base")
	}

	candidate := base
	for n := 1; n <= maxAttempts; n++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("slug: checking %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}

	return "", ErrExhausted
}
