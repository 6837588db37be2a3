package service

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"blogshive/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLen      = 80
	slugAttempts    = 20
	fallbackSlugVal = "post"
)

// Slugify lowercases title, strips diacritics and joins alphanumeric runs with hyphens.
func Slugify(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}

	slug := b.String()
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return fallbackSlugVal
	}
	return slug
}

// uniqueSlug returns Slugify(title), suffixed -2, -3, ... when taken. After
// slugAttempts collisions it falls back to a short random suffix.
func uniqueSlug(ctx context.Context, posts repository.PostRepository, title string) (string, error) {
	base := Slugify(title)
	candidate := base
	for i := 2; i <= slugAttempts+1; i++ {
		taken, err := posts.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
	return base + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8], nil
}
