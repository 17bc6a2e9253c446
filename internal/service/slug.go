package service

import (
	"crypto/sha256"
	"encoding/binary"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Base62 character set for generated slugs
const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// slugPattern constrains custom slugs: URL-safe, 3-50 chars.
var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

// SlugGenerator produces deterministic short slugs from destination URLs.
type SlugGenerator struct {
	slugLength int
	maxRetries int
}

// NewSlugGenerator creates a new slug generator
func NewSlugGenerator(slugLength, maxRetries int) *SlugGenerator {
	return &SlugGenerator{slugLength: slugLength, maxRetries: maxRetries}
}

// ValidateSlug reports whether a custom slug is acceptable.
func ValidateSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// Canonicalize normalizes a destination URL for hashing and comparison.
// It lowercases the host, removes default ports, strips a trailing slash
// and removes URL fragments.
func Canonicalize(longURL string) (string, error) {
	u, err := url.Parse(longURL)
	if err != nil {
		return "", err
	}
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""

	return u.String(), nil
}

// hashURL maps a canonicalized URL to a uint64 via sha256.
func hashURL(s string) uint64 {
	h := sha256.Sum256([]byte(s))
	return binary.BigEndian.Uint64(h[:8])
}

// Generate creates a slug candidate from the destination URL and attempt
// number. Different attempts hash to different candidates so callers can
// retry on collision.
func (g *SlugGenerator) Generate(longURL string, attempt int) (string, error) {
	c, err := Canonicalize(longURL)
	if err != nil {
		return "", ErrInvalidURL
	}
	s := EncodeBase62(hashURL(c + "|" + strconv.Itoa(attempt)))
	if len(s) < g.slugLength {
		return "", ErrSlugGeneration
	}
	return s[:g.slugLength], nil
}

// EncodeBase62 encodes a number to Base62 string
func EncodeBase62(num uint64) string {
	if num == 0 {
		return string(base62Chars[0])
	}
	encoded := ""
	for num > 0 {
		remainder := num % 62
		encoded = string(base62Chars[remainder]) + encoded
		num = num / 62
	}
	return encoded
}
