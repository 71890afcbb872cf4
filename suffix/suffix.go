// Package suffix mints DOI suffixes.
//
// Suffixes are Crockford base32 numbers with a mod 37 check character,
// padded to eight characters and split in groups of four, e.g. "0a1b-c2d3".
// A numeric seed always yields the same suffix; without one a random
// number is drawn and checked against existing DOIs.
package suffix

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

const (
	alphabet       = "0123456789abcdefghjkmnpqrstvwxyz"
	checkAlphabet  = alphabet + "*~$=u"
	length         = 8
	groupSize      = 4
	randomBits     = 30
	DefaultRetries = 10
)

// MaxRandom is the largest number the random path draws.
const MaxRandom = 1<<randomBits - 1

var (
	// ErrChecksum is returned by Decode when the check character does not
	// match.
	ErrChecksum = errors.New("suffix checksum mismatch")
	// ErrExhausted is returned when every random candidate already exists.
	ErrExhausted = errors.New("could not find an unused suffix")
)

// Encode returns the suffix for n.
func Encode(n uint64) string {
	var digits []byte
	for v := n; ; v /= 32 {
		digits = append(digits, alphabet[v%32])
		if v < 32 {
			break
		}
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	s := string(digits) + string(checkAlphabet[n%37])
	if len(s) < length {
		s = strings.Repeat("0", length-len(s)) + s
	}

	var groups []string
	for len(s) > groupSize {
		groups = append(groups, s[:groupSize])
		s = s[groupSize:]
	}
	groups = append(groups, s)
	return strings.Join(groups, "-")
}

// Decode inverts Encode. Hyphens are ignored, input is case-insensitive
// and the Crockford substitutions i, l to 1 and o to 0 are applied.
func Decode(s string) (uint64, error) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	if len(s) < 2 {
		return 0, fmt.Errorf("suffix %q is too short", s)
	}
	body, check := s[:len(s)-1], s[len(s)-1]

	var n uint64
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case 'i', 'l':
			c = '1'
		case 'o':
			c = '0'
		}
		d := strings.IndexByte(alphabet, c)
		if d < 0 {
			return 0, fmt.Errorf("invalid character %q in suffix", body[i])
		}
		if n > (1<<64-1)/32 {
			return 0, fmt.Errorf("suffix %q overflows", s)
		}
		n = n*32 + uint64(d)
	}

	want := strings.IndexByte(checkAlphabet, check)
	if want < 0 || uint64(want) != n%37 {
		return 0, ErrChecksum
	}
	return n, nil
}

// Checker reports whether a DOI is already taken.
type Checker interface {
	Exists(ctx context.Context, doi string) (bool, error)
}

// Generator mints suffixes under a prefix.
type Generator struct {
	checker Checker
	retries int
	random  io.Reader
}

// Option configures a Generator.
type Option func(*Generator)

// WithRetries bounds the random candidates tried per suffix.
func WithRetries(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.retries = n
		}
	}
}

// WithRandom replaces crypto/rand as the source of random numbers.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		g.random = r
	}
}

// NewGenerator creates a Generator. checker may be nil, in which case
// random suffixes are not checked for collisions.
func NewGenerator(checker Checker, opts ...Option) *Generator {
	g := &Generator{checker: checker, retries: DefaultRetries, random: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a full DOI under prefix. prefix may carry a shoulder,
// as in "10.5072/lehigh", which is placed before the suffix. With a seed
// the result is deterministic and not checked for collisions.
func (g *Generator) Generate(ctx context.Context, prefix string, seed *uint64) (string, error) {
	base, err := splitPrefix(prefix)
	if err != nil {
		return "", err
	}
	if seed != nil && *seed > 0 {
		return base + Encode(*seed), nil
	}

	for range g.retries {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := g.draw()
		if err != nil {
			return "", err
		}
		doi := base + Encode(n)
		if g.checker == nil {
			return doi, nil
		}
		taken, err := g.checker.Exists(ctx, doi)
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", doi, err)
		}
		if !taken {
			return doi, nil
		}
	}
	return "", ErrExhausted
}

// GenerateBatch returns size distinct random DOIs.
func (g *Generator) GenerateBatch(ctx context.Context, prefix string, size int) ([]string, error) {
	if size < 1 {
		size = 1
	}
	seen := make(map[string]bool, size)
	out := make([]string, 0, size)
	for attempts := 0; len(out) < size; attempts++ {
		if attempts >= size*g.retries {
			return out, ErrExhausted
		}
		doi, err := g.Generate(ctx, prefix, nil)
		if err != nil {
			return out, err
		}
		if seen[doi] {
			continue
		}
		seen[doi] = true
		out = append(out, doi)
	}
	return out, nil
}

func (g *Generator) draw() (uint64, error) {
	var buf [4]byte
	if _, err := io.ReadFull(g.random, buf[:]); err != nil {
		return 0, fmt.Errorf("reading random bytes: %w", err)
	}
	return uint64(binary.BigEndian.Uint32(buf[:]) & MaxRandom), nil
}

// splitPrefix validates the prefix and returns it with its shoulder and
// the separators the suffix is appended to.
func splitPrefix(s string) (string, error) {
	prefix, shoulder, _ := strings.Cut(strings.TrimSpace(s), "/")
	if !hub.ValidPrefix(prefix) {
		return "", fmt.Errorf("no valid prefix found in %q", s)
	}
	shoulder = strings.Trim(shoulder, "/-")
	if shoulder == "" {
		return prefix + "/", nil
	}
	return prefix + "/" + shoulder + "-", nil
}
