package service

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strings"

	"github.com/jptrhost/pelican-dns/internal/models"
)

const (
	labelAlphabet       = "abcdefghijklmnopqrstuvwxyz0123456789"
	maxLabelLength      = 63
	maxSuffixLength     = maxLabelLength - 1
	DefaultSuffixLength = 12
)

var invalidLabelChars = regexp.MustCompile(`[^a-z0-9-]+`)

// NameGenerator derives a random, DNS-safe subdomain from a server name.
// Collisions are not checked against the provider.
type NameGenerator struct {
	ParentDomain string
	SuffixLength int
	Rand         io.Reader // crypto/rand.Reader when nil
}

// NewNameGenerator returns a generator for parentDomain. A suffixLength below
// 1 selects DefaultSuffixLength; one too long for a DNS label is capped.
func NewNameGenerator(parentDomain string, suffixLength int) *NameGenerator {
	if suffixLength < 1 {
		suffixLength = DefaultSuffixLength
	}
	if suffixLength > maxSuffixLength {
		suffixLength = maxSuffixLength
	}
	return &NameGenerator{ParentDomain: parentDomain, SuffixLength: suffixLength}
}

// Label lower-cases serverName, replaces each run of characters outside
// [a-z0-9-] with a single dash and appends "-" plus a random suffix. The name
// part is truncated so the label fits in 63 octets. An empty or fully invalid
// name yields a label of dashes plus the suffix.
func (g *NameGenerator) Label(serverName string) (string, error) {
	if g.SuffixLength < 1 || g.SuffixLength > maxSuffixLength {
		return "", fmt.Errorf("suffix length %d outside [1, %d]", g.SuffixLength, maxSuffixLength)
	}

	base := invalidLabelChars.ReplaceAllString(strings.ToLower(serverName), "-")
	if limit := maxLabelLength - 1 - g.SuffixLength; len(base) > limit {
		base = base[:limit]
	}

	suffix, err := g.randomString(g.SuffixLength)
	if err != nil {
		return "", err
	}
	return base + "-" + suffix, nil
}

// Generate builds the provisioning request for one allocation.
func (g *NameGenerator) Generate(serverName string, port int, targetHost string) (*models.ProvisionRequest, error) {
	label, err := g.Label(serverName)
	if err != nil {
		return nil, err
	}
	return &models.ProvisionRequest{
		Label:      label,
		Hostname:   label + "." + g.ParentDomain,
		Port:       port,
		TargetHost: targetHost,
	}, nil
}

func (g *NameGenerator) randomString(n int) (string, error) {
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}

	max := big.NewInt(int64(len(labelAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(r, max)
		if err != nil {
			return "", fmt.Errorf("read random suffix: %w", err)
		}
		b.WriteByte(labelAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
