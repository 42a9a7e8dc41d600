// Package csp computes Content-Security-Policy allow-list material for the
// HTML documents this server renders.
package csp

import (
	"crypto/sha256"
	"encoding/base64"
	"regexp"
	"strings"
)

// inlineScript matches bare inline script blocks. This is a deliberately
// narrow text scan shaped around the known shell-template format: script tags
// carrying attributes, or blocks containing nested markup, are not recognized.
// Broadening it to a real HTML parser would change which scripts end up in the
// policy, so it stays a targeted match.
var inlineScript = regexp.MustCompile(`(?s)<script>(.*?)</script>`)

// ExtractHashes returns one "sha256-<base64>" token per inline script block
// found in html, in document order. Line endings are normalized to LF before
// hashing so the tokens are stable across platform checkouts.
func ExtractHashes(html string) []string {
	matches := inlineScript.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		body := strings.ReplaceAll(m[1], "\r\n", "\n")
		sum := sha256.Sum256([]byte(body))
		tokens = append(tokens, "sha256-"+base64.StdEncoding.EncodeToString(sum[:]))
	}
	return tokens
}

// QuoteAll wraps hash tokens in the single quotes CSP source lists require.
func QuoteAll(tokens []string) []string {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = "'" + tok + "'"
	}
	return quoted
}

// Policy assembles an ordered Content-Security-Policy header value.
type Policy struct {
	directives []string
}

// NewPolicy creates an empty policy.
func NewPolicy() *Policy {
	return &Policy{}
}

// Add appends a directive with its source values, preserving insertion order.
func (p *Policy) Add(name string, sources ...string) *Policy {
	p.directives = append(p.directives, name+" "+strings.Join(sources, " "))
	return p
}

// String renders the policy as a header value.
func (p *Policy) String() string {
	return strings.Join(p.directives, "; ") + ";"
}
