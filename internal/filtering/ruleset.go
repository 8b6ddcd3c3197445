// Package filtering compiles and manages content-blocking rulesets and
// per-host exceptions for the browser core.
package filtering

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Rule is one compiled content-blocking rule in WebKit content-blocker shape.
type Rule struct {
	Trigger Trigger `json:"trigger"`
	Action  Action  `json:"action"`
}

// Trigger defines when a rule applies.
type Trigger struct {
	URLFilter    string   `json:"url-filter"`
	IfDomain     []string `json:"if-domain,omitempty"`
	UnlessDomain []string `json:"unless-domain,omitempty"`
	ResourceType []string `json:"resource-type,omitempty"`
	LoadType     []string `json:"load-type,omitempty"`
}

// Action defines what happens when a rule matches.
type Action struct {
	Type     string `json:"type"`
	Selector string `json:"selector,omitempty"`
}

// Action types understood by the rendering engine.
const (
	ActionBlock               = "block"
	ActionIgnorePreviousRules = "ignore-previous-rules"
	ActionCSSDisplayNone      = "css-display-none"
)

// Ruleset is an immutable compiled rule set, identified by a content
// fingerprint. Once constructed it is shared freely across goroutines.
type Ruleset struct {
	Fingerprint string
	CompiledAt  time.Time

	rules []Rule
	raw   []byte
}

// NewRuleset seals a slice of rules into an immutable, fingerprinted set.
func NewRuleset(rules []Rule) (*Ruleset, error) {
	raw, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("marshal ruleset: %w", err)
	}
	sum := sha256.Sum256(raw)
	return &Ruleset{
		Fingerprint: hex.EncodeToString(sum[:8]),
		CompiledAt:  time.Now(),
		rules:       rules,
		raw:         raw,
	}, nil
}

// JSON returns the serialized rule array handed to the rendering engine.
func (rs *Ruleset) JSON() []byte {
	if rs == nil {
		return nil
	}
	return rs.raw
}

// Len returns the number of compiled rules.
func (rs *Ruleset) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}
