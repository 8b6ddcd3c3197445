package filtering

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/crynn/crynn/internal/logging"
)

// Compiler turns EasyList-style rule text into compiled Rules.
// Lines it cannot express are skipped, not fatal: a filter list keeps
// working even when individual rules are malformed.
type Compiler struct{}

// NewCompiler creates a rule compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// CompileSources compiles multiple rule sources concurrently and merges the
// results in source order.
func (c *Compiler) CompileSources(ctx context.Context, sources ...[]byte) (*Ruleset, error) {
	log := logging.FromContext(ctx)

	compiled := make([][]Rule, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rules, err := c.compileOne(src)
			if err != nil {
				return err
			}
			compiled[i] = rules
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Rule
	for _, rules := range compiled {
		merged = append(merged, rules...)
	}
	if len(merged) == 0 {
		return nil, ErrEmptyRuleset
	}

	rs, err := NewRuleset(merged)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Int("sources", len(sources)).
		Int("rules", rs.Len()).
		Str("fingerprint", rs.Fingerprint).
		Msg("ruleset compiled")
	return rs, nil
}

func (c *Compiler) compileOne(src []byte) ([]Rule, error) {
	var rules []Rule

	scanner := bufio.NewScanner(bytes.NewReader(src))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Comments, metadata headers like [Adblock Plus 2.0], blanks.
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}
		if !isASCII(line) {
			continue
		}

		if strings.Contains(line, "##") {
			if r, ok := parseCosmeticRule(line); ok {
				rules = append(rules, r)
			}
			continue
		}
		if r, ok := parseNetworkRule(line); ok {
			rules = append(rules, r)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// parseCosmeticRule handles element-hiding filters: [domains]##selector.
func parseCosmeticRule(line string) (Rule, bool) {
	parts := strings.SplitN(line, "##", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Rule{}, false
	}

	r := Rule{
		Trigger: Trigger{URLFilter: ".*"},
		Action:  Action{Type: ActionCSSDisplayNone, Selector: parts[1]},
	}
	if parts[0] != "" {
		for _, d := range strings.Split(parts[0], ",") {
			d = strings.ToLower(strings.TrimSpace(d))
			if d == "" || strings.HasPrefix(d, "~") {
				continue
			}
			r.Trigger.IfDomain = append(r.Trigger.IfDomain, d)
		}
		if len(r.Trigger.IfDomain) == 0 {
			return Rule{}, false
		}
	}
	return r, true
}

// parseNetworkRule handles blocking filters, @@ exceptions, and the common
// $-options (domain=, third-party, resource types).
func parseNetworkRule(line string) (Rule, bool) {
	action := ActionBlock
	if strings.HasPrefix(line, "@@") {
		action = ActionIgnorePreviousRules
		line = line[2:]
	}

	pattern := line
	var opts []string
	if idx := strings.Index(line, "$"); idx != -1 {
		pattern = line[:idx]
		opts = strings.Split(line[idx+1:], ",")
	}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return Rule{}, false
	}

	r := Rule{
		Trigger: Trigger{URLFilter: patternToRegexp(pattern)},
		Action:  Action{Type: action},
	}
	for _, opt := range opts {
		opt = strings.TrimSpace(opt)
		switch {
		case strings.HasPrefix(opt, "domain="):
			for _, d := range strings.Split(opt[len("domain="):], "|") {
				d = strings.ToLower(strings.TrimSpace(d))
				if d == "" {
					continue
				}
				if strings.HasPrefix(d, "~") {
					r.Trigger.UnlessDomain = append(r.Trigger.UnlessDomain, d[1:])
				} else {
					r.Trigger.IfDomain = append(r.Trigger.IfDomain, d)
				}
			}
		case opt == "third-party":
			r.Trigger.LoadType = []string{"third-party"}
		case opt == "~third-party":
			r.Trigger.LoadType = []string{"first-party"}
		case opt == "script", opt == "image", opt == "stylesheet", opt == "font", opt == "media":
			t := opt
			if t == "stylesheet" {
				t = "style-sheet"
			}
			r.Trigger.ResourceType = append(r.Trigger.ResourceType, t)
		}
	}
	return r, true
}

var regexpSpecials = regexp.MustCompile(`[.+?(){}\[\]\\|]`)

// patternToRegexp converts EasyList pattern syntax to the anchored regex
// dialect the rendering engine's content blocker expects.
func patternToRegexp(pattern string) string {
	domainAnchor := strings.HasPrefix(pattern, "||")
	pattern = strings.TrimPrefix(pattern, "||")

	startAnchor := strings.HasPrefix(pattern, "|")
	pattern = strings.TrimPrefix(pattern, "|")
	endAnchor := strings.HasSuffix(pattern, "|")
	pattern = strings.TrimSuffix(pattern, "|")

	escaped := regexpSpecials.ReplaceAllString(pattern, `\$0`)
	escaped = strings.ReplaceAll(escaped, "*", ".*")
	escaped = strings.ReplaceAll(escaped, "^", `[/:?&=]`)

	switch {
	case domainAnchor:
		escaped = `^https?://([^/]+\.)?` + escaped
	case startAnchor:
		escaped = "^" + escaped
	}
	if endAnchor {
		escaped += "$"
	}
	return escaped
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}
