// Package blocker turns blocklist state into site-blocking rules.
//
// A Scheduler owns a RuleStore and applies rule rewrites strictly one at a
// time in submission order. Each rewrite removes every existing rule and adds
// the complete desired set, so no partially applied update can survive.
package blocker

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/fakeyudi/pomosync/internal/state"
)

// BlockPagePath is where blocked navigations are redirected.
const BlockPagePath = "/blocked.html"

// Rule is one declarative redirect rule.
type Rule struct {
	ID        int       `json:"id"`
	Priority  int       `json:"priority"`
	Action    Action    `json:"action"`
	Condition Condition `json:"condition"`
}

// Action is what a matching request is turned into.
type Action struct {
	Type     string    `json:"type"`
	Redirect *Redirect `json:"redirect,omitempty"`
}

// Redirect targets a page inside the blocker itself.
type Redirect struct {
	ExtensionPath string `json:"extensionPath"`
}

// Condition selects the requests a rule applies to.
type Condition struct {
	URLFilter     string   `json:"urlFilter"`
	ResourceTypes []string `json:"resourceTypes"`
}

// Request is one desired blocking configuration.
type Request struct {
	Blocklist []string
	Enabled   bool
	Mode      state.BlockingMode
}

// Active reports whether rules should be enforced for req given whether a
// work session is currently running.
func (r Request) Active(sessionActive bool) bool {
	return r.Enabled && (r.Mode == state.BlockAlways || sessionActive)
}

var (
	schemePrefix = regexp.MustCompile(`^https?://`)
	pathSuffix   = regexp.MustCompile(`[/?#:].*$`)
)

// NormalizeDomain reduces user input like "https://www.Example.com:443/x?y"
// to a bare host "example.com".
func NormalizeDomain(input string) string {
	d := strings.ToLower(strings.TrimSpace(input))
	d = schemePrefix.ReplaceAllString(d, "")
	d = strings.TrimPrefix(d, "www.")
	return pathSuffix.ReplaceAllString(d, "")
}

// NormalizeList normalizes every entry, dropping empties and duplicates while
// keeping first-seen order.
func NormalizeList(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, raw := range list {
		d := NormalizeDomain(raw)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// BuildRules returns the complete rule set for req. Rule IDs are the
// 1-based positions in the normalized blocklist. Inactive requests produce no
// rules.
func BuildRules(req Request, sessionActive bool) []Rule {
	if !req.Active(sessionActive) {
		return nil
	}
	domains := NormalizeList(req.Blocklist)
	rules := make([]Rule, 0, len(domains))
	for i, domain := range domains {
		rules = append(rules, Rule{
			ID:       i + 1,
			Priority: 1,
			Action: Action{
				Type: "redirect",
				Redirect: &Redirect{
					ExtensionPath: BlockPagePath + "?domain=" + url.QueryEscape(domain),
				},
			},
			Condition: Condition{
				URLFilter:     "||" + domain,
				ResourceTypes: []string{"main_frame"},
			},
		})
	}
	return rules
}
