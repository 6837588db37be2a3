// Package featureflags evaluates the FEATURE_FLAGS rollout list.
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Rule is the parsed value of one flag.
type Rule struct {
	On      bool
	Percent int // 0 unless the value was "N%"
}

// Manager evaluates flags defined as a comma-separated key=value list,
// e.g. "newsletter=on,member_feed=25%".
type Manager struct {
	rules map[string]Rule
	raw   map[string]string
}

// NewManager parses raw. Malformed pairs and unknown values are skipped.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]Rule), raw: make(map[string]string)}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		rule, ok := parseRule(value)
		if !ok {
			continue
		}
		m.rules[key] = rule
		m.raw[key] = value
	}

	return m
}

func parseRule(value string) (Rule, bool) {
	switch value {
	case "on", "true", "1":
		return Rule{On: true}, true
	case "off", "false", "0":
		return Rule{}, true
	}
	pct, found := strings.CutSuffix(value, "%")
	if !found {
		return Rule{}, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return Rule{}, false
	}
	switch {
	case n <= 0:
		return Rule{}, true
	case n >= 100:
		return Rule{On: true}, true
	}
	return Rule{Percent: n}, true
}

// Enabled reports whether name is on for userID. Percentage rollouts are
// deterministic per user and always off for anonymous callers (userID 0).
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	name = normalize(name)
	rule, ok := m.rules[name]
	if !ok {
		return false
	}
	if rule.On {
		return true
	}
	if rule.Percent == 0 || userID == 0 {
		return false
	}
	return rolloutBucket(name, userID) < rule.Percent
}

// Names returns the configured flag names in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.rules))
	for name := range m.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Raw returns a copy of the configured values.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.raw))
	for k, v := range m.raw {
		out[k] = v
	}
	return out
}

// Snapshot evaluates every flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
