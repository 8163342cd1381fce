// Package strategy decides, per data domain, whether a change is applied to
// client state before server confirmation (optimistic) or only after it
// (pessimistic), and runs that decision uniformly.
package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type Policy string

const (
	Optimistic  Policy = "optimistic"
	Pessimistic Policy = "pessimistic"
)

// ParsePolicy accepts "optimistic" or "pessimistic", case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case Optimistic:
		return Optimistic, nil
	case Pessimistic:
		return Pessimistic, nil
	}
	return "", fmt.Errorf("unknown consistency policy %q", s)
}

// DefaultPolicies is the built-in data domain table. Anything touching money
// or stock waits for the server.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		"inventory":    Pessimistic,
		"orders":       Pessimistic,
		"payments":     Pessimistic,
		"products":     Pessimistic,
		"templates":    Pessimistic,
		"user-profile": Optimistic,
		"settings":     Optimistic,
		"preferences":  Optimistic,
		"wishlist":     Optimistic,
	}
}

// Registry maps data domains to policies. Unregistered domains are pessimistic.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewRegistry starts from DefaultPolicies and applies overrides on top.
func NewRegistry(overrides map[string]Policy) *Registry {
	r := &Registry{policies: DefaultPolicies()}
	for k, v := range overrides {
		r.policies[k] = v
	}
	return r
}

// Strategy returns the policy for dataType, defaulting to Pessimistic. A nil
// Registry knows no data types.
func (r *Registry) Strategy(dataType string) Policy {
	if r == nil {
		return Pessimistic
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.policies[dataType]; ok {
		return p
	}
	return Pessimistic
}

// Register sets the policy for dataType. p is parsed, so "Optimistic" is
// stored as Optimistic.
func (r *Registry) Register(dataType string, p Policy) error {
	parsed, err := ParsePolicy(string(p))
	if err != nil {
		return err
	}
	if strings.TrimSpace(dataType) == "" {
		return fmt.Errorf("data type required")
	}
	r.mu.Lock()
	r.policies[dataType] = parsed
	r.mu.Unlock()
	return nil
}

// Table returns a copy of the registered policies, keyed by data type.
func (r *Registry) Table() map[string]Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Policy, len(r.policies))
	for k, v := range r.policies {
		out[k] = v
	}
	return out
}

// DataTypes lists registered data types in sorted order.
func (r *Registry) DataTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.policies))
	for k := range r.policies {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
