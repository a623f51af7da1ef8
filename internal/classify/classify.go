// Package classify assigns every candidate file to a tier: Typed, Unmanaged
// or Excluded.
package classify

import (
	"errors"
	"fmt"

	"github.com/dgallion1/speclint/internal/schema"
)

// Tier is the classification of one file.
type Tier string

const (
	TierTyped     Tier = "typed"
	TierUnmanaged Tier = "unmanaged"
	TierExcluded  Tier = "excluded"
)

// Policy decides what happens to files no module type claims.
type Policy string

const (
	// PolicyUnmanaged silently treats unmatched files as Unmanaged.
	PolicyUnmanaged Policy = "unmanaged"
	// PolicyWarn treats them as Unmanaged and asks for explicit classification.
	PolicyWarn Policy = "warn"
)

// ParsePolicy validates a policy name. The empty string means PolicyUnmanaged.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyUnmanaged:
		return PolicyUnmanaged, nil
	case PolicyWarn:
		return PolicyWarn, nil
	}
	return "", fmt.Errorf("unknown unmatched-file policy %q (want unmanaged or warn)", s)
}

// Predicate answers an ignore-file question for a slash-separated relative path.
type Predicate func(path string) bool

// Never matches nothing.
func Never(string) bool { return false }

// Result is the classification of one file.
type Result struct {
	Path   string
	Tier   Tier
	Module *schema.ModuleTypeDef
	// Ambiguous is set when several module types matched. The file is
	// Unmanaged for reference resolution and skipped by type validation.
	Ambiguous *schema.AmbiguousTypeError
	// Unmatched is set when the file fell through to the unmatched policy.
	Unmatched bool
	// Warn is set when the policy asks for the unmatched file to be reported.
	Warn bool
}

// Classifier applies the registry and both ignore predicates to files.
type Classifier struct {
	reg       *schema.Registry
	excluded  Predicate
	unmanaged Predicate
	policy    Policy
}

func New(reg *schema.Registry, excluded, unmanaged Predicate, policy Policy) *Classifier {
	if excluded == nil {
		excluded = Never
	}
	if unmanaged == nil {
		unmanaged = Never
	}
	if policy == "" {
		policy = PolicyUnmanaged
	}
	return &Classifier{reg: reg, excluded: excluded, unmanaged: unmanaged, policy: policy}
}

// Classify returns the tier for path.
func (c *Classifier) Classify(path string) Result {
	res := Result{Path: path}
	switch {
	case c.excluded(path):
		res.Tier = TierExcluded
		return res
	case c.unmanaged(path):
		res.Tier = TierUnmanaged
		return res
	}

	m, err := c.reg.MatchModule(path)
	var amb *schema.AmbiguousTypeError
	switch {
	case errors.As(err, &amb):
		res.Tier = TierUnmanaged
		res.Ambiguous = amb
	case m != nil:
		res.Tier = TierTyped
		res.Module = m
	default:
		res.Tier = TierUnmanaged
		res.Unmatched = true
		res.Warn = c.policy == PolicyWarn
	}
	return res
}
