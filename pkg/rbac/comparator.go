package rbac

import (
	"context"
	"sort"
)

// PermissionWildcard grants all permissions. It compares equal only to
// another wildcard, never against enumerated permissions.
const PermissionWildcard = "*"

// PermissionReader loads a role's permission set
type PermissionReader interface {
	RolePermissions(ctx context.Context, roleID string) (PermissionSet, error)
}

// Comparator computes permission equivalence and deltas between roles
type Comparator struct {
	reader PermissionReader
}

// NewComparator creates a permission comparator
func NewComparator(reader PermissionReader) *Comparator {
	return &Comparator{reader: reader}
}

// Comparison is the result of comparing two roles' permission sets. The
// delta is always populated so the audit context keeps a uniform shape,
// even when equivalence already rejects the reassignment.
type Comparison struct {
	Equivalent bool
	Delta      PermissionDelta
	FromSet    PermissionSet
	ToSet      PermissionSet
}

// Compare loads both roles' permissions once and computes equivalence and
// delta together. On lookup failure it returns an empty delta annotated
// with the error rather than failing, leaving the policy choice to the
// caller.
func (c *Comparator) Compare(ctx context.Context, fromRoleID, toRoleID string) Comparison {
	fromSet, err := c.reader.RolePermissions(ctx, fromRoleID)
	if err != nil {
		return Comparison{Delta: annotatedEmptyDelta(err)}
	}

	toSet, err := c.reader.RolePermissions(ctx, toRoleID)
	if err != nil {
		return Comparison{Delta: annotatedEmptyDelta(err)}
	}

	return Comparison{
		Equivalent: Equivalent(fromSet, toSet),
		Delta:      Delta(fromSet, toSet),
		FromSet:    fromSet,
		ToSet:      toSet,
	}
}

// Equivalent reports exact set equality: same cardinality, same members.
// The wildcard is an ordinary member here, so {"*"} equals only {"*"}.
func Equivalent(a, b PermissionSet) bool {
	if len(a) != len(b) {
		return false
	}
	for perm := range a {
		if !b.Contains(perm) {
			return false
		}
	}
	return true
}

// Delta computes added = b - a, removed = a - b, unchanged = a ∩ b.
// Members are sorted for deterministic audit records.
func Delta(a, b PermissionSet) PermissionDelta {
	delta := PermissionDelta{
		Added:     []string{},
		Removed:   []string{},
		Unchanged: []string{},
	}

	for perm := range b {
		if a.Contains(perm) {
			delta.Unchanged = append(delta.Unchanged, perm)
		} else {
			delta.Added = append(delta.Added, perm)
		}
	}
	for perm := range a {
		if !b.Contains(perm) {
			delta.Removed = append(delta.Removed, perm)
		}
	}

	sort.Strings(delta.Added)
	sort.Strings(delta.Removed)
	sort.Strings(delta.Unchanged)
	return delta
}

func annotatedEmptyDelta(err error) PermissionDelta {
	return PermissionDelta{
		Added:       []string{},
		Removed:     []string{},
		Unchanged:   []string{},
		LookupError: err.Error(),
	}
}
