package rbac

import "strings"

// Category is a coarse semantic classification of a role, used to detect
// reassignments that relabel a role without changing real authority.
type Category string

const (
	CategoryAdministrative  Category = "administrative"
	CategoryOperational     Category = "operational"
	CategoryFinancial       Category = "financial"
	CategoryExternalPartner Category = "external-partner"
	CategoryCustom          Category = "custom"

	// CategoryUnknown is never equal to any category, itself included
	CategoryUnknown Category = "unknown"
)

// knownCategories is the closed set of stored category values
var knownCategories = map[string]Category{
	string(CategoryAdministrative):  CategoryAdministrative,
	string(CategoryOperational):     CategoryOperational,
	string(CategoryFinancial):       CategoryFinancial,
	string(CategoryExternalPartner): CategoryExternalPartner,
	string(CategoryCustom):          CategoryCustom,
}

// Classifier maps roles to categories. Pure, deterministic, no I/O.
type Classifier struct{}

// NewClassifier creates a category classifier
func NewClassifier() *Classifier {
	return &Classifier{}
}

// CategoryOf classifies a role. The stored category attribute wins when
// present and recognized; otherwise the role name and permission footprint
// are used as signals. Roles that cannot be confidently resolved map to
// CategoryUnknown.
func (c *Classifier) CategoryOf(role *Role, permissions PermissionSet) Category {
	if role == nil {
		return CategoryUnknown
	}

	if role.Category != nil {
		if cat, ok := knownCategories[strings.ToLower(strings.TrimSpace(*role.Category))]; ok {
			return cat
		}
		// Stored but unrecognized, do not guess
		return CategoryUnknown
	}

	return c.derive(role.Name, permissions)
}

// Equal reports whether two categories match for equivalence purposes.
// Unknown never equals anything.
func (c *Classifier) Equal(a, b Category) bool {
	if a == CategoryUnknown || b == CategoryUnknown {
		return false
	}
	return a == b
}

func (c *Classifier) derive(name string, permissions PermissionSet) Category {
	lower := strings.ToLower(name)

	// A wildcard grant is administrative regardless of naming
	if permissions.Contains(PermissionWildcard) {
		return CategoryAdministrative
	}

	switch {
	case containsAny(lower, "admin", "superuser", "system"):
		return CategoryAdministrative
	case containsAny(lower, "finance", "financial", "accounting", "billing", "invoice", "payroll"):
		return CategoryFinancial
	case containsAny(lower, "tenant", "vendor", "partner", "contractor", "guest"):
		return CategoryExternalPartner
	case containsAny(lower, "property", "leasing", "maintenance", "operations", "manager", "agent", "staff"):
		return CategoryOperational
	case containsAny(lower, "custom"):
		return CategoryCustom
	}

	// Fall back to the permission footprint
	var financial, operational int
	for perm := range permissions {
		p := strings.ToLower(perm)
		switch {
		case containsAny(p, "invoice", "payment", "billing", "payroll", "finance"):
			financial++
		case containsAny(p, "property", "lease", "maintenance", "unit"):
			operational++
		}
	}
	switch {
	case financial > 0 && financial >= operational:
		return CategoryFinancial
	case operational > 0:
		return CategoryOperational
	}

	return CategoryUnknown
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
