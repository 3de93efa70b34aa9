package core

import "strings"

// NormalizeName folds case and collapses whitespace. Category uniqueness is
// decided on the normalized form.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// IsReservedName reports whether name collides with the fallback category.
func IsReservedName(name string) bool {
	return NormalizeName(name) == NormalizeName(FallbackCategoryName)
}

func (c Category) IsGlobal() bool {
	return c.Owner == ""
}

func (c Category) OwnedBy(user string) bool {
	return user != "" && c.Owner == user
}

// IsFallback reports whether c is the global "Outros" category.
func (c Category) IsFallback() bool {
	return c.IsGlobal() && IsReservedName(c.Name)
}

func (t Transaction) OwnedBy(user string) bool {
	return user != "" && t.Owner == user
}
