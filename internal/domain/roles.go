package domain

import (
	"sort"
	"strings"
)

// Role: бит в наборе возможностей вызывающего.
type Role uint16

const (
	RoleSubmitter Role = 1 << iota
	RoleLegalAdmin
	RoleAttorneyAssigner
	RoleAttorney
	RoleComplianceReviewer
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleSubmitter:          "submitter",
	RoleLegalAdmin:         "legal_admin",
	RoleAttorneyAssigner:   "attorney_assigner",
	RoleAttorney:           "attorney",
	RoleComplianceReviewer: "compliance_reviewer",
	RoleAdmin:              "admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRole разбирает имя роли из каталога/токена.
func ParseRole(name string) (Role, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for role, n := range roleNames {
		if n == name {
			return role, true
		}
	}
	return 0, false
}

// RoleSet: битовая маска ролей. Заменяет разрозненные булевы флаги прав.
type RoleSet uint16

func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= RoleSet(r)
	}
	return s
}

// ParseRoleSet собирает набор из строк; неизвестные имена игнорируются.
func ParseRoleSet(names []string) RoleSet {
	var s RoleSet
	for _, n := range names {
		if r, ok := ParseRole(n); ok {
			s |= RoleSet(r)
		}
	}
	return s
}

func (s RoleSet) Has(r Role) bool {
	return s&RoleSet(r) != 0
}

// HasAny: есть хотя бы одна из ролей.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// IsElevated: административные роли, которым доступны чужие назначения.
func (s RoleSet) IsElevated() bool {
	return s.HasAny(RoleAdmin, RoleLegalAdmin)
}

func (s RoleSet) Names() []string {
	names := make([]string, 0, len(roleNames))
	for r, n := range roleNames {
		if s.Has(r) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Caller: действующий принципал, поставляется слоем идентификации.
type Caller struct {
	ID          string
	DisplayName string
	Roles       RoleSet
}

func (c Caller) Principal() Principal {
	return Principal{ID: c.ID, DisplayName: c.DisplayName}
}
