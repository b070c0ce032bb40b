package domain

import "strings"

// Role is the closed set of application roles (users.role).
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleProvider Role = "provider"
	RoleTenant   Role = "tenant"
)

// legacy literals still present in older rows and front-end payloads
var roleAliases = map[string]Role{
	"admin":        RoleAdmin,
	"manager":      RoleManager,
	"gestionnaire": RoleManager,
	"provider":     RoleProvider,
	"prestataire":  RoleProvider,
	"tenant":       RoleTenant,
	"locataire":    RoleTenant,
}

// ParseRole normalizes a stored role literal. ok is false for unknown values.
func ParseRole(s string) (Role, bool) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	return r, ok
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleProvider, RoleTenant:
		return true
	}
	return false
}

// IsManager reports whether the role receives manager fan-out.
func (r Role) IsManager() bool { return r == RoleManager }

// ContactType is the role a user plays on a lot/intervention link.
type ContactType string

const (
	ContactTypeTenant   ContactType = "tenant"
	ContactTypeManager  ContactType = "manager"
	ContactTypeProvider ContactType = "provider"
	ContactTypeOwner    ContactType = "owner"
	ContactTypeOther    ContactType = "other"
)

var contactTypeAliases = map[string]ContactType{
	"tenant":       ContactTypeTenant,
	"locataire":    ContactTypeTenant,
	"manager":      ContactTypeManager,
	"gestionnaire": ContactTypeManager,
	"provider":     ContactTypeProvider,
	"prestataire":  ContactTypeProvider,
	"owner":        ContactTypeOwner,
	"proprietaire": ContactTypeOwner,
	"other":        ContactTypeOther,
	"autre":        ContactTypeOther,
}

// ParseContactType normalizes a link type; unknown or empty values map to other.
func ParseContactType(s string) ContactType {
	if ct, ok := contactTypeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return ct
	}
	return ContactTypeOther
}
