package routes

import "strings"

// Requirement is a bit set of access requirements. The zero value means the
// route is open to everyone.
type Requirement uint8

const (
	// RequiresAuth denies sessions without a credential.
	RequiresAuth Requirement = 1 << iota
	// RequiresOrganization denies sessions whose role is not organization.
	RequiresOrganization
	// RequiresVolunteer denies sessions whose role is not volunteer.
	RequiresVolunteer
	// RequiresAdmin denies sessions whose role is not admin.
	RequiresAdmin

	requirementMask = RequiresAuth | RequiresOrganization | RequiresVolunteer | RequiresAdmin
)

var requirementNames = [...]struct {
	flag Requirement
	name string
}{
	{RequiresAuth, "auth"},
	{RequiresOrganization, "organization"},
	{RequiresVolunteer, "volunteer"},
	{RequiresAdmin, "admin"},
}

// Has reports whether every bit of flag is set in r.
func (r Requirement) Has(flag Requirement) bool {
	return r&flag == flag
}

// Open reports whether r requires nothing.
func (r Requirement) Open() bool {
	return r == 0
}

// String renders r as "auth|organization", or "open".
func (r Requirement) String() string {
	if r == 0 {
		return "open"
	}
	parts := make([]string, 0, len(requirementNames))
	for _, n := range requirementNames {
		if r.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
