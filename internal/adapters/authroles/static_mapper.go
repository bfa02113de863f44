package authroles

import (
	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"

	"github.com/campusworks/caseboard-ui-api/internal/ports"
)

// StaticMapper maps directory groups to application roles by exact
// membership. Admin wins over staff when a subject carries both groups.
// Unknown or empty group sets map to no role rather than a default grant.
type StaticMapper struct {
	AdminGroup string
	StaffGroup string
}

var _ ports.RoleMapper = StaticMapper{}

func (m StaticMapper) Map(groups []string) domainauth.Role {
	for _, g := range groups {
		if m.AdminGroup != "" && g == m.AdminGroup {
			return domainauth.RoleAdmin
		}
	}
	for _, g := range groups {
		if m.StaffGroup != "" && g == m.StaffGroup {
			return domainauth.RoleStaff
		}
	}
	return domainauth.RoleNone
}
