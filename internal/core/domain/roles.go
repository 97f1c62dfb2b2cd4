package domain

// Role represents a staff role in the SACCO
type Role string

const (
	RoleAdmin            Role = "admin"
	RoleSuperAdmin       Role = "super_admin"
	RoleManager          Role = "manager"
	RoleLoanOfficer      Role = "loan_officer"
	RoleAccountant       Role = "accountant"
	RoleCashier          Role = "cashier"
	RoleIT               Role = "it"
	RoleClerk            Role = "clerk"
	RoleLoanBoard        Role = "loan_board"
	RoleBoardDirector    Role = "board_director"
	RoleMarketingOfficer Role = "marketing_officer"
	RoleHR               Role = "hr"
)

// AllRoles lists every role the console knows about
var AllRoles = []Role{
	RoleAdmin, RoleSuperAdmin, RoleManager, RoleLoanOfficer, RoleAccountant, RoleCashier,
	RoleIT, RoleClerk, RoleLoanBoard, RoleBoardDirector, RoleMarketingOfficer, RoleHR,
}

// Administrators are the roles allowed into system administration pages
var Administrators = []Role{RoleAdmin, RoleSuperAdmin}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// HasAnyRole is the one capability check used by route guards and by
// handlers deciding what to show. An empty role list admits any user.
func HasAnyRole(user *User, roles ...Role) bool {
	if user == nil {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if user.Role == r {
			return true
		}
	}
	return false
}
