package enums

// UserRole controls which route groups an account can reach.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleStaff    UserRole = "staff"
	RoleCustomer UserRole = "customer"
)

var ValidUserRoles = []UserRole{RoleAdmin, RoleStaff, RoleCustomer}

func (r UserRole) IsValid() bool { return contains(ValidUserRoles, r) }

// IsBackOffice reports whether the role may use /api/admin routes.
func (r UserRole) IsBackOffice() bool { return r == RoleAdmin || r == RoleStaff }

func ParseUserRole(value string) (UserRole, error) {
	return parse("user role", ValidUserRoles, value)
}
