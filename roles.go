package identity

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// RoleIsAtLeast checks if the role meets the minimum required level
func RoleIsAtLeast(r, minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleUser:    0,
		RoleManager: 1,
		RoleAdmin:   2,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// AllRoles returns all predefined roles in hierarchical order
func AllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleManager,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}
