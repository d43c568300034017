package rbac

type Role string
type Action string

const (
	RoleBuyer  Role = "buyer"
	RoleOwner  Role = "owner"
	RoleBroker Role = "broker"
	RoleAdmin  Role = "admin"
)

const (
	ActionMessage       Action = "message"
	ActionSave          Action = "save"
	ActionCreateListing Action = "create_listing"
	ActionManageListing Action = "manage_listing"
)

// Can reports whether role may perform action. Ownership of a specific listing
// is checked separately by the caller.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleOwner, RoleBroker:
		return true
	case RoleBuyer:
		return action == ActionMessage || action == ActionSave
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleBuyer, RoleOwner, RoleBroker, RoleAdmin:
		return Role(role)
	default:
		return RoleBuyer
	}
}

// Valid reports whether role names a known role.
func Valid(role string) bool {
	return Normalize(role) == Role(role)
}
