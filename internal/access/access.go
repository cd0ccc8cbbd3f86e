// Package access defines project roles and the permission checks the
// service applies before touching step documents. Identity itself comes
// from the auth layer; access only answers "may this role do this".
package access

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
	RoleMentor Role = "mentor"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionSubmit Action = "submit"
	ActionManage Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleOwner:
		return action == ActionRead || action == ActionWrite || action == ActionSubmit || action == ActionManage
	case RoleEditor:
		return action == ActionRead || action == ActionWrite || action == ActionSubmit
	case RoleMentor:
		// Mentors observe and review; they never edit a team's documents.
		return action == ActionRead
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleOwner, RoleMentor, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
