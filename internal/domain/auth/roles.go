package auth

const (
	RoleHRAdmin = "hr_admin"
	RoleMarker  = "marker"
	RoleViewer  = "viewer"

	UserStatusActive = "active"
)

// UserContext is the authenticated caller attached to a request.
type UserContext struct {
	UserID   string
	TenantID string
	RoleID   string
	RoleName string
}
