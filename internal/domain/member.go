package domain

// Membership represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Membership struct {
	DisplayName string
	Permission  Permission
	IsOwner     bool
}

// NewMembership avoids raw literals in handlers and keeps construction obvious.
func NewMembership(displayName string, permission Permission, isOwner bool) *Membership {
	return &Membership{DisplayName: displayName, Permission: permission, IsOwner: isOwner}
}

func (m *Membership) CanEdit() bool { return m.Permission == PermissionEdit }
