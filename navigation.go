package session

// MenuEntry is a single navigation item derived from the session role.
type MenuEntry struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Action string `json:"action,omitempty"`
}

// DashboardHome returns the dashboard landing route for a role. An unset or
// unknown role falls back to the member dashboard so an unresolved session
// still lands somewhere sensible.
func DashboardHome(role Role) string {
	if !IsValidRole(role) {
		role = RoleMember
	}
	return "/dashboard/" + role + "/home"
}

// MenuFor returns the side-menu entries visible to a role: the role-specific
// table unioned with entries common to every authenticated session. Purely
// derived, no backend call.
func MenuFor(role Role) []MenuEntry {
	if !IsValidRole(role) {
		role = RoleMember
	}

	entries := []MenuEntry{
		{Label: "Dashboard", Path: DashboardHome(role)},
	}

	entries = append(entries, roleMenu[role]...)

	return append(entries,
		MenuEntry{Label: "Home", Path: "/"},
		MenuEntry{Label: "Logout", Action: "logout"},
	)
}

var roleMenu = map[Role][]MenuEntry{
	RoleAdmin: {
		{Label: "Manage Users", Path: "/dashboard/admin/users"},
		{Label: "Manage Clubs", Path: "/dashboard/admin/clubs"},
		{Label: "Manage Events", Path: "/dashboard/admin/events"},
		{Label: "Platform Stats", Path: "/dashboard/admin/stats"},
	},
	RoleClubManager: {
		{Label: "My Club", Path: "/dashboard/clubManager/club"},
		{Label: "Club Events", Path: "/dashboard/clubManager/events"},
		{Label: "Membership Requests", Path: "/dashboard/clubManager/requests"},
	},
	RoleMember: {
		{Label: "My Clubs", Path: "/dashboard/member/clubs"},
		{Label: "My Events", Path: "/dashboard/member/events"},
		{Label: "Payments", Path: "/dashboard/member/payments"},
	},
}
