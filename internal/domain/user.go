package domain

type Role string

const (
	RoleViewer  Role = "viewer"
	RolePlanner Role = "planner"
)
