package model

// FollowToggleResponse is returned by POST /users/toggleFollow/{id}.
type FollowToggleResponse struct {
	Message   string      `json:"message"`
	Following bool        `json:"following"`
	User      UserSummary `json:"user"`
}
