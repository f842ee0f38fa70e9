package domain

// User is an account that can own, be assigned to, or watch tasks.
// Credentials live with the authentication service and are not modeled here.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
}

// UserRef is the public identity embedded in comments: author and mentions.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Ref returns the public identity of u.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}
