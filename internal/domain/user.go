package domain

// User identity is owned by the fronting auth layer. The chat service only
// reads this table to resolve display names and route events.
type User struct {
	ID       int64   `gorm:"primaryKey" json:"id"`
	Username string  `json:"username"`
	FullName *string `json:"full_name"`
	IsActive bool    `json:"is_active"`
}

func (User) TableName() string { return "app_users" }

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Username
}
