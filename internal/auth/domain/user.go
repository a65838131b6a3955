package domain

import "time"

// Role is the authorisation level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID            string
	Email         string // lower-cased, unique
	PasswordHash  string // argon2id PHC string
	FirstName     string
	LastName      string
	Role          Role
	Active        bool
	EmailVerified bool

	// TwoFactorSecret is the sealed TOTP secret. It is set by Generate and
	// only trusted for login once TwoFactorEnabled is true.
	TwoFactorSecret  *string
	TwoFactorEnabled bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// NewUser is the input to the Credential Store's create operation.
type NewUser struct {
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Role          Role
	Active        bool
	EmailVerified bool
}

// ProfileUpdate carries the optional fields of a profile edit. Nil means
// unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil
}

// UserFilter drives the admin user listing.
type UserFilter struct {
	Search string // matched against email, first and last name
	Offset int
	Limit  int
}

// UserPage is one page of the admin listing.
type UserPage struct {
	Users []User
	Total int
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers         int `json:"totalUsers"`
	ActiveUsers        int `json:"activeUsers"`
	AdminUsers         int `json:"adminUsers"`
	TwoFactorUsers     int `json:"twoFactorUsers"`
	NewUsersToday      int `json:"newUsersToday"`
	LoginAttemptsToday int `json:"loginAttemptsToday"`
	FailedLoginsToday  int `json:"failedLoginsToday"`
}
