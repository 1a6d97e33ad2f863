package users

import (
	"strings"
	"time"
)

// RoleType is a role claim granted to the user by the auth service
type RoleType string

// PendingID is the ID carried by PendingUser.
const PendingID = "pending"

// PendingUser is the placeholder profile carried by a session until the real profile resolves.
var PendingUser = User{ID: PendingID}

// User is the profile of the authenticated actor as seen by this client.
type User struct {
	ID        string     `json:"id,omitempty"`         // Subject identifier from the auth service
	Email     string     `json:"email,omitempty"`      // User's email address
	Username  string     `json:"username,omitempty"`   // Preferred username
	FirstName string     `json:"first_name,omitempty"` // First name of the user
	LastName  string     `json:"last_name,omitempty"`  // Last name of the user
	Verified  bool       `json:"verified,omitempty"`   // Verified, has the email been verified
	Roles     []RoleType `json:"roles,omitempty"`      // Roles granted by the auth service
	UpdatedAt time.Time  `json:"updated_at,omitempty"` // When the profile was last resolved
}

// IsPending reports whether the user is the PendingUser placeholder.
func (u User) IsPending() bool {
	return u.ID == PendingID
}

// DisplayName returns the best human readable name available.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// HasRole reports whether the user has been granted role
func (u User) HasRole(role RoleType) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
