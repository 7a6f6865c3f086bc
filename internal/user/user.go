package user

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// DefaultUsername is used when a request names no user.
const DefaultUsername = "default_user"

// User is an account with its health profile.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	Profile
}

// Profile is the health information collected during onboarding.
type Profile struct {
	FullName            string   `json:"full_name,omitempty"`
	Age                 *int     `json:"age"`
	Gender              string   `json:"gender,omitempty"`
	Weight              *int     `json:"weight,omitempty"` // kg
	Height              *int     `json:"height,omitempty"` // cm
	MedicalConditions   []string `json:"medical_conditions"`
	Medications         []string `json:"medications"`
	Allergies           []string `json:"allergies"`
	OnboardingCompleted bool     `json:"onboarding_completed"`
}

// Repository stores users and profiles.
type Repository interface {
	// GetOrCreate returns the user with username, creating it on first use.
	GetOrCreate(ctx context.Context, username string) (*User, error)
	Get(ctx context.Context, id int64) (*User, error)
	SetFullName(ctx context.Context, id int64, fullName string) (*User, error)
	// UpdateProfile replaces the onboarding fields and marks onboarding
	// complete. The full name is left untouched.
	UpdateProfile(ctx context.Context, id int64, p Profile) (*User, error)
}
