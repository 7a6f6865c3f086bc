package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dishahealth/coach/internal/user"
)

var _ user.Repository = (*UserStore)(nil)

// UserStore persists users and their profiles.
type UserStore struct {
	db *pgxpool.Pool
}

const userColumns = `id, username, full_name, age, gender, weight, height,
	medical_conditions, medications, allergies, onboarding_completed, created_at`

// GetOrCreate returns the user named username, inserting it on first use.
func (s *UserStore) GetOrCreate(ctx context.Context, username string) (*user.User, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (username) VALUES ($1)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING `+userColumns, username)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get or create user %q: %w", username, err)
	}
	return u, nil
}

// Get returns a user by ID.
func (s *UserStore) Get(ctx context.Context, id int64) (*user.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// SetFullName updates the display name.
func (s *UserStore) SetFullName(ctx context.Context, id int64, fullName string) (*user.User, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users SET full_name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, fullName)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("set full name of user %d: %w", id, err)
	}
	return u, nil
}

// UpdateProfile stores onboarding answers and marks onboarding complete.
func (s *UserStore) UpdateProfile(ctx context.Context, id int64, p user.Profile) (*user.User, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users SET
			age = $2, gender = $3, weight = $4, height = $5,
			medical_conditions = $6, medications = $7, allergies = $8,
			onboarding_completed = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, p.Age, p.Gender, p.Weight, p.Height,
		nonNil(p.MedicalConditions), nonNil(p.Medications), nonNil(p.Allergies))
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("update profile of user %d: %w", id, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Age, &u.Gender, &u.Weight, &u.Height,
		&u.MedicalConditions, &u.Medications, &u.Allergies, &u.OnboardingCompleted, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
