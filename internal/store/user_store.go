package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/wa-assistant/internal/model"
)

const userColumns = `id, phone, name, last_contact_at, subscribed, created_at, updated_at`

// FindOrCreateByPhone returns the user owning phone, inserting a new one
// named name when none exists. Concurrent first contacts from the same
// phone resolve to a single row through the UNIQUE constraint.
func (s *SQLiteStore) FindOrCreateByPhone(
	ctx context.Context,
	phone string,
	name string,
) (*model.User, bool, error) {
	now := dbTime(s.now())

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, phone, name, last_contact_at, subscribed, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(phone) DO NOTHING`,
		uuid.New().String(), phone, name, now, now, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("creating user %s: %w", phone, err)
	}
	rows, _ := result.RowsAffected()

	user, err := s.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}
	return user, rows > 0, nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.db.GetContext(ctx, &user,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Resource: "user", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	normalizeUser(&user)
	return &user, nil
}

// GetUserByPhone retrieves a user by canonical phone.
func (s *SQLiteStore) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	var user model.User
	err := s.db.GetContext(ctx, &user,
		"SELECT "+userColumns+" FROM users WHERE phone = ?", phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Resource: "user", ID: phone}
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by phone %s: %w", phone, err)
	}
	normalizeUser(&user)
	return &user, nil
}

// TouchLastContact records an interaction with the user at the given time.
func (s *SQLiteStore) TouchLastContact(
	ctx context.Context,
	userID string,
	at time.Time,
) error {
	at = dbTime(at)
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_contact_at = ?, updated_at = ? WHERE id = ?",
		at, at, userID,
	)
	if err != nil {
		return fmt.Errorf("touching user %s: %w", userID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &model.NotFoundError{Resource: "user", ID: userID}
	}
	return nil
}

// SetSubscribed updates the subscription flag mirrored from billing.
func (s *SQLiteStore) SetSubscribed(
	ctx context.Context,
	userID string,
	subscribed bool,
) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET subscribed = ?, updated_at = ? WHERE id = ?",
		boolToInt(subscribed), dbTime(s.now()), userID,
	)
	if err != nil {
		return fmt.Errorf("updating subscription for user %s: %w", userID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &model.NotFoundError{Resource: "user", ID: userID}
	}
	return nil
}
