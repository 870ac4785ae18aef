package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// FindUser looks up a user by username. Returns nil, nil if not found.
func (s *Store) FindUser(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u User
	err := s.conn.QueryRowContext(ctx,
		`SELECT username, hashed_password FROM users WHERE username = ?`, username,
	).Scan(&u.Username, &u.HashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new user row. Used only by the offline admin
// bootstrap tool.
func (s *Store) CreateUser(ctx context.Context, username, hashedPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (username, hashed_password) VALUES (?, ?)`, username, hashedPassword,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return &ErrConflict{Domain: username}
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
