package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/werawoot/Krua-Thai1-sub006/internal/models"
)

// CreateUser inserts a user. Password must already be hashed.
func CreateUser(ctx context.Context, db *sqlx.DB, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	ts := now()
	user.CreatedAt, user.UpdatedAt = ts, ts

	query := `
		INSERT INTO users (
			id, email, password, first_name, last_name, phone,
			delivery_address, city, zip_code, role, created_at, updated_at
		) VALUES (
			:id, :email, :password, :first_name, :last_name, :phone,
			:delivery_address, :city, :zip_code, :role, :created_at, :updated_at
		)`
	if _, err := db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail looks a user up by case-insensitive email
func GetUserByEmail(ctx context.Context, db *sqlx.DB, email string) (*models.User, error) {
	var user models.User
	err := db.GetContext(ctx, &user,
		db.Rebind(`SELECT * FROM users WHERE email = ?`),
		strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// UpdateUserPassword replaces a user's password hash
func UpdateUserPassword(ctx context.Context, db *sqlx.DB, userID, hash string) error {
	res, err := db.ExecContext(ctx,
		db.Rebind(`UPDATE users SET password = ?, updated_at = ? WHERE id = ?`),
		hash, now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
