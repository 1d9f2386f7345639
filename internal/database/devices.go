package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/werawoot/Krua-Thai1-sub006/internal/models"
)

// RegisterDevice stores a push token for a user. A token that moves to
// another account is reassigned.
func RegisterDevice(ctx context.Context, db *sqlx.DB, device *models.DriverDevice) error {
	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	ts := now()
	device.CreatedAt, device.UpdatedAt = ts, ts

	query := `
		INSERT INTO driver_devices (id, user_id, token, device_type, created_at, updated_at)
		VALUES (:id, :user_id, :token, :device_type, :created_at, :updated_at)
		ON CONFLICT (token) DO UPDATE SET
			user_id = excluded.user_id,
			device_type = excluded.device_type,
			updated_at = excluded.updated_at`
	if _, err := db.NamedExecContext(ctx, query, device); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// DriverTokens returns the push tokens of every driver account
func DriverTokens(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var tokens []string
	query := `
		SELECT d.token
		FROM driver_devices d
		JOIN users u ON u.id = d.user_id
		WHERE u.role = ?
		ORDER BY d.updated_at DESC`
	if err := db.SelectContext(ctx, &tokens, db.Rebind(query), models.RoleDriver); err != nil {
		return nil, fmt.Errorf("failed to list driver tokens: %w", err)
	}
	return tokens, nil
}
