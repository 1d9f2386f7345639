package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/werawoot/Krua-Thai1-sub006/internal/models"
	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
)

// SubscriptionStore reads scheduled subscriptions for the route optimizer
type SubscriptionStore struct {
	db *sqlx.DB
}

// NewSubscriptionStore wraps a connection
func NewSubscriptionStore(db *sqlx.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

var _ routing.DataStore = (*SubscriptionStore)(nil)

// ActiveSubscriptions returns active subscriptions whose delivery-days text
// mentions the weekday name (any case) or the literal ISO date, joined with
// the customer's contact and address columns. Subscriptions outside their
// start/end dates are excluded.
func (s *SubscriptionStore) ActiveSubscriptions(ctx context.Context, q routing.SubscriptionQuery) ([]models.SubscriptionRecord, error) {
	query := `
		SELECT
			s.id, s.user_id, s.total_amount, s.delivery_days,
			s.preferred_delivery_time, s.assigned_driver_id,
			u.first_name, u.last_name, u.phone,
			COALESCE(u.delivery_address, '') AS delivery_address,
			u.city,
			COALESCE(u.zip_code, '') AS zip_code
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE s.status = ?
		  AND (LOWER(s.delivery_days) LIKE ? OR s.delivery_days LIKE ?)
		  AND (s.start_date IS NULL OR s.start_date <= ?)
		  AND (s.end_date IS NULL OR s.end_date >= ?)`
	args := []interface{}{
		models.SubscriptionActive,
		"%" + strings.ToLower(q.DayName) + "%",
		"%" + q.Date + "%",
		q.Date,
		q.Date,
	}
	if q.TimeSlot != "" {
		query += ` AND s.preferred_delivery_time = ?`
		args = append(args, q.TimeSlot)
	}
	query += ` ORDER BY zip_code, u.first_name, u.last_name, s.id`

	var records []models.SubscriptionRecord
	if err := s.db.SelectContext(ctx, &records, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query active subscriptions: %w", err)
	}
	if records == nil {
		records = []models.SubscriptionRecord{}
	}
	return records, nil
}

// CreateSubscription inserts a subscription, generating its ID when empty
func CreateSubscription(ctx context.Context, db *sqlx.DB, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.Status == "" {
		sub.Status = models.SubscriptionActive
	}
	ts := now()
	sub.CreatedAt, sub.UpdatedAt = ts, ts

	query := `
		INSERT INTO subscriptions (
			id, user_id, status, total_amount, delivery_days,
			preferred_delivery_time, assigned_driver_id, start_date, end_date,
			created_at, updated_at
		) VALUES (
			:id, :user_id, :status, :total_amount, :delivery_days,
			:preferred_delivery_time, :assigned_driver_id, :start_date, :end_date,
			:created_at, :updated_at
		)`
	if _, err := db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}
