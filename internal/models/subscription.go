package models

import "strings"

// SubscriptionRecord is an active subscription joined with the customer's
// address and contact columns (from subscriptions + users)
type SubscriptionRecord struct {
	ID                    string  `json:"id" db:"id"`
	UserID                string  `json:"user_id" db:"user_id"`
	TotalAmount           float64 `json:"total_amount" db:"total_amount"`
	DeliveryDays          string  `json:"delivery_days" db:"delivery_days"` // free text, e.g. "Monday, Wednesday" or "2026-10-14"
	PreferredDeliveryTime *string `json:"preferred_delivery_time,omitempty" db:"preferred_delivery_time"`
	AssignedDriverID      *string `json:"assigned_driver_id,omitempty" db:"assigned_driver_id"`
	FirstName             string  `json:"first_name" db:"first_name"`
	LastName              string  `json:"last_name" db:"last_name"`
	Phone                 *string `json:"phone,omitempty" db:"phone"`
	DeliveryAddress       string  `json:"delivery_address" db:"delivery_address"`
	City                  *string `json:"city,omitempty" db:"city"`
	ZipCode               string  `json:"zip_code" db:"zip_code"`
}

// CustomerName joins first and last name
func (s *SubscriptionRecord) CustomerName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// FullAddress returns "street, city zip" skipping empty parts
func (s *SubscriptionRecord) FullAddress() string {
	parts := []string{strings.TrimSpace(s.DeliveryAddress)}
	tail := strings.TrimSpace(s.ZipCode)
	if s.City != nil && strings.TrimSpace(*s.City) != "" {
		tail = strings.TrimSpace(strings.TrimSpace(*s.City) + " " + tail)
	}
	if tail != "" {
		parts = append(parts, tail)
	}
	if parts[0] == "" {
		parts = parts[1:]
	}
	return strings.Join(parts, ", ")
}

// Subscription statuses
const (
	SubscriptionActive    = "active"
	SubscriptionPaused    = "paused"
	SubscriptionCancelled = "cancelled"
)

// Subscription is a row of the subscriptions table
type Subscription struct {
	ID                    string  `json:"id" db:"id"`
	UserID                string  `json:"user_id" db:"user_id"`
	Status                string  `json:"status" db:"status"`
	TotalAmount           float64 `json:"total_amount" db:"total_amount"`
	DeliveryDays          string  `json:"delivery_days" db:"delivery_days"`
	PreferredDeliveryTime *string `json:"preferred_delivery_time,omitempty" db:"preferred_delivery_time"`
	AssignedDriverID      *string `json:"assigned_driver_id,omitempty" db:"assigned_driver_id"`
	StartDate             *string `json:"start_date,omitempty" db:"start_date"` // ISO date, inclusive
	EndDate               *string `json:"end_date,omitempty" db:"end_date"`     // ISO date, inclusive
	CreatedAt             int64   `json:"created_at" db:"created_at"`           // Unix timestamp
	UpdatedAt             int64   `json:"updated_at" db:"updated_at"`           // Unix timestamp
}
