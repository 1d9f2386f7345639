package models

import "strings"

// User roles
const (
	RoleAdmin    = "admin"
	RoleDriver   = "driver"
	RoleCustomer = "customer"
)

type User struct {
	ID              string  `json:"id" db:"id"`
	Email           string  `json:"email" db:"email"`
	Password        string  `json:"-" db:"password"` // Never return password in JSON
	FirstName       string  `json:"first_name" db:"first_name"`
	LastName        string  `json:"last_name" db:"last_name"`
	Phone           *string `json:"phone,omitempty" db:"phone"`
	DeliveryAddress *string `json:"delivery_address,omitempty" db:"delivery_address"`
	City            *string `json:"city,omitempty" db:"city"`
	ZipCode         *string `json:"zip_code,omitempty" db:"zip_code"`
	Role            string  `json:"role" db:"role"` // "admin", "driver" or "customer"
	CreatedAt       int64   `json:"created_at" db:"created_at"`
	UpdatedAt       int64   `json:"updated_at" db:"updated_at"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
}

func (u *User) ToUserResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      strings.TrimSpace(u.FirstName + " " + u.LastName),
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
