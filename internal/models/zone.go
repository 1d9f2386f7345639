package models

// DeliveryZone is an admin-maintained postal code centroid
type DeliveryZone struct {
	ZipCode   string  `json:"zip_code" db:"zip_code"`
	ZoneName  string  `json:"zone_name" db:"zone_name"`
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
	UpdatedAt int64   `json:"updated_at" db:"updated_at"`
}
