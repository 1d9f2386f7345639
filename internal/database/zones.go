package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/werawoot/Krua-Thai1-sub006/internal/models"
	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
)

// ListZones returns every admin-maintained zone ordered by postal code
func ListZones(ctx context.Context, db *sqlx.DB) ([]models.DeliveryZone, error) {
	var zones []models.DeliveryZone
	if err := db.SelectContext(ctx, &zones, `SELECT * FROM delivery_zones ORDER BY zip_code`); err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	return zones, nil
}

// UpsertZone creates or replaces the centroid for a postal code
func UpsertZone(ctx context.Context, db *sqlx.DB, zone *models.DeliveryZone) error {
	zone.ZipCode = routing.NormalizePostalCode(zone.ZipCode)
	zone.UpdatedAt = now()

	query := `
		INSERT INTO delivery_zones (zip_code, zone_name, latitude, longitude, updated_at)
		VALUES (:zip_code, :zone_name, :latitude, :longitude, :updated_at)
		ON CONFLICT (zip_code) DO UPDATE SET
			zone_name = excluded.zone_name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at`
	if _, err := db.NamedExecContext(ctx, query, zone); err != nil {
		return fmt.Errorf("failed to upsert zone %s: %w", zone.ZipCode, err)
	}
	return nil
}

// MergeZones overlays stored zones on base and returns a new table.
// base is not modified.
func MergeZones(base map[string]routing.LatLng, zones []models.DeliveryZone) map[string]routing.LatLng {
	out := make(map[string]routing.LatLng, len(base)+len(zones))
	for code, c := range base {
		out[code] = c
	}
	for _, z := range zones {
		out[routing.NormalizePostalCode(z.ZipCode)] = routing.LatLng{Latitude: z.Latitude, Longitude: z.Longitude}
	}
	return out
}
