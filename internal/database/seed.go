package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/werawoot/Krua-Thai1-sub006/internal/models"
	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
)

// SeedUsers creates the demo admin and driver accounts when the users table is empty
func SeedUsers(ctx context.Context, db *sqlx.DB, logger *zap.Logger) error {
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}
	if count > 0 {
		logger.Info("users already seeded, skipping")
		return nil
	}

	adminHash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	driverHash, err := bcrypt.GenerateFromPassword([]byte("driver123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []*models.User{
		{Email: "admin@kruathai.com", Password: string(adminHash), FirstName: "Admin", LastName: "User", Role: models.RoleAdmin},
		{Email: "driver1@kruathai.com", Password: string(driverHash), FirstName: "Niran", LastName: "Driver", Role: models.RoleDriver},
		{Email: "driver2@kruathai.com", Password: string(driverHash), FirstName: "Ploy", LastName: "Driver", Role: models.RoleDriver},
	}
	for _, u := range users {
		if err := CreateUser(ctx, db, u); err != nil {
			return err
		}
		logger.Info("created user", zap.String("email", u.Email), zap.String("role", u.Role))
	}

	logger.Info("seeded demo users",
		zap.String("admin", "admin@kruathai.com / admin123"),
		zap.String("driver", "driver1@kruathai.com / driver123"))
	return nil
}

// SeedZones stores the compiled-in postal centroids when the table is empty
func SeedZones(ctx context.Context, db *sqlx.DB, logger *zap.Logger) error {
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM delivery_zones"); err != nil {
		return err
	}
	if count > 0 {
		logger.Info("delivery zones already seeded, skipping")
		return nil
	}

	codes := make([]string, 0, len(routing.DefaultZones))
	for code := range routing.DefaultZones {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		c := routing.DefaultZones[code]
		zone := &models.DeliveryZone{ZipCode: code, ZoneName: zoneNames[code], Latitude: c.Latitude, Longitude: c.Longitude}
		if err := UpsertZone(ctx, db, zone); err != nil {
			return err
		}
	}
	logger.Info("seeded delivery zones", zap.Int("count", len(codes)))
	return nil
}

var zoneNames = map[string]string{
	"92831": "Fullerton", "92832": "Fullerton", "92833": "Fullerton", "92835": "Fullerton",
	"92801": "Anaheim", "92802": "Anaheim", "92804": "Anaheim", "92805": "Anaheim",
	"92806": "Anaheim", "92807": "Anaheim Hills",
	"92821": "Brea", "92823": "Brea",
	"92870": "Placentia",
	"92886": "Yorba Linda", "92887": "Yorba Linda",
	"90620": "Buena Park", "90621": "Buena Park",
	"92840": "Garden Grove", "92841": "Garden Grove", "92843": "Garden Grove",
}

type demoCustomer struct {
	first, last, street, city, zip, phone string
	amount                                float64
	days                                  string
	slot                                  string
}

var demoCustomers = []demoCustomer{
	{"Somchai", "Jaidee", "1200 N Harbor Blvd", "Fullerton", "92832", "714-555-0101", 45, "Monday, Wednesday, Friday", "11:00-13:00"},
	{"Malee", "Srisuk", "250 W Commonwealth Ave", "Fullerton", "92832", "714-555-0102", 30, "Monday,Thursday", ""},
	{"Anan", "Wong", "800 N State College Blvd", "Fullerton", "92831", "714-555-0103", 60, "Daily: monday tuesday wednesday thursday friday", "17:00-19:00"},
	{"Kanya", "Chaiyo", "2100 E Lincoln Ave", "Anaheim", "92806", "714-555-0104", 15, "Tuesday, Saturday", ""},
	{"David", "Miller", "500 S Anaheim Blvd", "Anaheim", "92805", "714-555-0105", 75, "Monday, Wednesday", "11:00-13:00"},
	{"Sarah", "Nguyen", "3300 E Yorba Linda Blvd", "Brea", "92821", "714-555-0106", 45, "Wednesday", ""},
	{"Pim", "Rattana", "18000 Yorba Linda Blvd", "Yorba Linda", "92886", "714-555-0107", 30, "Monday, Friday", "17:00-19:00"},
	{"Lek", "Boonmee", "7800 Beach Blvd", "Buena Park", "90620", "714-555-0108", 90, "Tuesday, Thursday", ""},
	{"Jennifer", "Park", "12900 Harbor Blvd", "Garden Grove", "92840", "714-555-0109", 45, "Monday, Wednesday, Friday", ""},
	{"Michael", "Chen", "1400 N Kraemer Blvd", "Placentia", "92870", "714-555-0110", 30, "Wednesday, Saturday", "11:00-13:00"},
	{"Nok", "Kittisak", "900 Sunset Dr", "Los Angeles", "90026", "213-555-0111", 45, "Wednesday", ""},
	{"Emily", "Johnson", "2000 E Imperial Hwy", "Brea", "92821", "714-555-0112", 60, "Thursday, Friday", ""},
}

// SeedDemo creates demo customers with active subscriptions when there are
// no subscriptions yet
func SeedDemo(ctx context.Context, db *sqlx.DB, logger *zap.Logger) error {
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM subscriptions"); err != nil {
		return err
	}
	if count > 0 {
		logger.Info("subscriptions already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("customer123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	for i, c := range demoCustomers {
		user := &models.User{
			Email:           fmt.Sprintf("customer%02d@example.com", i+1),
			Password:        string(hash),
			FirstName:       c.first,
			LastName:        c.last,
			Phone:           &c.phone,
			DeliveryAddress: &c.street,
			City:            &c.city,
			ZipCode:         &c.zip,
			Role:            models.RoleCustomer,
		}
		if err := CreateUser(ctx, db, user); err != nil {
			return err
		}

		sub := &models.Subscription{
			UserID:       user.ID,
			Status:       models.SubscriptionActive,
			TotalAmount:  c.amount,
			DeliveryDays: c.days,
		}
		if c.slot != "" {
			sub.PreferredDeliveryTime = &c.slot
		}
		if err := CreateSubscription(ctx, db, sub); err != nil {
			return err
		}
	}

	logger.Info("seeded demo subscriptions", zap.Int("count", len(demoCustomers)))
	return nil
}
