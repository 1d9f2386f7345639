package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/werawoot/Krua-Thai1-sub006/internal/database"
	"github.com/werawoot/Krua-Thai1-sub006/internal/middleware"
	"github.com/werawoot/Krua-Thai1-sub006/internal/models"
	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
)

const testSecret = "handler-secret"

type stubStore struct {
	records []models.SubscriptionRecord
}

func (s stubStore) ActiveSubscriptions(context.Context, routing.SubscriptionQuery) ([]models.SubscriptionRecord, error) {
	return s.records, nil
}

type solverFunc func(ctx context.Context, m *routing.Model) (*routing.Solution, error)

func (f solverFunc) Optimize(ctx context.Context, m *routing.Model) (*routing.Solution, error) {
	return f(ctx, m)
}

// firstVehicle puts every shipment on vehicle 0
func firstVehicle(_ context.Context, m *routing.Model) (*routing.Solution, error) {
	vr := routing.VehicleRoute{VehicleIndex: 0, VehicleLabel: m.Vehicles[0].Label}
	for i := range m.Shipments {
		vr.Visits = append(vr.Visits,
			routing.Visit{ShipmentIndex: i, HasShipmentIndex: true, IsPickup: true},
			routing.Visit{ShipmentIndex: i, HasShipmentIndex: true})
	}
	return &routing.Solution{Routes: []routing.VehicleRoute{vr}}, nil
}

type notifierFunc func(ctx context.Context, o *routing.Outcome) error

func (f notifierFunc) NotifyRoutesReady(ctx context.Context, o *routing.Outcome) error {
	return f(ctx, o)
}

func subs(n int) []models.SubscriptionRecord {
	out := make([]models.SubscriptionRecord, n)
	for i := range out {
		out[i] = models.SubscriptionRecord{
			ID:              fmt.Sprintf("s%d", i),
			TotalAmount:     30,
			DeliveryDays:    "Monday",
			FirstName:       fmt.Sprintf("Customer%d", i),
			DeliveryAddress: "1 Main St",
			ZipCode:         "92832",
		}
	}
	return out
}

func newOptimizer(records []models.SubscriptionRecord, solver routing.Solver) *routing.Optimizer {
	settings := routing.DefaultSettings()
	settings.Location = time.UTC
	opt := routing.NewOptimizer(stubStore{records: records}, solver, settings, zap.NewNop())
	opt.NewRand = func() *rand.Rand { return rand.New(rand.NewPCG(7, 7)) }
	return opt
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    string          `json:"error"`
	Category string          `json:"category"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func postJSON(t *testing.T, h http.Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b)))
	return rec
}

func TestOptimizeRoutesReturnsOutcome(t *testing.T) {
	h := OptimizeRoutes(newOptimizer(subs(5), solverFunc(firstVehicle)), nil, zap.NewNop())

	rec := postJSON(t, h, map[string]interface{}{"date": "2026-10-12", "drivers": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decode(t, rec)
	require.True(t, env.Success)
	var outcome routing.Outcome
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	require.Len(t, outcome.Routes, 1)
	assert.Len(t, outcome.Routes[0].Stops, 5)
	assert.Empty(t, outcome.Unassigned)
	assert.Equal(t, 5, outcome.Summary.AssignedCount)
	assert.Equal(t, 1, outcome.Summary.RequestedDrivers)
}

func TestOptimizeRoutesEmptyDateIsNotAnError(t *testing.T) {
	called := false
	h := OptimizeRoutes(newOptimizer(nil, solverFunc(func(ctx context.Context, m *routing.Model) (*routing.Solution, error) {
		called = true
		return firstVehicle(ctx, m)
	})), nil, zap.NewNop())

	rec := postJSON(t, h, map[string]interface{}{"date": "2026-10-12"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)

	var outcome routing.Outcome
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &outcome))
	assert.Empty(t, outcome.Routes)
	assert.Empty(t, outcome.Unassigned)
	assert.Zero(t, outcome.Summary.TotalItems)
}

func TestOptimizeRoutesSurfacesSolverFailureKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"status 500", routing.NewSolverRequestError(500, errors.New("boom")), "solver_request_failure"},
		{"auth", routing.NewAuthenticationError(errors.New("no token")), "authentication_failure"},
		{"malformed", routing.NewMalformedResponseError(errors.New("no routes")), "malformed_solver_response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := OptimizeRoutes(newOptimizer(subs(3), solverFunc(func(context.Context, *routing.Model) (*routing.Solution, error) {
				return nil, tc.err
			})), nil, zap.NewNop())

			rec := postJSON(t, h, map[string]interface{}{"date": "2026-10-12"})
			assert.Equal(t, http.StatusBadGateway, rec.Code)
			env := decode(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tc.want, env.Category)
			assert.Empty(t, env.Data)
		})
	}
}

func TestOptimizeRoutesRejectsBadInput(t *testing.T) {
	h := OptimizeRoutes(newOptimizer(subs(1), solverFunc(firstVehicle)), nil, zap.NewNop())

	rec := postJSON(t, h, map[string]interface{}{"date": "12/10/2026"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_params", decode(t, rec).Category)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptimizeRoutesNotifiesDrivers(t *testing.T) {
	var notified *routing.Outcome
	ok := notifierFunc(func(_ context.Context, o *routing.Outcome) error {
		notified = o
		return nil
	})
	h := OptimizeRoutes(newOptimizer(subs(2), solverFunc(firstVehicle)), ok, zap.NewNop())

	rec := postJSON(t, h, map[string]interface{}{"date": "2026-10-12", "notify_drivers": true})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, notified)
	assert.Len(t, notified.Routes, 1)

	failing := notifierFunc(func(context.Context, *routing.Outcome) error { return errors.New("fcm down") })
	h = OptimizeRoutes(newOptimizer(subs(2), solverFunc(firstVehicle)), failing, zap.NewNop())

	rec = postJSON(t, h, map[string]interface{}{"date": "2026-10-12", "notify_drivers": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var outcome routing.Outcome
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &outcome))
	require.NotEmpty(t, outcome.Warnings)
	assert.Equal(t, routing.WarningNotificationFailed, outcome.Warnings[len(outcome.Warnings)-1].Code)
}

func TestPreviewDemand(t *testing.T) {
	h := PreviewDemand(newOptimizer(subs(4), solverFunc(firstVehicle)), zap.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?date=2026-10-12&drivers=2&capacity_buffer=1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var preview routing.DemandPreview
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &preview))
	assert.Len(t, preview.Deliveries, 4)
	assert.Equal(t, 8, preview.TotalItems)
	assert.Equal(t, routing.Capacity{Base: 4, Buffer: 1, Ceiling: 5}, preview.Capacity)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?date=2026-10-12&drivers=two", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Connect(ctx, "", filepath.Join(t.TempDir(), "handlers.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db))
	return db
}

func createUser(t *testing.T, db *sqlx.DB, email, password, role string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{Email: email, Password: string(hash), FirstName: "Test", Role: role}
	require.NoError(t, database.CreateUser(context.Background(), db, u))
	return u
}

func TestLogin(t *testing.T) {
	db := setupDB(t)
	admin := createUser(t, db, "admin@kruathai.com", "admin123", models.RoleAdmin)
	createUser(t, db, "customer@example.com", "customer123", models.RoleCustomer)
	h := Login(db, testSecret, zap.NewNop())

	rec := postJSON(t, h, LoginRequest{Email: "ADMIN@kruathai.com", Password: "admin123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.OK)
	claims, err := middleware.ParseToken(testSecret, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	rec = postJSON(t, h, LoginRequest{Email: "admin@kruathai.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, h, LoginRequest{Email: "nobody@kruathai.com", Password: "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, h, LoginRequest{Email: "customer@example.com", Password: "customer123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterFCMToken(t *testing.T) {
	db := setupDB(t)
	driver := createUser(t, db, "driver1@kruathai.com", "driver123", models.RoleDriver)
	h := RegisterFCMToken(db, zap.NewNop())

	send := func(body string, withUser bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
		if withUser {
			req = req.WithContext(middleware.WithUser(req.Context(), middleware.UserClaims{
				UserID: driver.ID, Email: driver.Email, Role: models.RoleDriver,
			}))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, send(`{"token":"t1","device_type":"ios"}`, false).Code)
	assert.Equal(t, http.StatusBadRequest, send(`{"token":"t1","device_type":"web"}`, true).Code)
	assert.Equal(t, http.StatusBadRequest, send(`{"token":" ","device_type":"ios"}`, true).Code)
	require.Equal(t, http.StatusOK, send(`{"token":"t1","device_type":"android"}`, true).Code)
	require.Equal(t, http.StatusOK, send(`{"token":"t1","device_type":"ios"}`, true).Code)

	tokens, err := database.DriverTokens(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, tokens)
}
