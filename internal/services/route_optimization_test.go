package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"

	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
)

type failingTokens struct{}

func (failingTokens) Token() (*oauth2.Token, error) {
	return nil, errors.New("invalid_grant")
}

// stalledTokens blocks until released, like a token endpoint that never answers
type stalledTokens struct {
	release chan struct{}
}

func (s stalledTokens) Token() (*oauth2.Token, error) {
	<-s.release
	return &oauth2.Token{AccessToken: "late", TokenType: "Bearer"}, nil
}

func testModel() *routing.Model {
	limit := 6
	start := time.Date(2026, 10, 14, 16, 0, 0, 0, time.UTC)
	return &routing.Model{
		Shipments: []routing.Shipment{
			{
				Label:      "Amy Customer",
				Pickup:     routing.VisitRequest{Location: routing.Restaurant, Dwell: 2 * time.Minute},
				Delivery:   routing.VisitRequest{Location: routing.LatLng{Latitude: 33.87, Longitude: -117.92}, Dwell: 5 * time.Minute},
				LoadDemand: 2,
			},
			{
				Label:    "Bob Customer",
				Pickup:   routing.VisitRequest{Location: routing.Restaurant, Dwell: 2 * time.Minute},
				Delivery: routing.VisitRequest{
					Location: routing.LatLng{Latitude: 33.84, Longitude: -117.95},
					Dwell:    5 * time.Minute,
					Window:   &routing.TimeWindow{Start: start.Add(2 * time.Hour), End: start.Add(4 * time.Hour)},
				},
				LoadDemand: 3,
			},
		},
		Vehicles: []routing.Vehicle{
			{Label: "Driver 1", Start: routing.Restaurant, End: routing.Restaurant, MaxLoad: &limit, CostPerKilometer: 1, CostPerHour: 20, FixedCost: 50},
			{Label: "Driver 2", Start: routing.Restaurant, End: routing.Restaurant, CostPerKilometer: 1, CostPerHour: 20, FixedCost: 100},
		},
		GlobalStart: start,
		GlobalEnd:   start.Add(11 * time.Hour),
		LoadType:    routing.LoadTypeItems,
		Timeout:     30 * time.Second,
	}
}

func newTestService(t *testing.T, handler http.HandlerFunc, cfg RouteOptimizationConfig) *RouteOptimizationService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	cfg.ProjectID = "krua-test"
	cfg.Logger = zaptest.NewLogger(t)
	return NewRouteOptimizationService(cfg)
}

const sampleResponse = `{
  "routes": [
    {
      "vehicleLabel": "Driver 1",
      "visits": [
        {"isPickup": true, "shipmentLabel": "Amy Customer", "startTime": "2026-10-14T16:00:00Z"},
        {"shipmentIndex": 1, "isPickup": true, "shipmentLabel": "Bob Customer", "startTime": "2026-10-14T16:02:00Z"},
        {"shipmentLabel": "Amy Customer", "startTime": "2026-10-14T16:20:30.5Z"},
        {"shipmentIndex": 1, "shipmentLabel": "Bob Customer", "startTime": "2026-10-14T18:00:00Z"}
      ],
      "metrics": {
        "performedShipmentCount": 2,
        "travelDistanceMeters": 24140.16,
        "totalDuration": "7800s",
        "travelDuration": "3000s",
        "visitDuration": "840s"
      }
    },
    {"vehicleIndex": 1, "vehicleLabel": "Driver 2"}
  ],
  "metrics": {"usedVehicleCount": 1, "totalCost": 123.4}
}`

func TestOptimizeSendsModelAndParsesSolution(t *testing.T) {
	var got OptimizeToursRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/projects/krua-test:optimizeTours", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("X-Goog-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, sampleResponse)
	}, RouteOptimizationConfig{Tokens: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-123", TokenType: "Bearer"})})

	sol, err := svc.Optimize(context.Background(), testModel())
	require.NoError(t, err)

	// request
	assert.Equal(t, "30s", got.Timeout)
	assert.Equal(t, "2026-10-14T16:00:00Z", got.Model.GlobalStartTime)
	assert.Equal(t, "2026-10-15T03:00:00Z", got.Model.GlobalEndTime)
	require.Len(t, got.Model.Shipments, 2)
	sh := got.Model.Shipments[1]
	assert.Equal(t, "Bob Customer", sh.Label)
	assert.Equal(t, "3", sh.LoadDemands["items"].Amount)
	require.Len(t, sh.Pickups, 1)
	assert.Equal(t, "120s", sh.Pickups[0].Duration)
	assert.Equal(t, routing.Restaurant.Latitude, sh.Pickups[0].ArrivalWaypoint.Location.LatLng.Latitude)
	require.Len(t, sh.Deliveries, 1)
	assert.Equal(t, "300s", sh.Deliveries[0].Duration)
	require.Len(t, sh.Deliveries[0].TimeWindows, 1)
	assert.Equal(t, "2026-10-14T18:00:00Z", sh.Deliveries[0].TimeWindows[0].StartTime)
	assert.Empty(t, got.Model.Shipments[0].Deliveries[0].TimeWindows)

	require.Len(t, got.Model.Vehicles, 2)
	assert.Equal(t, "6", got.Model.Vehicles[0].LoadLimits["items"].MaxLoad)
	assert.Equal(t, 50.0, got.Model.Vehicles[0].FixedCost)
	assert.Nil(t, got.Model.Vehicles[1].LoadLimits)
	assert.Equal(t, 100.0, got.Model.Vehicles[1].FixedCost)

	// response
	require.Len(t, sol.Routes, 2)
	r0 := sol.Routes[0]
	assert.Equal(t, 0, r0.VehicleIndex)
	assert.Equal(t, "Driver 1", r0.VehicleLabel)
	require.Len(t, r0.Visits, 4)
	assert.True(t, r0.Visits[0].IsPickup)
	assert.Equal(t, 0, r0.Visits[2].ShipmentIndex, "omitted shipmentIndex means 0")
	assert.True(t, r0.Visits[2].HasShipmentIndex)
	assert.Equal(t, 1, r0.Visits[3].ShipmentIndex)
	assert.Equal(t, time.Date(2026, 10, 14, 16, 20, 30, 5e8, time.UTC), r0.Visits[2].StartTime)
	assert.Equal(t, 2, r0.Metrics.PerformedShipmentCount)
	assert.Equal(t, 7800*time.Second, r0.Metrics.TotalDuration)
	assert.Equal(t, 3000*time.Second, r0.Metrics.TravelDuration)
	assert.Equal(t, 840*time.Second, r0.Metrics.VisitDuration)
	assert.InDelta(t, 24140.16, r0.Metrics.TravelDistanceMeters, 0.001)

	assert.Equal(t, 1, sol.Routes[1].VehicleIndex)
	assert.Empty(t, sol.Routes[1].Visits)
}

func TestOptimizeUsesAPIKeyWithoutTokens(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-abc", r.Header.Get("X-Goog-Api-Key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"routes": []}`)
	}, RouteOptimizationConfig{APIKey: "key-abc"})

	sol, err := svc.Optimize(context.Background(), testModel())
	require.NoError(t, err)
	assert.Empty(t, sol.Routes)
}

func TestOptimizeSkippedShipments(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"routes": [{}], "skippedShipments": [{"label": "Amy Customer"}, {"index": 1, "label": "Bob Customer"}]}`)
	}, RouteOptimizationConfig{APIKey: "k"})

	sol, err := svc.Optimize(context.Background(), testModel())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, sol.SkippedShipments)
}

func TestOptimizeFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		cfg        RouteOptimizationConfig
		want       error
		kind       routing.FailureKind
		wantStatus int
	}{
		{name: "server error", status: 500, body: `{"error": {"code": 500}}`, cfg: RouteOptimizationConfig{APIKey: "k"}, want: routing.ErrSolverRequest, kind: routing.FailureSolverRequest, wantStatus: 500},
		{name: "bad request", status: 400, body: `{"error": {"code": 400}}`, cfg: RouteOptimizationConfig{APIKey: "k"}, want: routing.ErrSolverRequest, kind: routing.FailureSolverRequest, wantStatus: 400},
		{name: "unauthorized", status: 401, body: `{}`, cfg: RouteOptimizationConfig{APIKey: "k"}, want: routing.ErrAuthentication, kind: routing.FailureAuthentication, wantStatus: 401},
		{name: "token failure", status: 200, body: `{"routes": []}`, cfg: RouteOptimizationConfig{Tokens: failingTokens{}}, want: routing.ErrAuthentication, kind: routing.FailureAuthentication},
		{name: "no credential", status: 200, body: `{"routes": []}`, cfg: RouteOptimizationConfig{}, want: routing.ErrAuthentication, kind: routing.FailureAuthentication},
		{name: "not json", status: 200, body: `<html>oops</html>`, cfg: RouteOptimizationConfig{APIKey: "k"}, want: routing.ErrMalformedResponse, kind: routing.FailureMalformedResponse},
		{name: "missing routes", status: 200, body: `{}`, cfg: RouteOptimizationConfig{APIKey: "k"}, want: routing.ErrMalformedResponse, kind: routing.FailureMalformedResponse},
		{name: "bad duration", status: 200, body: `{"routes": [{"metrics": {"totalDuration": "1h"}}]}`, cfg: RouteOptimizationConfig{APIKey: "k"}, want: routing.ErrMalformedResponse, kind: routing.FailureMalformedResponse},
		{name: "bad start time", status: 200, body: `{"routes": [{"visits": [{"startTime": "yesterday"}]}]}`, cfg: RouteOptimizationConfig{APIKey: "k"}, want: routing.ErrMalformedResponse, kind: routing.FailureMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, tt.cfg)

			sol, err := svc.Optimize(context.Background(), testModel())
			assert.Nil(t, sol)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.kind, routing.FailureKindOf(err))

			var oerr *routing.OptimizationError
			require.ErrorAs(t, err, &oerr)
			assert.Equal(t, tt.wantStatus, oerr.StatusCode)
		})
	}
}

func TestOptimizeRespectsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, RouteOptimizationConfig{APIKey: "k"})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.Optimize(ctx, testModel())
	require.Error(t, err)
	assert.ErrorIs(t, err, routing.ErrSolverRequest)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOptimizeLabelOnlyVisitsUseLabelFallback(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"routes": [
			{"vehicleIndex": 1, "visits": [{"shipmentLabel": "Bob Customer"}]},
			{"visits": [{"shipmentLabel": "Amy Customer"}]}
		]}`)
	}, RouteOptimizationConfig{APIKey: "k"})

	sol, err := svc.Optimize(context.Background(), testModel())
	require.NoError(t, err)
	require.Len(t, sol.Routes, 2)

	bob := sol.Routes[0].Visits[0]
	assert.False(t, bob.HasShipmentIndex, "a label naming another shipment is not shipment 0")
	assert.Equal(t, "Bob Customer", bob.ShipmentLabel)
	amy := sol.Routes[1].Visits[0]
	assert.True(t, amy.HasShipmentIndex)
	assert.Equal(t, 0, amy.ShipmentIndex)

	deliveries := []routing.Delivery{
		{ID: "amy", CustomerName: "Amy Customer", ItemCount: 2},
		{ID: "bob", CustomerName: "Bob Customer", ItemCount: 3},
	}
	rec, err := routing.Reconstruct(deliveries, sol, 2, nil, routing.Restaurant)
	require.NoError(t, err)
	require.Len(t, rec.Routes, 2)
	assert.Equal(t, "amy", rec.Routes[0].Stops[0].Delivery.ID)
	assert.Equal(t, "bob", rec.Routes[1].Stops[0].Delivery.ID)
	assert.Empty(t, rec.Unassigned)
}

func TestOptimizeStalledTokenHonoursDeadline(t *testing.T) {
	var called atomic.Bool
	tokens := stalledTokens{release: make(chan struct{})}
	defer close(tokens.release)
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}, RouteOptimizationConfig{Tokens: tokens})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.Optimize(ctx, testModel())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, routing.ErrAuthentication)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called.Load())
}

func TestBrokenServiceAccountFailsEachRun(t *testing.T) {
	tests := []struct {
		name  string
		creds SolverCredentials
	}{
		{name: "bad base64", creds: SolverCredentials{ProjectID: "p", CredentialsBase64: "!!!"}},
		{name: "not a service account", creds: SolverCredentials{ProjectID: "p", CredentialsBase64: "bm90IGpzb24="}},
		{name: "missing file", creds: SolverCredentials{ProjectID: "p", APIKey: "k", CredentialsFile: "/nonexistent/sa.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewRouteOptimizationFromCredentials(context.Background(), tt.creds, zaptest.NewLogger(t))
			require.NotNil(t, svc)

			_, err := svc.Optimize(context.Background(), testModel())
			require.Error(t, err)
			assert.ErrorIs(t, err, routing.ErrAuthentication)
			assert.Equal(t, routing.FailureAuthentication, routing.FailureKindOf(err))
		})
	}
}

func TestLoadCredentialsJSON(t *testing.T) {
	b, err := LoadCredentialsJSON("eyJhIjoxfQ==", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	_, err = LoadCredentialsJSON("!!!", "")
	assert.Error(t, err)

	b, err = LoadCredentialsJSON("", "")
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = LoadCredentialsJSON("", t.TempDir()+"/missing.json")
	assert.Error(t, err)
}

func TestNewServiceAccountTokenSourceRejectsGarbage(t *testing.T) {
	_, err := NewServiceAccountTokenSource(context.Background(), []byte("not json"))
	assert.Error(t, err)
}
