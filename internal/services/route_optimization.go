package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
)

// DefaultRouteOptimizationURL is the Google Route Optimization API base
const DefaultRouteOptimizationURL = "https://routeoptimization.googleapis.com"

// RouteOptimizationConfig configures the Google Route Optimization adapter.
// Tokens takes precedence over APIKey when both are set.
type RouteOptimizationConfig struct {
	ProjectID  string
	APIKey     string
	Tokens     oauth2.TokenSource
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// RouteOptimizationService calls Google's optimizeTours endpoint
type RouteOptimizationService struct {
	projectID string
	apiKey    string
	tokens    oauth2.TokenSource
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
}

// NewRouteOptimizationService creates the solver adapter
func NewRouteOptimizationService(cfg RouteOptimizationConfig) *RouteOptimizationService {
	s := &RouteOptimizationService{
		projectID: cfg.ProjectID,
		apiKey:    cfg.APIKey,
		tokens:    cfg.Tokens,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    cfg.HTTPClient,
		logger:    cfg.Logger,
	}
	if s.baseURL == "" {
		s.baseURL = DefaultRouteOptimizationURL
	}
	if s.client == nil {
		// Deadlines come from the caller's context
		s.client = &http.Client{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// LatLng is a coordinate on the wire
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location wraps a coordinate
type Location struct {
	LatLng LatLng `json:"latLng"`
}

// Waypoint is an arrival or departure point
type Waypoint struct {
	Location Location `json:"location"`
}

// TimeWindow is an RFC3339 time range
type TimeWindow struct {
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// VisitRequest is a pickup or delivery visit
type VisitRequest struct {
	ArrivalWaypoint Waypoint     `json:"arrivalWaypoint"`
	Duration        string       `json:"duration,omitempty"` // e.g. "300s"
	TimeWindows     []TimeWindow `json:"timeWindows,omitempty"`
}

// Load is a quantity of one load type
type Load struct {
	Amount string `json:"amount"` // int64 encoded as a string
}

// Shipment is one pickup and delivery pair
type Shipment struct {
	Pickups     []VisitRequest  `json:"pickups"`
	Deliveries  []VisitRequest  `json:"deliveries"`
	LoadDemands map[string]Load `json:"loadDemands,omitempty"`
	Label       string          `json:"label,omitempty"`
}

// LoadLimit is a vehicle capacity for one load type
type LoadLimit struct {
	MaxLoad string `json:"maxLoad"`
}

// Vehicle is one driver
type Vehicle struct {
	StartWaypoint    Waypoint             `json:"startWaypoint"`
	EndWaypoint      Waypoint             `json:"endWaypoint"`
	Label            string               `json:"label,omitempty"`
	CostPerHour      float64              `json:"costPerHour,omitempty"`
	CostPerKilometer float64              `json:"costPerKilometer,omitempty"`
	FixedCost        float64              `json:"fixedCost,omitempty"`
	LoadLimits       map[string]LoadLimit `json:"loadLimits,omitempty"`
}

// ShipmentModel is the optimization problem
type ShipmentModel struct {
	Shipments       []Shipment `json:"shipments"`
	Vehicles        []Vehicle  `json:"vehicles"`
	GlobalStartTime string     `json:"globalStartTime,omitempty"`
	GlobalEndTime   string     `json:"globalEndTime,omitempty"`
}

// OptimizeToursRequest is the request body
type OptimizeToursRequest struct {
	Model   ShipmentModel `json:"model"`
	Timeout string        `json:"timeout,omitempty"`
	Label   string        `json:"label,omitempty"`
}

// Visit is a stop in a returned route. Zero-valued fields are omitted on
// the wire, so a missing shipmentIndex may mean shipment 0.
type Visit struct {
	ShipmentIndex *int   `json:"shipmentIndex"`
	IsPickup      bool   `json:"isPickup"`
	ShipmentLabel string `json:"shipmentLabel"`
	StartTime     string `json:"startTime"`
}

// RouteMetrics are the per-route aggregates
type RouteMetrics struct {
	PerformedShipmentCount int     `json:"performedShipmentCount"`
	TravelDistanceMeters   float64 `json:"travelDistanceMeters"`
	TotalDuration          string  `json:"totalDuration"`
	TravelDuration         string  `json:"travelDuration"`
	VisitDuration          string  `json:"visitDuration"`
}

// ShipmentRoute is the route of one vehicle
type ShipmentRoute struct {
	VehicleIndex *int         `json:"vehicleIndex"`
	VehicleLabel string       `json:"vehicleLabel"`
	Visits       []Visit      `json:"visits"`
	Metrics      RouteMetrics `json:"metrics"`
}

// SkippedShipment is a shipment the solver could not place
type SkippedShipment struct {
	Index *int   `json:"index"`
	Label string `json:"label"`
}

// Metrics are the solution-wide aggregates
type Metrics struct {
	UsedVehicleCount int     `json:"usedVehicleCount"`
	TotalCost        float64 `json:"totalCost"`
}

// OptimizeToursResponse is the response body. Routes is a pointer so a body
// without the field can be told apart from an empty list.
type OptimizeToursResponse struct {
	Routes           *[]ShipmentRoute  `json:"routes"`
	SkippedShipments []SkippedShipment `json:"skippedShipments"`
	Metrics          Metrics           `json:"metrics"`
}

// Optimize implements routing.Solver
func (s *RouteOptimizationService) Optimize(ctx context.Context, m *routing.Model) (*routing.Solution, error) {
	endpoint := fmt.Sprintf("%s/v1/projects/%s:optimizeTours", s.baseURL, s.projectID)

	body, err := json.Marshal(BuildOptimizeToursRequest(m))
	if err != nil {
		return nil, routing.NewSolverRequestError(0, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, routing.NewSolverRequestError(0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if err := s.authorize(req); err != nil {
		return nil, err
	}

	s.logger.Info("calling route optimization",
		zap.String("endpoint", endpoint),
		zap.Int("shipments", len(m.Shipments)),
		zap.Int("vehicles", len(m.Vehicles)))

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, routing.NewSolverRequestError(0, fmt.Errorf("call optimizeTours: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, routing.NewSolverRequestError(resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		oerr := routing.NewAuthenticationError(fmt.Errorf("solver rejected credential: %s", snippet(raw)))
		oerr.StatusCode = resp.StatusCode
		return nil, oerr
	case resp.StatusCode != http.StatusOK:
		s.logger.Warn("route optimization error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", snippet(raw)))
		return nil, routing.NewSolverRequestError(resp.StatusCode,
			fmt.Errorf("solver returned status %d: %s", resp.StatusCode, snippet(raw)))
	}

	var parsed OptimizeToursResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, routing.NewMalformedResponseError(fmt.Errorf("decode response: %w", err))
	}
	sol, err := parsed.toSolution(m)
	if err != nil {
		return nil, routing.NewMalformedResponseError(err)
	}

	s.logger.Info("route optimization finished",
		zap.Int("routes", len(sol.Routes)),
		zap.Int("used_vehicles", parsed.Metrics.UsedVehicleCount),
		zap.Int("skipped", len(sol.SkippedShipments)),
		zap.Float64("total_cost", parsed.Metrics.TotalCost),
		zap.Duration("elapsed", time.Since(start)))

	return sol, nil
}

func (s *RouteOptimizationService) authorize(req *http.Request) error {
	switch {
	case s.tokens != nil:
		tok, err := s.token(req.Context())
		if err != nil {
			return routing.NewAuthenticationError(fmt.Errorf("obtain access token: %w", err))
		}
		tok.SetAuthHeader(req)
	case s.apiKey != "":
		req.Header.Set("X-Goog-Api-Key", s.apiKey)
	default:
		return routing.NewAuthenticationError(errors.New("no solver credential configured"))
	}
	return nil
}

// token fetches an access token, giving up when ctx is done. TokenSource has
// no context of its own, so a stalled token endpoint is abandoned rather than
// waited on.
func (s *RouteOptimizationService) token(ctx context.Context) (*oauth2.Token, error) {
	type result struct {
		tok *oauth2.Token
		err error
	}
	ch := make(chan result, 1)
	go func() {
		tok, err := s.tokens.Token()
		ch <- result{tok, err}
	}()

	select {
	case r := <-ch:
		return r.tok, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BuildOptimizeToursRequest translates a model into the wire request
func BuildOptimizeToursRequest(m *routing.Model) OptimizeToursRequest {
	loadType := m.LoadType
	if loadType == "" {
		loadType = routing.LoadTypeItems
	}

	req := OptimizeToursRequest{
		Model: ShipmentModel{
			Shipments: make([]Shipment, 0, len(m.Shipments)),
			Vehicles:  make([]Vehicle, 0, len(m.Vehicles)),
		},
	}
	if !m.GlobalStart.IsZero() {
		req.Model.GlobalStartTime = formatTime(m.GlobalStart)
	}
	if !m.GlobalEnd.IsZero() {
		req.Model.GlobalEndTime = formatTime(m.GlobalEnd)
	}
	if m.Timeout > 0 {
		req.Timeout = formatDuration(m.Timeout)
	}

	for _, sh := range m.Shipments {
		req.Model.Shipments = append(req.Model.Shipments, Shipment{
			Pickups:    []VisitRequest{visitRequest(sh.Pickup)},
			Deliveries: []VisitRequest{visitRequest(sh.Delivery)},
			LoadDemands: map[string]Load{
				loadType: {Amount: strconv.Itoa(sh.LoadDemand)},
			},
			Label: sh.Label,
		})
	}

	for _, v := range m.Vehicles {
		wv := Vehicle{
			StartWaypoint:    waypoint(v.Start),
			EndWaypoint:      waypoint(v.End),
			Label:            v.Label,
			CostPerHour:      v.CostPerHour,
			CostPerKilometer: v.CostPerKilometer,
			FixedCost:        v.FixedCost,
		}
		if v.MaxLoad != nil {
			wv.LoadLimits = map[string]LoadLimit{loadType: {MaxLoad: strconv.Itoa(*v.MaxLoad)}}
		}
		req.Model.Vehicles = append(req.Model.Vehicles, wv)
	}

	return req
}

func visitRequest(v routing.VisitRequest) VisitRequest {
	out := VisitRequest{ArrivalWaypoint: waypoint(v.Location)}
	if v.Dwell > 0 {
		out.Duration = formatDuration(v.Dwell)
	}
	if v.Window != nil {
		out.TimeWindows = []TimeWindow{{
			StartTime: formatTime(v.Window.Start),
			EndTime:   formatTime(v.Window.End),
		}}
	}
	return out
}

func waypoint(c routing.LatLng) Waypoint {
	return Waypoint{Location: Location{LatLng: LatLng{Latitude: c.Latitude, Longitude: c.Longitude}}}
}

func (r *OptimizeToursResponse) toSolution(m *routing.Model) (*routing.Solution, error) {
	if r.Routes == nil {
		return nil, errors.New("response has no routes")
	}

	sol := &routing.Solution{Routes: make([]routing.VehicleRoute, 0, len(*r.Routes))}
	for i, sr := range *r.Routes {
		vr := routing.VehicleRoute{
			VehicleIndex: intOrZero(sr.VehicleIndex),
			VehicleLabel: sr.VehicleLabel,
			Visits:       make([]routing.Visit, 0, len(sr.Visits)),
		}

		var err error
		vr.Metrics.PerformedShipmentCount = sr.Metrics.PerformedShipmentCount
		vr.Metrics.TravelDistanceMeters = sr.Metrics.TravelDistanceMeters
		if vr.Metrics.TotalDuration, err = parseDuration(sr.Metrics.TotalDuration); err != nil {
			return nil, fmt.Errorf("route %d totalDuration: %w", i, err)
		}
		if vr.Metrics.TravelDuration, err = parseDuration(sr.Metrics.TravelDuration); err != nil {
			return nil, fmt.Errorf("route %d travelDuration: %w", i, err)
		}
		if vr.Metrics.VisitDuration, err = parseDuration(sr.Metrics.VisitDuration); err != nil {
			return nil, fmt.Errorf("route %d visitDuration: %w", i, err)
		}

		for j, v := range sr.Visits {
			visit := routing.Visit{
				ShipmentIndex:    intOrZero(v.ShipmentIndex),
				HasShipmentIndex: hasShipmentIndex(v, m),
				ShipmentLabel:    v.ShipmentLabel,
				IsPickup:         v.IsPickup,
			}
			if v.StartTime != "" {
				t, err := time.Parse(time.RFC3339Nano, v.StartTime)
				if err != nil {
					return nil, fmt.Errorf("route %d visit %d startTime: %w", i, j, err)
				}
				visit.StartTime = t
			}
			vr.Visits = append(vr.Visits, visit)
		}
		sol.Routes = append(sol.Routes, vr)
	}

	for _, sk := range r.SkippedShipments {
		sol.SkippedShipments = append(sol.SkippedShipments, intOrZero(sk.Index))
	}
	return sol, nil
}

// hasShipmentIndex reports whether a visit's index can be trusted. An omitted
// shipmentIndex is either shipment 0 or a solver that only echoes labels, so
// it only counts as 0 when the label is empty or names shipment 0.
func hasShipmentIndex(v Visit, m *routing.Model) bool {
	if v.ShipmentIndex != nil || v.ShipmentLabel == "" {
		return true
	}
	return len(m.Shipments) > 0 && v.ShipmentLabel == m.Shipments[0].Label
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// parseDuration reads protobuf JSON durations such as "3600s" or "1.5s"
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if !strings.HasSuffix(s, "s") {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.ParseDuration(s)
}

func formatDuration(d time.Duration) string {
	return strconv.FormatInt(int64(d.Round(time.Second)/time.Second), 10) + "s"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func snippet(b []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
