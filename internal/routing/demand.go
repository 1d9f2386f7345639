package routing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/werawoot/Krua-Thai1-sub006/internal/models"

	"go.uber.org/zap"
)

// DateLayout is the ISO date format used for delivery dates
const DateLayout = "2006-01-02"

// SubscriptionQuery selects the subscriptions scheduled for one delivery date.
// The delivery-days column is free text, so a subscription matches when it
// mentions either DayName or the literal Date.
type SubscriptionQuery struct {
	Date     string
	DayName  string
	TimeSlot string // optional, exact match on the preferred delivery time
}

// DataStore is the read contract the aggregator needs from persistence
type DataStore interface {
	ActiveSubscriptions(ctx context.Context, q SubscriptionQuery) ([]models.SubscriptionRecord, error)
}

// Demand is the normalized delivery list for a date
type Demand struct {
	Deliveries []Delivery
	Warnings   []Warning
}

// TotalItems sums the estimated item counts
func (d Demand) TotalItems() int {
	total := 0
	for _, del := range d.Deliveries {
		total += del.ItemCount
	}
	return total
}

// DemandAggregator turns active subscriptions into Delivery records
type DemandAggregator struct {
	store        DataStore
	perItemPrice float64
	logger       *zap.Logger
}

// NewDemandAggregator creates an aggregator. perItemPrice is the assumed price
// of one item used to estimate item counts from subscription amounts.
func NewDemandAggregator(store DataStore, perItemPrice float64, logger *zap.Logger) *DemandAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DemandAggregator{store: store, perItemPrice: perItemPrice, logger: logger}
}

// Aggregate loads the deliveries for date and resolves their coordinates.
// A persistence failure is reported as a warning with no deliveries.
func (a *DemandAggregator) Aggregate(ctx context.Context, date time.Time, timeSlot string, geo *GeoResolver) Demand {
	q := SubscriptionQuery{
		Date:     date.Format(DateLayout),
		DayName:  date.Weekday().String(),
		TimeSlot: strings.TrimSpace(timeSlot),
	}

	records, err := a.store.ActiveSubscriptions(ctx, q)
	if err != nil {
		a.logger.Warn("failed to load subscriptions",
			zap.String("date", q.Date),
			zap.String("day", q.DayName),
			zap.Error(err))
		return Demand{
			Deliveries: []Delivery{},
			Warnings: []Warning{{
				Code:    WarningPersistenceUnavailable,
				Message: fmt.Sprintf("could not load subscriptions: %v", err),
			}},
		}
	}

	demand := Demand{Deliveries: make([]Delivery, 0, len(records))}
	for i := range records {
		d := a.toDelivery(&records[i])

		coords, fallback := geo.Resolve(d.PostalCode)
		d.Latitude = &coords.Latitude
		d.Longitude = &coords.Longitude
		d.GeocodeFallback = fallback
		if fallback {
			demand.Warnings = append(demand.Warnings, Warning{
				Code:       WarningGeocodeFallback,
				DeliveryID: d.ID,
				Message:    fmt.Sprintf("postal code %q has no known zone, using restaurant location", d.PostalCode),
			})
		}

		demand.Deliveries = append(demand.Deliveries, d)
	}

	sort.SliceStable(demand.Deliveries, func(i, j int) bool {
		x, y := demand.Deliveries[i], demand.Deliveries[j]
		if x.PostalCode != y.PostalCode {
			return x.PostalCode < y.PostalCode
		}
		if x.CustomerName != y.CustomerName {
			return x.CustomerName < y.CustomerName
		}
		return x.ID < y.ID
	})

	a.logger.Info("demand loaded",
		zap.String("date", q.Date),
		zap.String("day", q.DayName),
		zap.Int("deliveries", len(demand.Deliveries)),
		zap.Int("items", demand.TotalItems()),
		zap.Int("warnings", len(demand.Warnings)))

	return demand
}

func (a *DemandAggregator) toDelivery(rec *models.SubscriptionRecord) Delivery {
	d := Delivery{
		ID:               rec.ID,
		CustomerName:     rec.CustomerName(),
		Address:          rec.FullAddress(),
		PostalCode:       NormalizePostalCode(rec.ZipCode),
		ItemCount:        EstimateItemCount(rec.TotalAmount, a.perItemPrice),
		Amount:           rec.TotalAmount,
		AssignedDriverID: rec.AssignedDriverID,
	}
	if rec.Phone != nil {
		d.Phone = *rec.Phone
	}
	if rec.PreferredDeliveryTime != nil && strings.TrimSpace(*rec.PreferredDeliveryTime) != "" {
		slot := strings.TrimSpace(*rec.PreferredDeliveryTime)
		d.TimeSlot = &slot
	}
	return d
}

// EstimateItemCount approximates the number of meals in a subscription from
// its monetary amount. Always at least 1.
func EstimateItemCount(amount, perItemPrice float64) int {
	if perItemPrice <= 0 || amount <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(amount/perItemPrice-1e-9)))
}
