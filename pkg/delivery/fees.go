package delivery

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/delgo-app/delgo-backend/pkg/config"
)

// FeeSchedule carries the parsed pricing knobs for shipment fees and agent
// earnings. Amounts are INR, distances kilometers.
type FeeSchedule struct {
	BaseFee           decimal.Decimal
	PerKmRate         decimal.Decimal
	FreeDistanceKm    decimal.Decimal
	PeakMultiplier    decimal.Decimal
	CommissionRate    decimal.Decimal
	DefaultDistanceKm decimal.Decimal
	ShippingFee       decimal.Decimal
	TaxRate           decimal.Decimal
	AvgSpeedKmh       decimal.Decimal
}

// NewFeeSchedule parses the delivery configuration into decimal form.
func NewFeeSchedule(cfg config.DeliveryConfig) (FeeSchedule, error) {
	fields := []struct {
		name  string
		raw   string
		value *decimal.Decimal
	}{
		{"base fee", cfg.BaseFee, nil},
		{"per km rate", cfg.PerKmRate, nil},
		{"free distance km", cfg.FreeDistanceKm, nil},
		{"peak multiplier", cfg.PeakMultiplier, nil},
		{"commission rate", cfg.CommissionRate, nil},
		{"default distance km", cfg.DefaultDistanceKm, nil},
		{"shipping fee", cfg.ShippingFee, nil},
		{"tax rate", cfg.TaxRate, nil},
		{"avg speed kmh", cfg.AvgSpeedKmh, nil},
	}

	var schedule FeeSchedule
	targets := []*decimal.Decimal{
		&schedule.BaseFee,
		&schedule.PerKmRate,
		&schedule.FreeDistanceKm,
		&schedule.PeakMultiplier,
		&schedule.CommissionRate,
		&schedule.DefaultDistanceKm,
		&schedule.ShippingFee,
		&schedule.TaxRate,
		&schedule.AvgSpeedKmh,
	}
	for i, field := range fields {
		parsed, err := decimal.NewFromString(field.raw)
		if err != nil {
			return FeeSchedule{}, fmt.Errorf("parsing delivery %s %q: %w", field.name, field.raw, err)
		}
		*targets[i] = parsed
	}

	if schedule.AvgSpeedKmh.IsZero() {
		return FeeSchedule{}, fmt.Errorf("delivery avg speed must be positive")
	}
	return schedule, nil
}

// Earnings is the per-delivery settlement breakdown. Each component is
// rounded to two decimals before the next one is derived.
type Earnings struct {
	BaseFee       decimal.Decimal
	DistanceBonus decimal.Decimal
	PeakBonus     decimal.Decimal
	Total         decimal.Decimal
	Commission    decimal.Decimal
	NetAmount     decimal.Decimal
}

// CalculateEarnings computes agent pay for a completed delivery. Distance
// beyond the free band earns the per-km rate, deliveries completed during
// peak windows earn the configured multiplier on top, and the platform
// commission comes out of the total.
func (s FeeSchedule) CalculateEarnings(distanceKm decimal.Decimal, completedAt time.Time) Earnings {
	base := s.BaseFee.Round(2)

	billableKm := distanceKm.Sub(s.FreeDistanceKm)
	if billableKm.IsNegative() {
		billableKm = decimal.Zero
	}
	distanceBonus := billableKm.Mul(s.PerKmRate).Round(2)

	peakBonus := decimal.Zero
	if IsPeakHour(completedAt) {
		peakBonus = base.Add(distanceBonus).Mul(s.PeakMultiplier.Sub(decimal.NewFromInt(1))).Round(2)
	}

	total := base.Add(distanceBonus).Add(peakBonus).Round(2)
	commission := total.Mul(s.CommissionRate).Round(2)
	net := total.Sub(commission).Round(2)

	return Earnings{
		BaseFee:       base,
		DistanceBonus: distanceBonus,
		PeakBonus:     peakBonus,
		Total:         total,
		Commission:    commission,
		NetAmount:     net,
	}
}

// Tax returns the order tax for a subtotal, rounded to two decimals.
func (s FeeSchedule) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(s.TaxRate).Round(2)
}

// ETA estimates delivery duration for a distance at the configured average
// speed, rounded up to whole minutes.
func (s FeeSchedule) ETA(distanceKm decimal.Decimal) time.Duration {
	minutes := distanceKm.Div(s.AvgSpeedKmh).Mul(decimal.NewFromInt(60)).Ceil().IntPart()
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

// Peak demand windows: lunch 12:00-13:59 and dinner 19:00-21:59 local time.
var peakWindows = [][2]int{{12, 14}, {19, 22}}

// IsPeakHour reports whether t falls inside a peak demand window.
func IsPeakHour(t time.Time) bool {
	hour := t.Hour()
	for _, window := range peakWindows {
		if hour >= window[0] && hour < window[1] {
			return true
		}
	}
	return false
}
