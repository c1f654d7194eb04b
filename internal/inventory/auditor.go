// Package inventory audits seat and capacity state against active reservations.
package inventory

import (
	"context"

	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/observability"
)

// Auditor reports inventory drift. It never repairs anything.
type Auditor struct {
	reader domain.DriftReader
	logger observability.Logger
}

func NewAuditor(reader domain.DriftReader, logger observability.Logger) *Auditor {
	return &Auditor{reader: reader, logger: logger}
}

// Check reads the drift report, exports it as gauges and logs any violations.
func (a *Auditor) Check(ctx context.Context) (domain.DriftReport, error) {
	report, err := a.reader.InventoryDrift(ctx)
	if err != nil {
		a.logger.WithError(err).Error("inventory audit failed")
		return report, err
	}

	counts := map[string]int{
		"orphaned_seats":   len(report.OrphanedSeats),
		"unheld_seats":     len(report.UnheldSeats),
		"double_booked":    len(report.DoubleBooked),
		"oversold_options": len(report.OversoldOptions),
	}
	fields := make(map[string]interface{}, len(counts))
	for check, n := range counts {
		observability.InventoryDrift.WithLabelValues(check).Set(float64(n))
		fields[check] = n
	}

	if report.Clean() {
		a.logger.Debug("inventory consistent")
		return report, nil
	}
	a.logger.WithFields(fields).Warn("inventory drift detected")
	return report, nil
}
