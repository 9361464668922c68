package delivery

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// weekdayAbbrev is indexed by ISO weekday (1=Mon .. 7=Sun).
var weekdayAbbrev = [8]string{"", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// DeliveryHint renders the next-delivery-day hint for a supplier, e.g.
// "Order by 15:00 for Tue". Returns nil when the supplier has no rule,
// the rule lacks a cutoff time or delivery days, or the lookup fails.
func (e *Estimator) DeliveryHint(ctx context.Context, supplierID string) *string {
	rule, err := e.rules.GetRule(ctx, supplierID)
	if err != nil {
		e.log.Warn().Err(err).Str("supplier_id", supplierID).
			Msg("delivery rule lookup failed, no delivery hint")
		return nil
	}
	if rule == nil || rule.CutoffTime == "" || len(rule.DeliveryDays) == 0 {
		return nil
	}

	today := isoWeekday(e.now())

	days := make([]int, 0, len(rule.DeliveryDays))
	for _, d := range rule.DeliveryDays {
		if d >= 1 && d <= 7 {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return nil
	}
	sort.Ints(days)

	// First delivery day strictly after today; wrap to the earliest day
	// next week when today is at or past the last one.
	next := days[0]
	for _, d := range days {
		if d > today {
			next = d
			break
		}
	}

	hint := fmt.Sprintf("Order by %s for %s", rule.CutoffTime, weekdayAbbrev[next])
	return &hint
}

// isoWeekday maps Go's Sunday=0 convention to ISO 1=Mon .. 7=Sun.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
