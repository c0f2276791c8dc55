package promotions

import (
	"time"

	"github.com/texnika/texnika-backend/pkg/db/models"
)

// ComputeBoost returns the highest plan weight among activations live at now, or 0.
// Overlapping activations never add up.
func ComputeBoost(activations []models.PromotionActivation, now time.Time) float64 {
	best := 0.0
	for _, activation := range activations {
		if !activation.IsLiveAt(now) {
			continue
		}
		if boost := activation.PlanCode.Boost(); boost > best {
			best = boost
		}
	}
	return best
}
