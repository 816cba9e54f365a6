package alerting

import (
	"fmt"
	"math"

	"github.com/ehudso7/vrux-observe/pkg/models"
)

// equalsEpsilon absorbs float rounding when comparing for equality.
const equalsEpsilon = 1e-9

// conditionHolds reports whether value violates the rule this tick.
// Caller holds e.mu so anomaly evaluation sees a consistent history.
func (e *Engine) conditionHolds(rule *models.AlertRule, value float64) bool {
	switch rule.Condition {
	case models.ConditionAbove:
		return value > rule.Threshold
	case models.ConditionBelow:
		return value < rule.Threshold
	case models.ConditionEquals:
		return math.Abs(value-rule.Threshold) <= equalsEpsilon
	case models.ConditionAnomaly:
		return e.anomalous(rule, value)
	default:
		return false
	}
}

// anomalous fires when the value deviates from the rolling baseline by more
// than Threshold standard deviations. The baseline excludes the current
// sample and must hold at least minSamples entries; a flat baseline
// (zero deviation) never fires.
func (e *Engine) anomalous(rule *models.AlertRule, value float64) bool {
	window := e.histories[rule.Metric]
	if window == nil {
		return false
	}

	base := window.baseline()
	if len(base) < e.minSamples {
		return false
	}

	m := mean(base)

	sd := popStdDev(base, m)
	if sd == 0 {
		return false
	}

	return math.Abs(value-m) > rule.Threshold*sd
}

func firingMessage(rule *models.AlertRule, value float64) string {
	if rule.Condition == models.ConditionAnomaly {
		return fmt.Sprintf("%s deviates from baseline: current value %g (threshold %g stddev)",
			rule.Metric, value, rule.Threshold)
	}

	return fmt.Sprintf("%s is %g (%s %g)", rule.Metric, value, rule.Condition, rule.Threshold)
}

func resolvedMessage(rule *models.AlertRule, value float64) string {
	return fmt.Sprintf("%s recovered: current value %g", rule.Metric, value)
}
