package inventory

// AlertLevel classifies how close a location is to running out
type AlertLevel string

const (
	AlertLevelNone       AlertLevel = ""
	AlertLevelLow        AlertLevel = "LOW"
	AlertLevelCritical   AlertLevel = "CRITICAL"
	AlertLevelOutOfStock AlertLevel = "OUT_OF_STOCK"
)

// Severity orders the levels, higher is worse
func (l AlertLevel) Severity() int {
	switch l {
	case AlertLevelLow:
		return 1
	case AlertLevelCritical:
		return 2
	case AlertLevelOutOfStock:
		return 3
	}
	return 0
}

// SuggestedAction returns the operator hint published with an alert
func (l AlertLevel) SuggestedAction() string {
	switch l {
	case AlertLevelOutOfStock:
		return "Restock immediately or transfer stock from another location"
	case AlertLevelCritical:
		return "Expedite reorder or initiate a transfer"
	case AlertLevelLow:
		return "Plan a reorder"
	}
	return ""
}

// Default alert thresholds, inclusive
const (
	DefaultLowThreshold      = 10
	DefaultCriticalThreshold = 3
)

// AlertPolicy maps an available quantity onto an AlertLevel.
// Available <= Critical is CRITICAL, <= Low is LOW, 0 is OUT_OF_STOCK.
type AlertPolicy struct {
	Low      int
	Critical int
}

// DefaultAlertPolicy returns the default thresholds
func DefaultAlertPolicy() AlertPolicy {
	return AlertPolicy{Low: DefaultLowThreshold, Critical: DefaultCriticalThreshold}
}

// LevelFor returns the band an available quantity falls into
func (p AlertPolicy) LevelFor(available int) AlertLevel {
	switch {
	case available <= 0:
		return AlertLevelOutOfStock
	case available <= p.Critical:
		return AlertLevelCritical
	case available <= p.Low:
		return AlertLevelLow
	}
	return AlertLevelNone
}

// CrossedDownward reports the new level when a change made things worse
func (p AlertPolicy) CrossedDownward(before, after int) (AlertLevel, bool) {
	if after >= before {
		return AlertLevelNone, false
	}
	prev, next := p.LevelFor(before), p.LevelFor(after)
	if next.Severity() > prev.Severity() {
		return next, true
	}
	return AlertLevelNone, false
}
