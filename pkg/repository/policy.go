package repository

import "time"

// Tier is a TTL class. Each cached read belongs to exactly one tier.
type Tier int

const (
	// TierShort holds fast-changing views: popular lists, comments, notifications, search.
	TierShort Tier = iota
	// TierMedium holds trees, items, likes, follows and recommendations.
	TierMedium
	// TierLong holds user profiles.
	TierLong
	// TierVeryLong holds reference data that is never invalidated.
	TierVeryLong

	tierCount
)

var defaultTTLs = [tierCount]time.Duration{
	TierShort:    5 * time.Minute,
	TierMedium:   30 * time.Minute,
	TierLong:     time.Hour,
	TierVeryLong: 24 * time.Hour,
}

// Duration returns the tier's default TTL.
func (t Tier) Duration() time.Duration {
	if t < 0 || t >= tierCount {
		return defaultTTLs[TierMedium]
	}
	return defaultTTLs[t]
}

func (t Tier) String() string {
	switch t {
	case TierShort:
		return "short"
	case TierMedium:
		return "medium"
	case TierLong:
		return "long"
	case TierVeryLong:
		return "very_long"
	default:
		return "unknown"
	}
}
