package common

import "time"

// Freshness TTLs
const (
	FreshnessBackup = 7 * 24 * time.Hour // export reminder after a week without a backup
)

// IsFresh returns true if the given timestamp is within the TTL of now
func IsFresh(updated, now time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}
