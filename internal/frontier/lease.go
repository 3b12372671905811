package frontier

import (
	"time"
)

// LeaseConfig tunes the lease allocator.
type LeaseConfig struct {
	BatchSize int
	TTL       time.Duration
}

// DefaultLeaseConfig returns the standard 100 URL / one hour lease.
func DefaultLeaseConfig() LeaseConfig {
	return LeaseConfig{BatchSize: BatchSize, TTL: LeaseTTL}
}

// Normalize fills zero values with defaults and caps the batch size at BatchSize.
func (c LeaseConfig) Normalize() LeaseConfig {
	if c.BatchSize <= 0 || c.BatchSize > BatchSize {
		c.BatchSize = BatchSize
	}
	if c.TTL <= 0 {
		c.TTL = LeaseTTL
	}
	return c
}

// Cutoff is the latest update time at which an assigned URL counts as abandoned.
func (c LeaseConfig) Cutoff(now time.Time) time.Time {
	return now.Add(-c.TTL)
}

// Leasable reports whether rec may be handed out at now: it is new, or its
// lease is at least TTL old.
func (c LeaseConfig) Leasable(rec URLRecord, now time.Time) bool {
	switch rec.Status {
	case StatusNew:
		return true
	case StatusAssigned:
		return !rec.Updated.After(c.Cutoff(now))
	default:
		return false
	}
}

// Assign returns rec leased to userIDHash at now.
func Assign(rec URLRecord, userIDHash string, now time.Time) URLRecord {
	rec.Status = StatusAssigned
	rec.UserIDHash = userIDHash
	rec.Updated = now.UTC()
	return rec
}

// ValidateRequester rejects lease requests without a requester.
func ValidateRequester(userIDHash string) error {
	if userIDHash == "" {
		return &ValidationError{Reason: "lease requires a requester", Err: ErrEmptyUser}
	}
	return nil
}
