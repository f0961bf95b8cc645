package domain

import "time"

type AccountID string

// AccountStatus tracks where an account sits in its usage lifecycle.
type AccountStatus string

const (
	StatusAvailable AccountStatus = "available"
	StatusCooling   AccountStatus = "cooling"
	StatusBanned    AccountStatus = "banned"
	StatusUnknown   AccountStatus = "unknown"
)

const (
	DefaultDailyLimit    = 20
	DefaultCooldownHours = 24
)

// Account is one upstream credential set plus its usage counters.
// LastUsedAt stays zero until the account serves its first request.
type Account struct {
	ID            AccountID
	Secret        string
	Status        AccountStatus
	AddedAt       time.Time
	LastUsedAt    time.Time
	RequestCount  int
	DailyLimit    int
	CooldownHours int
	TotalRequests int
	ErrorCount    int
	Notes         string
}

// UsageRatio reports RequestCount relative to DailyLimit. A non-positive
// limit yields 0 so callers never divide by zero.
func (a Account) UsageRatio() float64 {
	if a.DailyLimit <= 0 {
		return 0
	}
	return float64(a.RequestCount) / float64(a.DailyLimit)
}

// CooledDownAt returns the instant the cooldown window ends.
func (a Account) CooledDownAt() time.Time {
	return a.LastUsedAt.Add(time.Duration(a.CooldownHours) * time.Hour)
}

// Classify recomputes the account status as of now. Banned is terminal.
// An account that exhausted its daily limit is cooling until the cooldown
// window elapses; resetCount reports whether the caller must zero
// RequestCount because that window has passed.
func (a Account) Classify(now time.Time) (status AccountStatus, resetCount bool) {
	if a.Status == StatusBanned {
		return StatusBanned, false
	}

	if a.LastUsedAt.IsZero() {
		return StatusAvailable, false
	}

	if a.RequestCount >= a.DailyLimit {
		if now.Before(a.CooledDownAt()) {
			return StatusCooling, false
		}
		return StatusAvailable, true
	}

	return StatusAvailable, false
}
