package domain

import "time"

// PoolState is the persisted pool document: every registered account in
// registration order, plus the current designation. Registration order is
// load-bearing: selection tie-breaks resolve by it.
type PoolState struct {
	Accounts  []Account
	CurrentID AccountID
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can hand the state to persistence
// without racing later in-place mutation.
func (s PoolState) Clone() PoolState {
	accounts := make([]Account, len(s.Accounts))
	copy(accounts, s.Accounts)

	return PoolState{
		Accounts:  accounts,
		CurrentID: s.CurrentID,
		UpdatedAt: s.UpdatedAt,
	}
}
