package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/storygrab/igaccounts/internal/domain"
	"github.com/storygrab/igaccounts/internal/ports"
	"go.uber.org/zap"
)

// PoolManager owns the account records and the "current" designation.
// Every operation runs under a single mutex and persists the full pool
// document afterwards; a failed save is logged and the in-memory state
// stays authoritative for the life of the process.
type PoolManager struct {
	repo   ports.PoolRepository
	clock  ports.Clock
	logger *zap.Logger

	mu      sync.Mutex
	byID    map[domain.AccountID]*domain.Account
	order   []domain.AccountID
	current domain.AccountID
}

func NewPoolManager(ctx context.Context, repo ports.PoolRepository, clock ports.Clock, logger *zap.Logger) *PoolManager {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &PoolManager{
		repo:   repo,
		clock:  clock,
		logger: logger,
		byID:   map[domain.AccountID]*domain.Account{},
	}
	m.load(ctx)

	return m
}

func (m *PoolManager) load(ctx context.Context) {
	state, err := m.repo.Load(ctx)
	if err != nil {
		m.logger.Warn("load pool state, starting empty", zap.Error(err))
		return
	}

	for i := range state.Accounts {
		account := state.Accounts[i]
		if _, ok := m.byID[account.ID]; ok {
			continue
		}
		m.byID[account.ID] = &account
		m.order = append(m.order, account.ID)
	}

	if _, ok := m.byID[state.CurrentID]; ok {
		m.current = state.CurrentID
	}

	m.logger.Info("loaded pool state",
		zap.Int("accounts", len(m.order)),
		zap.String("current", string(m.current)))
}

// AddOrUpdate registers an account, or replaces only the secret when the
// id already exists. The first account ever added becomes current.
func (m *PoolManager) AddOrUpdate(ctx context.Context, id domain.AccountID, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byID[id]; ok {
		existing.Secret = secret
		m.logger.Info("updated account secret", zap.String("account", string(id)))
		m.persist(ctx)
		return
	}

	account := &domain.Account{
		ID:            id,
		Secret:        secret,
		Status:        domain.StatusAvailable,
		AddedAt:       m.clock.Now(),
		DailyLimit:    domain.DefaultDailyLimit,
		CooldownHours: domain.DefaultCooldownHours,
	}
	m.byID[id] = account
	m.order = append(m.order, id)

	if m.current == "" {
		m.current = id
		m.logger.Info("designated current account", zap.String("account", string(id)))
	}

	m.logger.Info("added account", zap.String("account", string(id)))
	m.persist(ctx)
}

// Remove deletes an account. Removing the current account immediately
// re-selects a new current (possibly none).
func (m *PoolManager) Remove(ctx context.Context, id domain.AccountID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		m.logger.Warn("remove: account not found", zap.String("account", string(id)))
		return false
	}

	delete(m.byID, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	if m.current == id {
		m.current = m.selectBest()
	}

	m.logger.Info("removed account", zap.String("account", string(id)))
	m.persist(ctx)
	return true
}

func (m *PoolManager) Get(id domain.AccountID) (domain.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.byID[id]
	if !ok {
		return domain.Account{}, false
	}
	return *account, true
}

// GetCurrent returns the account the next request should use.
func (m *PoolManager) GetCurrent() (domain.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.byID[m.current]
	if !ok {
		return domain.Account{}, false
	}
	return *account, true
}

// List snapshots every registered account in registration order.
func (m *PoolManager) List() []domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := make([]domain.Account, 0, len(m.order))
	for _, id := range m.order {
		accounts = append(accounts, *m.byID[id])
	}
	return accounts
}

// RecordRequest charges one request against the account (the current one
// when id is empty). Hitting the daily limit transitions the account to
// cooling exactly once and triggers one non-forced rotation attempt.
func (m *PoolManager) RecordRequest(ctx context.Context, id domain.AccountID, success bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.current
	}

	account, ok := m.byID[id]
	if !ok {
		m.logger.Warn("record request: account not found", zap.String("account", string(id)))
		return false
	}

	account.RequestCount++
	account.TotalRequests++
	account.LastUsedAt = m.clock.Now()
	if !success {
		account.ErrorCount++
	}

	if account.RequestCount >= account.DailyLimit && account.Status != domain.StatusCooling {
		account.Status = domain.StatusCooling
		m.logger.Info("account hit daily limit, cooling",
			zap.String("account", string(id)),
			zap.Int("requests", account.RequestCount))
		m.rotate(false)
	}

	m.persist(ctx)
	return true
}

// MarkBanned flags an account as banned (terminal) and force-rotates away
// from it when it was current.
func (m *PoolManager) MarkBanned(ctx context.Context, id domain.AccountID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.current
	}

	account, ok := m.byID[id]
	if !ok {
		m.logger.Warn("mark banned: account not found", zap.String("account", string(id)))
		return false
	}

	account.Status = domain.StatusBanned
	account.Notes = fmt.Sprintf("marked banned at %s", m.clock.Now().Format("2006-01-02T15:04:05Z07:00"))

	if m.current == id {
		m.rotate(true)
	}

	m.logger.Warn("marked account banned", zap.String("account", string(id)))
	m.persist(ctx)
	return true
}

func (m *PoolManager) SetDailyLimit(ctx context.Context, id domain.AccountID, limit int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.byID[id]
	if !ok {
		m.logger.Warn("set daily limit: account not found", zap.String("account", string(id)))
		return false
	}

	account.DailyLimit = limit
	m.logger.Info("set daily limit", zap.String("account", string(id)), zap.Int("limit", limit))
	m.persist(ctx)
	return true
}

func (m *PoolManager) SetCooldownHours(ctx context.Context, id domain.AccountID, hours int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.byID[id]
	if !ok {
		m.logger.Warn("set cooldown: account not found", zap.String("account", string(id)))
		return false
	}

	account.CooldownHours = hours
	m.logger.Info("set cooldown hours", zap.String("account", string(id)), zap.Int("hours", hours))
	m.persist(ctx)
	return true
}

// Rotate changes the current account. Without force, a current account
// still under its daily limit short-circuits as a successful no-op
// (old == new). Callers must treat old == new as a valid outcome.
func (m *PoolManager) Rotate(ctx context.Context, force bool) (bool, domain.AccountID, domain.AccountID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok, oldID, newID, selected := m.rotate(force)
	// Selection may reset expired cooldowns even when the current
	// account is re-selected, so those runs persist too.
	if ok && (selected || oldID != newID) {
		m.persist(ctx)
	}
	return ok, oldID, newID
}

// rotate additionally reports whether it went through selectBest, which
// mutates statuses and counters as a side effect.
func (m *PoolManager) rotate(force bool) (bool, domain.AccountID, domain.AccountID, bool) {
	oldID := m.current

	if len(m.byID) == 0 {
		m.logger.Warn("rotate: no accounts registered")
		return false, oldID, "", false
	}

	if current, ok := m.byID[m.current]; ok && !force && current.RequestCount < current.DailyLimit {
		return true, oldID, oldID, false
	}

	newID := m.selectBest()
	if newID == "" {
		m.logger.Error("rotate: selection produced no account")
		return false, oldID, "", true
	}

	m.current = newID
	if newID != oldID {
		m.logger.Info("rotated account",
			zap.String("from", string(oldID)),
			zap.String("to", string(newID)))
	}
	return true, oldID, newID, true
}

// selectBest refreshes statuses and picks the next current account:
// available accounts by lowest request count, then cooling accounts by
// oldest use, then the first registered account as a last resort. Ties
// resolve by registration order so selection is deterministic.
func (m *PoolManager) selectBest() domain.AccountID {
	if len(m.order) == 0 {
		return ""
	}

	now := m.clock.Now()
	for _, id := range m.order {
		account := m.byID[id]
		status, reset := account.Classify(now)
		account.Status = status
		if reset {
			account.RequestCount = 0
		}
	}

	var best *domain.Account
	for _, id := range m.order {
		account := m.byID[id]
		if account.Status != domain.StatusAvailable {
			continue
		}
		if best == nil || account.RequestCount < best.RequestCount {
			best = account
		}
	}
	if best != nil {
		return best.ID
	}

	// All exhausted: the cooling account idle the longest is closest to
	// recovery. A zero LastUsedAt sorts first.
	for _, id := range m.order {
		account := m.byID[id]
		if account.Status != domain.StatusCooling {
			continue
		}
		if best == nil || account.LastUsedAt.Before(best.LastUsedAt) {
			best = account
		}
	}
	if best != nil {
		return best.ID
	}

	return m.order[0]
}

func (m *PoolManager) persist(ctx context.Context) {
	state := domain.PoolState{
		Accounts:  make([]domain.Account, 0, len(m.order)),
		CurrentID: m.current,
		UpdatedAt: m.clock.Now(),
	}
	for _, id := range m.order {
		state.Accounts = append(state.Accounts, *m.byID[id])
	}

	if err := m.repo.Save(ctx, state); err != nil {
		m.logger.Error("persist pool state", zap.Error(err))
	}
}
