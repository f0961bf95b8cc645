package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"github.com/storygrab/igaccounts/internal/domain"
	"github.com/storygrab/igaccounts/internal/ports"
)

const (
	configName      = "config"
	configType      = "toml"
	poolPathKey     = "pool.path"
	poolFileMode    = 0o600
	poolDirMode     = 0o700
	poolConfigDir   = ".igaccounts"
	poolConfigFile  = "pool.toml"
	tempFilePattern = ".pool-*.toml.tmp"
)

// Repository persists the whole pool document to a single TOML file.
// Writes go through a temp file and rename so a crash never leaves a
// half-written pool behind.
type Repository struct {
	poolPath string
	mu       *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.PoolRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, poolConfigDir, poolConfigFile)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, poolConfigDir))
	cfg.SetDefault(poolPathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	poolPath := cfg.GetString(poolPathKey)
	if poolPath == "" {
		return nil, errors.New("pool path is empty")
	}
	poolPath, err = normalizePoolPath(poolPath)
	if err != nil {
		return nil, err
	}

	return &Repository{poolPath: poolPath, mu: lockForPath(poolPath)}, nil
}

func (r *Repository) Load(ctx context.Context) (domain.PoolState, error) {
	if err := ctx.Err(); err != nil {
		return domain.PoolState{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.PoolState{}, err
	}

	state := domain.PoolState{
		CurrentID: domain.AccountID(file.CurrentAccount),
		UpdatedAt: parseTime(file.UpdatedAt),
		Accounts:  make([]domain.Account, 0, len(file.Accounts)),
	}
	for _, entry := range file.Accounts {
		state.Accounts = append(state.Accounts, fromSchema(entry))
	}

	return state, nil
}

func (r *Repository) Save(ctx context.Context, state domain.PoolState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := fileSchema{
		Version:        currentSchemaVersion,
		CurrentAccount: string(state.CurrentID),
		UpdatedAt:      formatTime(state.UpdatedAt),
		Accounts:       make([]accountSchema, 0, len(state.Accounts)),
	}
	for _, account := range state.Accounts {
		file.Accounts = append(file.Accounts, toSchema(account))
	}

	return r.writeSchema(file)
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.poolPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read pool file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode pool file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (r *Repository) writeSchema(file fileSchema) error {
	if err := os.MkdirAll(filepath.Dir(r.poolPath), poolDirMode); err != nil {
		return fmt.Errorf("create pool directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode pool file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.poolPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp pool file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp pool file: %w", err)
	}

	if err := tempFile.Chmod(poolFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp pool file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp pool file: %w", err)
	}

	if err := os.Rename(tempName, r.poolPath); err != nil {
		return fmt.Errorf("replace pool file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(r.poolPath, poolFileMode); err != nil {
		return fmt.Errorf("chmod pool file: %w", err)
	}

	return nil
}

func normalizePoolPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve pool path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func toSchema(account domain.Account) accountSchema {
	return accountSchema{
		ID:            string(account.ID),
		Secret:        account.Secret,
		Status:        string(account.Status),
		AddedAt:       formatTime(account.AddedAt),
		LastUsedAt:    formatTime(account.LastUsedAt),
		RequestCount:  account.RequestCount,
		DailyLimit:    account.DailyLimit,
		CooldownHours: account.CooldownHours,
		TotalRequests: account.TotalRequests,
		ErrorCount:    account.ErrorCount,
		Notes:         account.Notes,
	}
}

func fromSchema(account accountSchema) domain.Account {
	status := domain.AccountStatus(account.Status)
	switch status {
	case domain.StatusAvailable, domain.StatusCooling, domain.StatusBanned:
	default:
		status = domain.StatusUnknown
	}

	return domain.Account{
		ID:            domain.AccountID(account.ID),
		Secret:        account.Secret,
		Status:        status,
		AddedAt:       parseTime(account.AddedAt),
		LastUsedAt:    parseTime(account.LastUsedAt),
		RequestCount:  account.RequestCount,
		DailyLimit:    account.DailyLimit,
		CooldownHours: account.CooldownHours,
		TotalRequests: account.TotalRequests,
		ErrorCount:    account.ErrorCount,
		Notes:         account.Notes,
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	// RFC3339Nano keeps sub-second precision so a save/load cycle
	// reproduces the exact timestamps, cooldown arithmetic included.
	return value.Format(time.RFC3339Nano)
}
