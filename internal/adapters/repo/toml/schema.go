package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version        int             `toml:"version"`
	CurrentAccount string          `toml:"current_account,omitempty"`
	UpdatedAt      string          `toml:"updated_at,omitempty"`
	Accounts       []accountSchema `toml:"accounts"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported pool schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type accountSchema struct {
	ID            string `toml:"id"`
	Secret        string `toml:"secret"`
	Status        string `toml:"status"`
	AddedAt       string `toml:"added_at,omitempty"`
	LastUsedAt    string `toml:"last_used_at,omitempty"`
	RequestCount  int    `toml:"request_count"`
	DailyLimit    int    `toml:"daily_limit"`
	CooldownHours int    `toml:"cooldown_hours"`
	TotalRequests int    `toml:"total_requests"`
	ErrorCount    int    `toml:"error_count"`
	Notes         string `toml:"notes,omitempty"`
}
