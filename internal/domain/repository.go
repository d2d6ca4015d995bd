package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. It implements the
// Directory and LookupTables collaborators the engine consumes, plus the
// write-side operations performed by the surrounding service.
type Repository interface {
	Directory
	LookupTables

	// Student registry writes (seeding and imports; never called by the engine)
	SaveStudent(ctx context.Context, student *CandidateRecord) error
	SaveMerge(ctx context.Context, fromPEN, toPEN string) error
	SaveNickname(ctx context.Context, pair NicknamePair) error
	SaveForeignSurname(ctx context.Context, surname, category string) error
	SaveMatchCodeResult(ctx context.Context, code string, result MatchResult) error

	// Match outcome persistence
	SaveMatchOutcome(ctx context.Context, outcome *MatchOutcome) error
	GetMatchOutcome(ctx context.Context, outcomeID string) (*MatchOutcome, error)

	// Possible-match links
	SavePossibleMatches(ctx context.Context, matches []*PossibleMatch) error
	ListPossibleMatches(ctx context.Context, pen string) ([]*PossibleMatch, error)

	// Screening rule configuration
	SaveScreeningRule(ctx context.Context, rule *ScreeningRule) error
	GetScreeningRule(ctx context.Context, ruleID string) (*ScreeningRule, error)
	ListScreeningRules(ctx context.Context) ([]*ScreeningRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// LookupLimit bounds LookupByKey result sets.
	LookupLimit int

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
