// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/matchcode"
	"github.com/edu-registry/penmatch/internal/names"
	"github.com/edu-registry/penmatch/internal/scoring"
)

const defaultLookupLimit = 200

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db          *sql.DB
	driver      string
	lookupLimit int
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	limit := cfg.LookupLimit
	if limit <= 0 {
		limit = defaultLookupLimit
	}

	repo := &SQLRepository{
		db:          db,
		driver:      cfg.Driver,
		lookupLimit: limit,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const studentColumns = `pen, surname, given_name, middle_name,
	   usual_surname, usual_given, usual_middle,
	   dob, sex, mincode, local_id, postal_code, status, true_pen`

func scanStudent(row interface{ Scan(...any) error }) (*domain.CandidateRecord, error) {
	var c domain.CandidateRecord
	var middle, usualSurname, usualGiven, usualMiddle sql.NullString
	var mincode, localID, postal, truePEN sql.NullString

	err := row.Scan(
		&c.PEN, &c.Surname, &c.GivenName, &middle,
		&usualSurname, &usualGiven, &usualMiddle,
		&c.DOB, &c.Sex, &mincode, &localID, &postal, &c.Status, &truePEN,
	)
	if err != nil {
		return nil, err
	}

	c.MiddleName = middle.String
	c.UsualSurname = usualSurname.String
	c.UsualGiven = usualGiven.String
	c.UsualMiddle = usualMiddle.String
	c.Mincode = mincode.String
	c.LocalID = localID.String
	c.PostalCode = postal.String
	c.TruePEN = truePEN.String
	c.LocalIDTrimmed = scoring.TrimLocalID(c.LocalID)
	return &c, nil
}

// LookupByKey returns a bounded, unordered candidate set for a blocking key.
// With a school code and local ID present, the demographic key is
// OR-combined with a (dob, mincode, localId) key.
func (r *SQLRepository) LookupByKey(ctx context.Context, key domain.SearchKey) ([]*domain.CandidateRecord, error) {
	if key.DOB == "" || key.SurnamePrefix == "" {
		return nil, fmt.Errorf("%w: dob and surname prefix are required", domain.ErrInvalidInput)
	}

	var cond strings.Builder
	args := []any{key.DOB, key.SurnamePrefix + "%"}
	cond.WriteString("(dob = ? AND surname_norm LIKE ?")
	if key.GivenPrefix != "" {
		cond.WriteString(" AND given_norm LIKE ?")
		args = append(args, key.GivenPrefix+"%")
	}
	cond.WriteString(")")

	if key.Mincode != "" && key.LocalID != "" {
		cond.WriteString(" OR (dob = ? AND mincode = ? AND local_id = ?)")
		args = append(args, key.DOB, key.Mincode, key.LocalID)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM students
		WHERE %s
		LIMIT %d
	`, studentColumns, cond.String(), r.lookupLimit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CandidateRecord
	for rows.Next() {
		c, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LookupByIdentifier returns the record for an identifier, or ErrNotFound.
func (r *SQLRepository) LookupByIdentifier(ctx context.Context, pen string) (*domain.CandidateRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE pen = ?`, studentColumns)

	c, err := scanStudent(r.db.QueryRowContext(ctx, r.rebind(query), pen))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// LookupMergeTarget resolves a merged identifier to its surviving identifier.
func (r *SQLRepository) LookupMergeTarget(ctx context.Context, pen string) (string, error) {
	query := `SELECT to_pen FROM merges WHERE from_pen = ?`

	var target string
	err := r.db.QueryRowContext(ctx, r.rebind(query), pen).Scan(&target)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return target, nil
}

// SurnameFrequency counts registry records whose normalized surname starts
// with prefix.
func (r *SQLRepository) SurnameFrequency(ctx context.Context, prefix string) (int, error) {
	query := `SELECT COUNT(*) FROM students WHERE surname_norm LIKE ?`

	var count int
	if err := r.db.QueryRowContext(ctx, r.rebind(query), prefix+"%").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Nicknames returns every base/synonym pair in which name appears as either
// column, base-column hits first.
func (r *SQLRepository) Nicknames(ctx context.Context, name string) ([]domain.NicknamePair, error) {
	query := `
		SELECT base, synonym FROM nicknames
		WHERE base = ? OR synonym = ?
		ORDER BY CASE WHEN base = ? THEN 0 ELSE 1 END, synonym
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), name, name, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []domain.NicknamePair
	for rows.Next() {
		var p domain.NicknamePair
		if err := rows.Scan(&p.Base, &p.Synonym); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// ForeignSurname reports whether surname is flagged under the category.
func (r *SQLRepository) ForeignSurname(ctx context.Context, surname, category string) (bool, error) {
	query := `SELECT COUNT(*) FROM foreign_surnames WHERE surname = ? AND category = ?`

	var count int
	if err := r.db.QueryRowContext(ctx, r.rebind(query), surname, category).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// MatchCodeResult resolves a match code. Rows in the database override the
// compiled-in table; codes absent from both fail.
func (r *SQLRepository) MatchCodeResult(ctx context.Context, code string) (domain.MatchResult, error) {
	query := `SELECT result FROM match_code_results WHERE code = ?`

	var result string
	err := r.db.QueryRowContext(ctx, r.rebind(query), code).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return matchcode.DefaultResult(code), nil
	}
	if err != nil {
		return "", err
	}
	return domain.MatchResult(result), nil
}

// SaveStudent inserts or updates a registry record.
func (r *SQLRepository) SaveStudent(ctx context.Context, student *domain.CandidateRecord) error {
	if student.PEN == "" {
		return fmt.Errorf("%w: pen is required", domain.ErrInvalidInput)
	}

	status := student.Status
	if status == "" {
		status = domain.StatusActive
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO students (
			pen, surname, given_name, middle_name,
			usual_surname, usual_given, usual_middle,
			dob, sex, mincode, local_id, postal_code, status, true_pen,
			surname_norm, given_norm, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pen) DO UPDATE SET
			surname = excluded.surname,
			given_name = excluded.given_name,
			middle_name = excluded.middle_name,
			usual_surname = excluded.usual_surname,
			usual_given = excluded.usual_given,
			usual_middle = excluded.usual_middle,
			dob = excluded.dob,
			sex = excluded.sex,
			mincode = excluded.mincode,
			local_id = excluded.local_id,
			postal_code = excluded.postal_code,
			status = excluded.status,
			true_pen = excluded.true_pen,
			surname_norm = excluded.surname_norm,
			given_norm = excluded.given_norm,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		student.PEN, student.Surname, student.GivenName, student.MiddleName,
		student.UsualSurname, student.UsualGiven, student.UsualMiddle,
		student.DOB, student.Sex, student.Mincode, student.LocalID,
		student.PostalCode, string(status), student.TruePEN,
		names.Normalize(student.Surname), names.Normalize(student.GivenName),
		now, now,
	)
	return err
}

// SaveMerge records a merge direction and marks the source record merged.
func (r *SQLRepository) SaveMerge(ctx context.Context, fromPEN, toPEN string) error {
	if fromPEN == "" || toPEN == "" {
		return fmt.Errorf("%w: both identifiers are required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO merges (from_pen, to_pen, created_at) VALUES (?, ?, ?)
		ON CONFLICT(from_pen) DO UPDATE SET to_pen = excluded.to_pen
	`
	if _, err := r.db.ExecContext(ctx, r.rebind(query), fromPEN, toPEN, time.Now().UTC()); err != nil {
		return err
	}

	update := `UPDATE students SET status = ?, true_pen = ? WHERE pen = ?`
	_, err := r.db.ExecContext(ctx, r.rebind(update), string(domain.StatusMerged), toPEN, fromPEN)
	return err
}

// SaveNickname stores one base/synonym pair.
func (r *SQLRepository) SaveNickname(ctx context.Context, pair domain.NicknamePair) error {
	query := `
		INSERT INTO nicknames (base, synonym) VALUES (?, ?)
		ON CONFLICT(base, synonym) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		names.Normalize(pair.Base), names.Normalize(pair.Synonym))
	return err
}

// SaveForeignSurname flags a surname under an ancestry category.
func (r *SQLRepository) SaveForeignSurname(ctx context.Context, surname, category string) error {
	query := `
		INSERT INTO foreign_surnames (surname, category) VALUES (?, ?)
		ON CONFLICT(surname, category) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query), names.Normalize(surname), category)
	return err
}

// SaveMatchCodeResult stores one code→result row, overriding the compiled-in
// table for that code.
func (r *SQLRepository) SaveMatchCodeResult(ctx context.Context, code string, result domain.MatchResult) error {
	if len(code) != domain.MatchCodeLength {
		return fmt.Errorf("%w: code must be %d digits", domain.ErrInvalidInput, domain.MatchCodeLength)
	}

	query := `
		INSERT INTO match_code_results (code, result) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET result = excluded.result
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query), code, string(result))
	return err
}

// SaveMatchOutcome persists one resolved match outcome.
func (r *SQLRepository) SaveMatchOutcome(ctx context.Context, outcome *domain.MatchOutcome) error {
	candidates, _ := json.Marshal(outcome.Candidates)
	metadata, _ := json.Marshal(outcome.Metadata)

	deceased := 0
	if outcome.Deceased {
		deceased = 1
	}

	query := `
		INSERT INTO match_outcomes (
			id, status, message, pen, deceased, timestamp, candidates, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		outcome.ID, outcome.Status, outcome.Message, outcome.PEN,
		deceased, outcome.Timestamp, string(candidates), string(metadata),
	)
	return err
}

// GetMatchOutcome retrieves a persisted outcome by ID.
func (r *SQLRepository) GetMatchOutcome(ctx context.Context, outcomeID string) (*domain.MatchOutcome, error) {
	query := `
		SELECT id, status, message, pen, deceased, timestamp, candidates, metadata
		FROM match_outcomes
		WHERE id = ?
	`

	var out domain.MatchOutcome
	var message, pen sql.NullString
	var deceased int
	var candidates, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), outcomeID).Scan(
		&out.ID, &out.Status, &message, &pen, &deceased,
		&out.Timestamp, &candidates, &metadata,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	out.Message = message.String
	out.PEN = pen.String
	out.Deceased = deceased == 1
	json.Unmarshal([]byte(candidates), &out.Candidates)
	json.Unmarshal([]byte(metadata), &out.Metadata)
	return &out, nil
}

// SavePossibleMatches persists possible-match links for one outcome.
func (r *SQLRepository) SavePossibleMatches(ctx context.Context, matches []*domain.PossibleMatch) error {
	query := `
		INSERT INTO possible_matches (id, outcome_id, pen, rank, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, m := range matches {
		_, err := r.db.ExecContext(ctx, r.rebind(query),
			m.ID, m.OutcomeID, m.PEN, m.Rank, string(m.Result), m.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListPossibleMatches returns the possible-match links recorded against an
// identifier, best rank first.
func (r *SQLRepository) ListPossibleMatches(ctx context.Context, pen string) ([]*domain.PossibleMatch, error) {
	query := `
		SELECT id, outcome_id, pen, rank, result, created_at
		FROM possible_matches
		WHERE pen = ?
		ORDER BY created_at DESC, rank
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), pen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PossibleMatch
	for rows.Next() {
		var m domain.PossibleMatch
		if err := rows.Scan(&m.ID, &m.OutcomeID, &m.PEN, &m.Rank, &m.Result, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// SaveScreeningRule stores a screening rule version.
func (r *SQLRepository) SaveScreeningRule(ctx context.Context, rule *domain.ScreeningRule) error {
	bands, _ := json.Marshal(rule.Bands)

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO screening_rules (
			id, name, description, version, expression, bands, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Version,
		rule.Expression, string(bands), enabled, now, now,
	)
	return err
}

// GetScreeningRule retrieves the latest enabled version of a rule.
func (r *SQLRepository) GetScreeningRule(ctx context.Context, ruleID string) (*domain.ScreeningRule, error) {
	query := `
		SELECT id, name, description, version, expression, bands, enabled
		FROM screening_rules
		WHERE id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	rule, err := scanScreeningRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rule, err
}

// ListScreeningRules retrieves all enabled screening rules.
func (r *SQLRepository) ListScreeningRules(ctx context.Context) ([]*domain.ScreeningRule, error) {
	query := `
		SELECT id, name, description, version, expression, bands, enabled
		FROM screening_rules
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ScreeningRule
	for rows.Next() {
		rule, err := scanScreeningRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanScreeningRule(row interface{ Scan(...any) error }) (*domain.ScreeningRule, error) {
	var rule domain.ScreeningRule
	var description sql.NullString
	var bands string
	var enabled int

	err := row.Scan(&rule.ID, &rule.Name, &description, &rule.Version,
		&rule.Expression, &bands, &enabled)
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Enabled = enabled == 1
	json.Unmarshal([]byte(bands), &rule.Bands)
	return &rule, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
