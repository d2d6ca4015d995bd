package repository

// Schema definitions for the penmatch database.
// Compatible with both SQLite and PostgreSQL.

const schemaStudents = `
CREATE TABLE IF NOT EXISTS students (
    pen TEXT PRIMARY KEY,
    surname TEXT NOT NULL,
    given_name TEXT NOT NULL,
    middle_name TEXT,
    usual_surname TEXT,
    usual_given TEXT,
    usual_middle TEXT,
    dob TEXT NOT NULL,
    sex TEXT NOT NULL,
    mincode TEXT,
    local_id TEXT,
    postal_code TEXT,
    status TEXT NOT NULL DEFAULT 'A',
    true_pen TEXT,
    surname_norm TEXT NOT NULL,
    given_norm TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_students_dob_surname ON students(dob, surname_norm);
CREATE INDEX IF NOT EXISTS idx_students_dob_school ON students(dob, mincode, local_id);
CREATE INDEX IF NOT EXISTS idx_students_surname ON students(surname_norm);
`

const schemaMerges = `
CREATE TABLE IF NOT EXISTS merges (
    from_pen TEXT PRIMARY KEY,
    to_pen TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

const schemaNicknames = `
CREATE TABLE IF NOT EXISTS nicknames (
    base TEXT NOT NULL,
    synonym TEXT NOT NULL,
    PRIMARY KEY (base, synonym)
);

CREATE INDEX IF NOT EXISTS idx_nicknames_synonym ON nicknames(synonym);
`

const schemaForeignSurnames = `
CREATE TABLE IF NOT EXISTS foreign_surnames (
    surname TEXT NOT NULL,
    category TEXT NOT NULL,
    PRIMARY KEY (surname, category)
);
`

const schemaMatchCodeResults = `
CREATE TABLE IF NOT EXISTS match_code_results (
    code TEXT PRIMARY KEY,
    result TEXT NOT NULL
);
`

const schemaMatchOutcomes = `
CREATE TABLE IF NOT EXISTS match_outcomes (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    message TEXT,
    pen TEXT,
    deceased INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL,
    candidates TEXT NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_match_outcomes_pen ON match_outcomes(pen);
CREATE INDEX IF NOT EXISTS idx_match_outcomes_status ON match_outcomes(status);
CREATE INDEX IF NOT EXISTS idx_match_outcomes_timestamp ON match_outcomes(timestamp);
`

const schemaPossibleMatches = `
CREATE TABLE IF NOT EXISTS possible_matches (
    id TEXT PRIMARY KEY,
    outcome_id TEXT NOT NULL,
    pen TEXT NOT NULL,
    rank INTEGER NOT NULL,
    result TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_possible_matches_pen ON possible_matches(pen);
CREATE INDEX IF NOT EXISTS idx_possible_matches_outcome ON possible_matches(outcome_id);
`

const schemaScreeningRules = `
CREATE TABLE IF NOT EXISTS screening_rules (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_screening_rules_enabled ON screening_rules(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaStudents,
		schemaMerges,
		schemaNicknames,
		schemaForeignSurnames,
		schemaMatchCodeResults,
		schemaMatchOutcomes,
		schemaPossibleMatches,
		schemaScreeningRules,
	}
}
