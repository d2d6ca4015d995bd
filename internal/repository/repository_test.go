package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/edu-registry/penmatch/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testStudent(pen string) *domain.CandidateRecord {
	return &domain.CandidateRecord{
		PEN:       pen,
		Surname:   "SMITH",
		GivenName: "JOHN",
		DOB:       "19900101",
		Sex:       "M",
		Mincode:   "10200001",
		LocalID:   "A12345",
	}
}

func TestSaveAndLookupByIdentifier(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	student := testStudent("123456783")
	student.MiddleName = "ALLEN"
	student.PostalCode = "V8W1A1"
	if err := repo.SaveStudent(ctx, student); err != nil {
		t.Fatalf("SaveStudent failed: %v", err)
	}

	got, err := repo.LookupByIdentifier(ctx, "123456783")
	if err != nil {
		t.Fatalf("LookupByIdentifier failed: %v", err)
	}
	if got.Surname != "SMITH" || got.GivenName != "JOHN" || got.MiddleName != "ALLEN" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Status != domain.StatusActive {
		t.Errorf("expected active status default, got %q", got.Status)
	}

	if _, err := repo.LookupByIdentifier(ctx, "987654321"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveStudentUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	student := testStudent("123456783")
	if err := repo.SaveStudent(ctx, student); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	student.GivenName = "JONATHAN"
	if err := repo.SaveStudent(ctx, student); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := repo.LookupByIdentifier(ctx, "123456783")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got.GivenName != "JONATHAN" {
		t.Errorf("expected updated given name, got %q", got.GivenName)
	}
}

func TestLookupByKey(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	records := []*domain.CandidateRecord{
		{PEN: "100000001", Surname: "SMITH", GivenName: "JOHN", DOB: "19900101", Sex: "M"},
		{PEN: "100000002", Surname: "SMITHSON", GivenName: "JANE", DOB: "19900101", Sex: "F"},
		{PEN: "100000003", Surname: "SMITH", GivenName: "JOHN", DOB: "19910101", Sex: "M"},
		{PEN: "100000004", Surname: "JONES", GivenName: "MARY", DOB: "19900101", Sex: "F",
			Mincode: "10200001", LocalID: "B777"},
	}
	for _, rec := range records {
		if err := repo.SaveStudent(ctx, rec); err != nil {
			t.Fatalf("save %s failed: %v", rec.PEN, err)
		}
	}

	tests := []struct {
		name string
		key  domain.SearchKey
		want []string
	}{
		{
			name: "dob and surname prefix",
			key:  domain.SearchKey{DOB: "19900101", SurnamePrefix: "SMIT"},
			want: []string{"100000001", "100000002"},
		},
		{
			name: "given prefix narrows",
			key:  domain.SearchKey{DOB: "19900101", SurnamePrefix: "SMIT", GivenPrefix: "JO"},
			want: []string{"100000001"},
		},
		{
			name: "school key widens past surname mismatch",
			key: domain.SearchKey{DOB: "19900101", SurnamePrefix: "SMIT",
				Mincode: "10200001", LocalID: "B777"},
			want: []string{"100000001", "100000002", "100000004"},
		},
		{
			name: "different dob excluded",
			key:  domain.SearchKey{DOB: "19950101", SurnamePrefix: "SMIT"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.LookupByKey(ctx, tt.key)
			if err != nil {
				t.Fatalf("LookupByKey failed: %v", err)
			}
			pens := make(map[string]bool)
			for _, c := range got {
				pens[c.PEN] = true
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d records, got %d", len(tt.want), len(got))
			}
			for _, pen := range tt.want {
				if !pens[pen] {
					t.Errorf("expected %s in result set", pen)
				}
			}
		})
	}
}

func TestLookupByKeyRequiresDOBAndPrefix(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.LookupByKey(context.Background(), domain.SearchKey{DOB: "19900101"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMergeLookup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveStudent(ctx, testStudent("123456783")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := repo.SaveMerge(ctx, "123456783", "987654321"); err != nil {
		t.Fatalf("SaveMerge failed: %v", err)
	}

	target, err := repo.LookupMergeTarget(ctx, "123456783")
	if err != nil {
		t.Fatalf("LookupMergeTarget failed: %v", err)
	}
	if target != "987654321" {
		t.Errorf("expected 987654321, got %s", target)
	}

	got, err := repo.LookupByIdentifier(ctx, "123456783")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got.Status != domain.StatusMerged {
		t.Errorf("expected merged status, got %q", got.Status)
	}
	if got.TruePEN != "987654321" {
		t.Errorf("expected true pen set, got %q", got.TruePEN)
	}

	if _, err := repo.LookupMergeTarget(ctx, "555555555"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown merge, got %v", err)
	}
}

func TestSurnameFrequency(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, surname := range []string{"SMITH", "SMITHSON", "SMYTHE", "JONES"} {
		rec := testStudent("10000000" + string(rune('1'+i)))
		rec.Surname = surname
		if err := repo.SaveStudent(ctx, rec); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	count, err := repo.SurnameFrequency(ctx, "SMIT")
	if err != nil {
		t.Fatalf("SurnameFrequency failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 for SMIT, got %d", count)
	}

	count, err = repo.SurnameFrequency(ctx, "ZZZZ")
	if err != nil {
		t.Fatalf("SurnameFrequency failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 for ZZZZ, got %d", count)
	}
}

func TestNicknames(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	pairs := []domain.NicknamePair{
		{Base: "ROBERT", Synonym: "BOB"},
		{Base: "ROBERT", Synonym: "ROB"},
		{Base: "BOBBY", Synonym: "BOB"},
	}
	for _, p := range pairs {
		if err := repo.SaveNickname(ctx, p); err != nil {
			t.Fatalf("SaveNickname failed: %v", err)
		}
	}

	got, err := repo.Nicknames(ctx, "ROBERT")
	if err != nil {
		t.Fatalf("Nicknames failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pairs for ROBERT, got %d", len(got))
	}

	got, err = repo.Nicknames(ctx, "BOB")
	if err != nil {
		t.Fatalf("Nicknames failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pairs for BOB, got %d", len(got))
	}

	got, err = repo.Nicknames(ctx, "XAVIER")
	if err != nil {
		t.Fatalf("Nicknames failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no pairs for XAVIER, got %d", len(got))
	}
}

func TestForeignSurname(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveForeignSurname(ctx, "NGUYEN", "MEN"); err != nil {
		t.Fatalf("SaveForeignSurname failed: %v", err)
	}

	flagged, err := repo.ForeignSurname(ctx, "NGUYEN", "MEN")
	if err != nil {
		t.Fatalf("ForeignSurname failed: %v", err)
	}
	if !flagged {
		t.Error("expected NGUYEN flagged under MEN")
	}

	flagged, err = repo.ForeignSurname(ctx, "SMITH", "MEN")
	if err != nil {
		t.Fatalf("ForeignSurname failed: %v", err)
	}
	if flagged {
		t.Error("SMITH should not be flagged")
	}
}

func TestMatchCodeResultFallsBackToDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// compiled-in table answers codes with no database row
	result, err := repo.MatchCodeResult(ctx, "1111111")
	if err != nil {
		t.Fatalf("MatchCodeResult failed: %v", err)
	}
	if result != domain.ResultPass {
		t.Errorf("expected PASS for 1111111, got %s", result)
	}

	// a stored row overrides the default
	if err := repo.SaveMatchCodeResult(ctx, "1111111", domain.ResultQuestionable); err != nil {
		t.Fatalf("SaveMatchCodeResult failed: %v", err)
	}
	result, err = repo.MatchCodeResult(ctx, "1111111")
	if err != nil {
		t.Fatalf("MatchCodeResult failed: %v", err)
	}
	if result != domain.ResultQuestionable {
		t.Errorf("expected QUES override, got %s", result)
	}

	result, err = repo.MatchCodeResult(ctx, "2222222")
	if err != nil {
		t.Fatalf("MatchCodeResult failed: %v", err)
	}
	if result != domain.ResultFail {
		t.Errorf("expected FAIL for unknown code, got %s", result)
	}
}

func TestMatchOutcomeRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	outcome := &domain.MatchOutcome{
		ID:        "outcome-1",
		Status:    domain.StatusD1,
		PEN:       "123456783",
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Candidates: []domain.CandidateMatch{
			{PEN: "123456783", Result: domain.ResultPass, MatchCode: "1111111"},
		},
		Metadata: domain.OutcomeMetadata{
			EngineVersion:       "1.2.0",
			CandidatesRetrieved: 3,
			CandidatesEvaluated: 1,
		},
	}
	if err := repo.SaveMatchOutcome(ctx, outcome); err != nil {
		t.Fatalf("SaveMatchOutcome failed: %v", err)
	}

	got, err := repo.GetMatchOutcome(ctx, "outcome-1")
	if err != nil {
		t.Fatalf("GetMatchOutcome failed: %v", err)
	}
	if got.Status != domain.StatusD1 || got.PEN != "123456783" {
		t.Errorf("unexpected outcome: %+v", got)
	}
	if len(got.Candidates) != 1 || got.Candidates[0].MatchCode != "1111111" {
		t.Errorf("candidates not preserved: %+v", got.Candidates)
	}
	if got.Metadata.CandidatesRetrieved != 3 {
		t.Errorf("metadata not preserved: %+v", got.Metadata)
	}

	if _, err := repo.GetMatchOutcome(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPossibleMatches(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	matches := []*domain.PossibleMatch{
		{ID: "pm-1", OutcomeID: "outcome-1", PEN: "123456783", Rank: 1,
			Result: domain.ResultQuestionable, CreatedAt: now},
		{ID: "pm-2", OutcomeID: "outcome-1", PEN: "123456783", Rank: 2,
			Result: domain.ResultQuestionable, CreatedAt: now},
	}
	if err := repo.SavePossibleMatches(ctx, matches); err != nil {
		t.Fatalf("SavePossibleMatches failed: %v", err)
	}

	got, err := repo.ListPossibleMatches(ctx, "123456783")
	if err != nil {
		t.Fatalf("ListPossibleMatches failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Rank != 1 || got[1].Rank != 2 {
		t.Errorf("expected rank ordering, got %d then %d", got[0].Rank, got[1].Rank)
	}
}

func TestScreeningRuleVersions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	lower := 1.0
	rule := &domain.ScreeningRule{
		ID:         "rule-1",
		Name:       "placeholder surname",
		Version:    "1",
		Expression: `surname == "UNKNOWN"`,
		Bands: []domain.ScreeningBand{
			{LowerLimit: &lower, Outcome: domain.ScreeningQuarantine, Reason: "placeholder"},
		},
		Enabled: true,
	}
	if err := repo.SaveScreeningRule(ctx, rule); err != nil {
		t.Fatalf("SaveScreeningRule failed: %v", err)
	}

	rule.Version = "2"
	rule.Expression = `surname == "UNKNOWN" || surname == "NONE"`
	if err := repo.SaveScreeningRule(ctx, rule); err != nil {
		t.Fatalf("save v2 failed: %v", err)
	}

	got, err := repo.GetScreeningRule(ctx, "rule-1")
	if err != nil {
		t.Fatalf("GetScreeningRule failed: %v", err)
	}
	if got.Version != "2" {
		t.Errorf("expected latest version, got %q", got.Version)
	}
	if len(got.Bands) != 1 || got.Bands[0].Outcome != domain.ScreeningQuarantine {
		t.Errorf("bands not preserved: %+v", got.Bands)
	}

	rules, err := repo.ListScreeningRules(ctx)
	if err != nil {
		t.Fatalf("ListScreeningRules failed: %v", err)
	}
	if len(rules) != 2 {
		t.Errorf("expected both enabled versions listed, got %d", len(rules))
	}
}

func TestSeedLookupTables(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := SeedLookupTables(ctx, repo); err != nil {
		t.Fatalf("SeedLookupTables failed: %v", err)
	}
	// seeding twice must not fail
	if err := SeedLookupTables(ctx, repo); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}

	result, err := repo.MatchCodeResult(ctx, "1131111")
	if err != nil {
		t.Fatalf("MatchCodeResult failed: %v", err)
	}
	if result != domain.ResultPass {
		t.Errorf("expected seeded PASS, got %s", result)
	}

	pairs, err := repo.Nicknames(ctx, "ROBERT")
	if err != nil {
		t.Fatalf("Nicknames failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Errorf("expected 2 seeded pairs for ROBERT, got %d", len(pairs))
	}
}
