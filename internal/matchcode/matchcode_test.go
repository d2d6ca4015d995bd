package matchcode

import (
	"context"
	"testing"

	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/names"
)

func newTx(surname, given, middle, dob, sex string) *domain.TransactionRecord {
	tx := &domain.TransactionRecord{
		Surname:    surname,
		GivenName:  given,
		MiddleName: middle,
		DOB:        dob,
		Sex:        sex,
	}
	tx.Derived.Names = names.DeriveSet(surname, given, middle, "", "", "")
	return tx
}

func newCand(pen, surname, given, middle, dob, sex string) *domain.CandidateRecord {
	return &domain.CandidateRecord{
		PEN:        pen,
		Surname:    surname,
		GivenName:  given,
		MiddleName: middle,
		DOB:        dob,
		Sex:        sex,
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name string
		tx   *domain.TransactionRecord
		cand *domain.CandidateRecord
		want string
	}{
		{
			name: "identical records",
			tx:   newTx("SMITH", "JOHN", "ALLAN", "20090215", "M"),
			cand: newCand("123456788", "SMITH", "JOHN", "ALLAN", "20090215", "M"),
			want: "1111111",
		},
		{
			name: "middle initial only",
			tx:   newTx("SMITH", "JOHN", "A", "20090215", "M"),
			cand: newCand("123456788", "SMITH", "JOHN", "ALLAN", "20090215", "M"),
			want: "1131111",
		},
		{
			name: "both middles blank",
			tx:   newTx("SMITH", "JOHN", "", "20090215", "M"),
			cand: newCand("123456788", "SMITH", "JOHN", "", "20090215", "M"),
			want: "1141111",
		},
		{
			name: "middle blank on one side only",
			tx:   newTx("SMITH", "JOHN", "ALLAN", "20090215", "M"),
			cand: newCand("123456788", "SMITH", "JOHN", "", "20090215", "M"),
			want: "1121111",
		},
		{
			name: "middle one-character typo",
			tx:   newTx("SMITH", "JOHN", "JOHNSON", "20090215", "M"),
			cand: newCand("123456788", "SMITH", "JOHN", "JOHNSEN", "20090215", "M"),
			want: "1131111",
		},
		{
			name: "short middle typo stays different",
			tx:   newTx("SMITH", "JOHN", "DALE", "20090215", "M"),
			cand: newCand("123456788", "SMITH", "JOHN", "DANE", "20090215", "M"),
			want: "1121111",
		},
		{
			name: "given prefix counts as match",
			tx:   newTx("SMITH", "JO", "", "20090215", "M"),
			cand: newCand("123456788", "SMITH", "JOHN", "", "20090215", "M"),
			want: "1141111",
		},
		{
			name: "month day transposed",
			tx:   newTx("SMITH", "JOHN", "ALLAN", "20090512", "M"),
			cand: newCand("123456788", "SMITH", "JOHN", "ALLAN", "20091205", "M"),
			want: "1111111",
		},
		{
			name: "year digits transposed",
			tx:   newTx("SMITH", "JOHN", "ALLAN", "20090215", "M"),
			cand: newCand("123456788", "SMITH", "JOHN", "ALLAN", "20900215", "M"),
			want: "1111111",
		},
		{
			name: "year off by one",
			tx:   newTx("SMITH", "JOHN", "ALLAN", "20090215", "M"),
			cand: newCand("123456788", "SMITH", "JOHN", "ALLAN", "20080215", "M"),
			want: "1112111",
		},
		{
			name: "surname and sex differ",
			tx:   newTx("SMITH", "JOHN", "ALLAN", "20090215", "M"),
			cand: newCand("123456788", "JONES", "JOHN", "ALLAN", "20090215", "F"),
			want: "2111112",
		},
		{
			name: "punctuation and compound given handled",
			tx:   newTx("O'BRIEN", "MARY-JANE", "", "20090215", "F"),
			cand: newCand("123456788", "OBRIEN", "MARY", "JANE", "20090215", "F"),
			want: "1111111",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compute(tt.tx, tt.cand); got != tt.want {
				t.Errorf("Compute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultResult(t *testing.T) {
	tests := []struct {
		code string
		want domain.MatchResult
	}{
		{"1111111", domain.ResultPass},
		{"1141111", domain.ResultPass},
		{"1311111", domain.ResultPass},
		{"1111112", domain.ResultPass},
		{"1121111", domain.ResultQuestionable},
		{"1211111", domain.ResultQuestionable},
		{"1112211", domain.ResultQuestionable},
		{"2111111", domain.ResultFail},
		{"1221111", domain.ResultFail},
		{"9999999", domain.ResultFail},
		{"", domain.ResultFail},
	}

	for _, tt := range tests {
		if got := DefaultResult(tt.code); got != tt.want {
			t.Errorf("DefaultResult(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestDefaultResultsCoversBothSets(t *testing.T) {
	rows := DefaultResults()
	if len(rows) != len(passCodes)+len(questionableCodes) {
		t.Fatalf("DefaultResults() returned %d rows, want %d", len(rows), len(passCodes)+len(questionableCodes))
	}
	for code, result := range rows {
		if got := DefaultResult(code); got != result {
			t.Errorf("row %q = %v, but DefaultResult says %v", code, result, got)
		}
	}
}

// tableStub serves the static defaults plus a fixed foreign-surname set.
type tableStub struct {
	foreign map[string]bool
}

func (s *tableStub) SurnameFrequency(ctx context.Context, prefix string) (int, error) {
	return 0, nil
}

func (s *tableStub) Nicknames(ctx context.Context, name string) ([]domain.NicknamePair, error) {
	return nil, nil
}

func (s *tableStub) ForeignSurname(ctx context.Context, surname, category string) (bool, error) {
	return s.foreign[surname], nil
}

func (s *tableStub) MatchCodeResult(ctx context.Context, code string) (domain.MatchResult, error) {
	return DefaultResult(code), nil
}

func TestResolveWithoutSpecialSkipsOverrides(t *testing.T) {
	r := NewResolver(&tableStub{}, "MEN")

	tx := newTx("SMITH", "ANNE", "MARY", "20090215", "F")
	cand := newCand("123456788", "SMITH", "MARYANNE", "", "20090215", "F")

	code, result, err := r.Resolve(context.Background(), tx, cand)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if code != "1221111" || result != domain.ResultFail {
		t.Errorf("Resolve() = %q/%v, want 1221111/FAIL", code, result)
	}
}

func TestResolveConcatOverride(t *testing.T) {
	r := NewResolver(&tableStub{}, "MEN")

	tx := newTx("SMITH", "ANNE", "MARY", "20090215", "F")
	tx.ApplicationCode = domain.ApplicationSpecial
	cand := newCand("123456788", "SMITH", "MARYANNE", "", "20090215", "F")

	code, result, err := r.Resolve(context.Background(), tx, cand)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if code != "1141111" || result != domain.ResultPass {
		t.Errorf("Resolve() = %q/%v, want 1141111/PASS", code, result)
	}
}

func TestResolveSwapOverride(t *testing.T) {
	r := NewResolver(&tableStub{}, "MEN")

	// Given and middle entered in each other's slot. Concatenation cannot
	// rescue the pair; the swap can.
	tx := newTx("SMITH", "RALPH", "ROBERT", "20090215", "M")
	tx.ApplicationCode = domain.ApplicationSpecial
	cand := newCand("123456788", "SMITH", "ROBERT", "RALPH", "20090215", "M")

	code, result, err := r.Resolve(context.Background(), tx, cand)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if code != "1111111" || result != domain.ResultPass {
		t.Errorf("Resolve() = %q/%v, want 1111111/PASS", code, result)
	}
}

func TestResolveIdentifierOverride(t *testing.T) {
	r := NewResolver(&tableStub{}, "MEN")

	tx := newTx("SMITH", "GEORGE", "ALLAN", "20090215", "M")
	tx.ApplicationCode = domain.ApplicationSpecial
	tx.PEN = "123456788"
	cand := newCand("123456788", "SMITH", "HENRY", "ALLAN", "20090215", "M")

	code, result, err := r.Resolve(context.Background(), tx, cand)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if code != "1211111" || result != domain.ResultPass {
		t.Errorf("matching identifier: Resolve() = %q/%v, want 1211111/PASS", code, result)
	}

	cand.PEN = "987654321"
	_, result, err = r.Resolve(context.Background(), tx, cand)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if result != domain.ResultFail {
		t.Errorf("mismatched identifier: result = %v, want FAIL", result)
	}
}

func TestResolveForeignSurnameOverride(t *testing.T) {
	r := NewResolver(&tableStub{foreign: map[string]bool{"NGUYEN": true}}, "MEN")

	tx := newTx("NGUYEN", "GEORGE", "", "20090215", "M")
	tx.ApplicationCode = domain.ApplicationSpecial
	cand := newCand("123456788", "NGUYEN", "HENRY", "", "20090215", "M")

	code, result, err := r.Resolve(context.Background(), tx, cand)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if code != "1241111" || result != domain.ResultFail {
		t.Errorf("Resolve() = %q/%v, want 1241111/FAIL", code, result)
	}

	// Same code on a non-flagged surname keeps the table result.
	tx2 := newTx("SMITH", "GEORGE", "", "20090215", "M")
	tx2.ApplicationCode = domain.ApplicationSpecial
	cand2 := newCand("123456788", "SMITH", "HENRY", "", "20090215", "M")

	_, result, err = r.Resolve(context.Background(), tx2, cand2)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if result != domain.ResultQuestionable {
		t.Errorf("non-flagged surname: result = %v, want QUES", result)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"ABC", "", 3},
		{"JOHNSON", "JOHNSEN", 1},
		{"MICHEAL", "MICHAEL", 2},
		{"ANNA", "ANA", 1},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
