package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/edu-registry/penmatch/internal/bus"
	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/engine"
	"github.com/edu-registry/penmatch/internal/matchcode"
	"github.com/edu-registry/penmatch/internal/rules"
)

// fakeRepo implements domain.Repository in memory.
type fakeRepo struct {
	mu       sync.Mutex
	students map[string]*domain.CandidateRecord
	outcomes map[string]*domain.MatchOutcome
	possible []*domain.PossibleMatch
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		students: make(map[string]*domain.CandidateRecord),
		outcomes: make(map[string]*domain.MatchOutcome),
	}
}

func (f *fakeRepo) LookupByKey(ctx context.Context, key domain.SearchKey) ([]*domain.CandidateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.CandidateRecord
	for _, s := range f.students {
		if s.DOB == key.DOB {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) LookupByIdentifier(ctx context.Context, pen string) (*domain.CandidateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.students[pen]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRepo) LookupMergeTarget(ctx context.Context, pen string) (string, error) {
	return "", domain.ErrNotFound
}

func (f *fakeRepo) SurnameFrequency(ctx context.Context, prefix string) (int, error) {
	return 0, nil
}

func (f *fakeRepo) Nicknames(ctx context.Context, name string) ([]domain.NicknamePair, error) {
	return nil, nil
}

func (f *fakeRepo) ForeignSurname(ctx context.Context, surname, category string) (bool, error) {
	return false, nil
}

func (f *fakeRepo) MatchCodeResult(ctx context.Context, code string) (domain.MatchResult, error) {
	return matchcode.DefaultResult(code), nil
}

func (f *fakeRepo) SaveStudent(ctx context.Context, student *domain.CandidateRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.students[student.PEN] = student
	return nil
}

func (f *fakeRepo) SaveMerge(ctx context.Context, fromPEN, toPEN string) error       { return nil }
func (f *fakeRepo) SaveNickname(ctx context.Context, pair domain.NicknamePair) error { return nil }
func (f *fakeRepo) SaveForeignSurname(ctx context.Context, surname, category string) error {
	return nil
}
func (f *fakeRepo) SaveMatchCodeResult(ctx context.Context, code string, result domain.MatchResult) error {
	return nil
}

func (f *fakeRepo) SaveMatchOutcome(ctx context.Context, outcome *domain.MatchOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[outcome.ID] = outcome
	return nil
}

func (f *fakeRepo) GetMatchOutcome(ctx context.Context, outcomeID string) (*domain.MatchOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.outcomes[outcomeID]; ok {
		return o, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRepo) SavePossibleMatches(ctx context.Context, matches []*domain.PossibleMatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.possible = append(f.possible, matches...)
	return nil
}

func (f *fakeRepo) ListPossibleMatches(ctx context.Context, pen string) ([]*domain.PossibleMatch, error) {
	return nil, nil
}

func (f *fakeRepo) SaveScreeningRule(ctx context.Context, rule *domain.ScreeningRule) error {
	return nil
}
func (f *fakeRepo) GetScreeningRule(ctx context.Context, ruleID string) (*domain.ScreeningRule, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeRepo) ListScreeningRules(ctx context.Context) ([]*domain.ScreeningRule, error) {
	return nil, nil
}
func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

func newTestWorker(t *testing.T, repo *fakeRepo, screening *rules.Engine) (*Worker, *bus.ChannelBus) {
	t.Helper()

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	matcher := engine.New(repo, repo, repo.SurnameFrequency, domain.EngineConfig{}, nil)

	w := NewWorker(eventBus, repo, screening, matcher, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	return w, eventBus
}

func subscribeCompleted(t *testing.T, eventBus *bus.ChannelBus) chan MatchCompletedMessage {
	t.Helper()

	completed := make(chan MatchCompletedMessage, 10)
	_, err := eventBus.Subscribe(context.Background(), domain.TopicMatchCompleted,
		func(ctx context.Context, msg *domain.Message) error {
			var m MatchCompletedMessage
			if err := json.Unmarshal(msg.Payload, &m); err != nil {
				return err
			}
			completed <- m
			return nil
		})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	return completed
}

func publishRequest(t *testing.T, eventBus *bus.ChannelBus, req MatchRequestMessage) {
	t.Helper()

	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := eventBus.Publish(context.Background(), domain.TopicMatchRequest, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
}

func waitCompleted(t *testing.T, completed chan MatchCompletedMessage) MatchCompletedMessage {
	t.Helper()

	select {
	case m := <-completed:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
		return MatchCompletedMessage{}
	}
}

func TestWorkerProcessesMatchRequest(t *testing.T) {
	repo := newFakeRepo()
	_, eventBus := newTestWorker(t, repo, nil)
	completed := subscribeCompleted(t, eventBus)

	publishRequest(t, eventBus, MatchRequestMessage{
		RequestID: "req-1",
		Record: domain.TransactionRecord{
			Surname:   "SMITH",
			GivenName: "JOHN",
			DOB:       "19900101",
			Sex:       "M",
		},
	})

	m := waitCompleted(t, completed)
	if m.RequestID != "req-1" {
		t.Errorf("unexpected request id: %s", m.RequestID)
	}
	if m.Status != domain.StatusD0 {
		t.Errorf("expected D0 for empty registry, got %s", m.Status)
	}
	if m.Verdict != domain.ScreeningAccept {
		t.Errorf("expected accept verdict, got %s", m.Verdict)
	}
	if m.OutcomeID == "" {
		t.Fatal("expected outcome id")
	}

	repo.mu.Lock()
	_, saved := repo.outcomes[m.OutcomeID]
	repo.mu.Unlock()
	if !saved {
		t.Error("expected outcome persisted")
	}
}

func TestWorkerScreeningRejectSkipsEngine(t *testing.T) {
	screening, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer screening.Close()

	lower := 1.0
	err = screening.LoadRule(&domain.ScreeningRule{
		ID:         "block-placeholder",
		Name:       "block placeholder surname",
		Version:    "1",
		Expression: `surname == "DONOTUSE"`,
		Bands: []domain.ScreeningBand{
			{LowerLimit: &lower, Outcome: domain.ScreeningReject, Reason: "placeholder surname"},
		},
		Enabled: true,
	})
	if err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	repo := newFakeRepo()
	_, eventBus := newTestWorker(t, repo, screening)
	completed := subscribeCompleted(t, eventBus)

	publishRequest(t, eventBus, MatchRequestMessage{
		RequestID: "req-2",
		Record: domain.TransactionRecord{
			Surname:   "DONOTUSE",
			GivenName: "JOHN",
			DOB:       "19900101",
			Sex:       "M",
		},
	})

	m := waitCompleted(t, completed)
	if m.Verdict != domain.ScreeningReject {
		t.Errorf("expected reject verdict, got %s", m.Verdict)
	}
	if m.OutcomeID != "" {
		t.Error("rejected request must not run the engine")
	}

	repo.mu.Lock()
	n := len(repo.outcomes)
	repo.mu.Unlock()
	if n != 0 {
		t.Errorf("expected no outcomes persisted, got %d", n)
	}
}

func TestWorkerInvalidRecordReportsError(t *testing.T) {
	repo := newFakeRepo()
	_, eventBus := newTestWorker(t, repo, nil)
	completed := subscribeCompleted(t, eventBus)

	publishRequest(t, eventBus, MatchRequestMessage{
		RequestID: "req-3",
		Record: domain.TransactionRecord{
			// missing surname
			GivenName: "JOHN",
			DOB:       "19900101",
			Sex:       "M",
		},
	})

	m := waitCompleted(t, completed)
	if m.Error == "" {
		t.Error("expected validation error surfaced")
	}
	if m.OutcomeID != "" {
		t.Error("expected no outcome for invalid record")
	}
}

func TestWorkerSavesPossibleMatches(t *testing.T) {
	repo := newFakeRepo()

	// two active candidates with near-miss demographics; neither is an
	// exact hit, both pass the categorical matcher
	for pen, given := range map[string]string{"123456783": "JOHNN", "987654321": "JOHNNY"} {
		repo.students[pen] = &domain.CandidateRecord{
			PEN:       pen,
			Surname:   "SMITH",
			GivenName: given,
			DOB:       "19900101",
			Sex:       "M",
			Status:    domain.StatusActive,
		}
	}

	_, eventBus := newTestWorker(t, repo, nil)
	completed := subscribeCompleted(t, eventBus)

	possible := make(chan struct{}, 1)
	_, err := eventBus.Subscribe(context.Background(), domain.TopicPossibleMatch,
		func(ctx context.Context, msg *domain.Message) error {
			possible <- struct{}{}
			return nil
		})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	publishRequest(t, eventBus, MatchRequestMessage{
		RequestID: "req-4",
		Record: domain.TransactionRecord{
			Surname:   "SMITH",
			GivenName: "JOHN",
			DOB:       "19900101",
			Sex:       "M",
		},
	})

	m := waitCompleted(t, completed)
	if m.Status != domain.StatusDM {
		t.Errorf("expected DM for two matches, got %s", m.Status)
	}

	select {
	case <-possible:
	case <-time.After(2 * time.Second):
		t.Fatal("expected possible-match event")
	}

	repo.mu.Lock()
	n := len(repo.possible)
	repo.mu.Unlock()
	if n != 2 {
		t.Errorf("expected 2 possible-match links, got %d", n)
	}
}
