// Package worker provides async match processing from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/engine"
	"github.com/edu-registry/penmatch/internal/rules"
)

// Worker consumes match requests from the EventBus, screens them, runs the
// match engine, persists the outcome, and publishes results.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	screening *rules.Engine
	matcher   *engine.Engine
	logger    *slog.Logger

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, screening *rules.Engine, matcher *engine.Engine, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		screening: screening,
		matcher:   matcher,
		logger:    logger.With("component", "worker"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the match request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicMatchRequest, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("worker started", "topic", domain.TopicMatchRequest)
	return nil
}

// MatchRequestMessage is the payload consumed from the request topic.
type MatchRequestMessage struct {
	RequestID string                   `json:"requestId"`
	Record    domain.TransactionRecord `json:"record"`
}

// MatchCompletedMessage is the payload published on completion.
type MatchCompletedMessage struct {
	RequestID string                   `json:"requestId"`
	OutcomeID string                   `json:"outcomeId,omitempty"`
	Status    string                   `json:"status,omitempty"`
	PEN       string                   `json:"pen,omitempty"`
	Verdict   string                   `json:"verdict"`
	Screening []domain.ScreeningResult `json:"screening,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processRequest(ctx, msg)
}

// processRequest runs one match request through the screening + match
// pipeline.
func (w *Worker) processRequest(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req MatchRequestMessage
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.logger.Error("failed to parse match request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if req.RequestID == "" {
		req.RequestID = msg.ID
	}

	// 1. Screen the record
	var screening []domain.ScreeningResult
	verdict := domain.ScreeningAccept
	if w.screening != nil {
		screening = w.screening.Screen(&req.Record)
		verdict = rules.Verdict(screening)
	}

	if verdict == domain.ScreeningReject {
		w.logger.Warn("match request rejected by screening",
			"request_id", req.RequestID,
		)
		return w.publishCompleted(ctx, &MatchCompletedMessage{
			RequestID: req.RequestID,
			Verdict:   verdict,
			Screening: screening,
		})
	}

	// 2. Run the match engine
	outcome, err := w.matcher.Match(ctx, &req.Record)
	if err != nil {
		w.logger.Error("match failed",
			"request_id", req.RequestID,
			"error", err,
		)
		return w.publishCompleted(ctx, &MatchCompletedMessage{
			RequestID: req.RequestID,
			Verdict:   verdict,
			Screening: screening,
			Error:     err.Error(),
		})
	}

	// 3. Persist the outcome and the possible-match links
	if w.repo != nil {
		if err := w.repo.SaveMatchOutcome(ctx, outcome); err != nil {
			w.logger.Error("failed to save match outcome",
				"outcome_id", outcome.ID,
				"error", err,
			)
		}
		if err := w.savePossibleMatches(ctx, outcome); err != nil {
			w.logger.Error("failed to save possible matches",
				"outcome_id", outcome.ID,
				"error", err,
			)
		}
	}

	// 4. Publish completion, plus a possible-match event when the outcome
	// left multiple candidates for review
	if err := w.publishCompleted(ctx, &MatchCompletedMessage{
		RequestID: req.RequestID,
		OutcomeID: outcome.ID,
		Status:    outcome.Status,
		PEN:       outcome.PEN,
		Verdict:   verdict,
		Screening: screening,
	}); err != nil {
		return err
	}

	if len(outcome.Candidates) > 1 {
		payload, _ := json.Marshal(outcome)
		if err := w.bus.Publish(ctx, domain.TopicPossibleMatch, payload); err != nil {
			w.logger.Error("failed to publish possible match event",
				"outcome_id", outcome.ID,
				"error", err,
			)
		}
	}

	w.logger.Info("match request processed",
		"request_id", req.RequestID,
		"outcome_id", outcome.ID,
		"status", outcome.Status,
		"candidates", len(outcome.Candidates),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (w *Worker) savePossibleMatches(ctx context.Context, outcome *domain.MatchOutcome) error {
	if len(outcome.Candidates) == 0 {
		return nil
	}

	now := time.Now().UTC()
	matches := make([]*domain.PossibleMatch, 0, len(outcome.Candidates))
	for i, cand := range outcome.Candidates {
		matches = append(matches, &domain.PossibleMatch{
			ID:        uuid.New().String(),
			OutcomeID: outcome.ID,
			PEN:       cand.PEN,
			Rank:      i + 1,
			Result:    cand.Result,
			CreatedAt: now,
		})
	}
	return w.repo.SavePossibleMatches(ctx, matches)
}

func (w *Worker) publishCompleted(ctx context.Context, msg *MatchCompletedMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.bus.Publish(ctx, domain.TopicMatchCompleted, payload)
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	w.logger.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
