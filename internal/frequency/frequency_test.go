package frequency

import (
	"context"
	"testing"
	"time"

	"github.com/edu-registry/penmatch/internal/domain"
)

type tableStub struct {
	counts map[string]int
	calls  int
}

func (s *tableStub) SurnameFrequency(ctx context.Context, prefix string) (int, error) {
	s.calls++
	return s.counts[prefix], nil
}

func (s *tableStub) Nicknames(ctx context.Context, name string) ([]domain.NicknamePair, error) {
	return nil, nil
}

func (s *tableStub) ForeignSurname(ctx context.Context, surname, category string) (bool, error) {
	return false, nil
}

func (s *tableStub) MatchCodeResult(ctx context.Context, code string) (domain.MatchResult, error) {
	return domain.ResultFail, nil
}

type cacheStub struct {
	freqs map[string]int
}

func (c *cacheStub) Get(ctx context.Context, key string) ([]byte, error) { return nil, nil }
func (c *cacheStub) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (c *cacheStub) Delete(ctx context.Context, key string) error { return nil }
func (c *cacheStub) Ping(ctx context.Context) error               { return nil }
func (c *cacheStub) Close() error                                 { return nil }

func (c *cacheStub) GetFrequency(ctx context.Context, prefix string) (int, bool, error) {
	count, ok := c.freqs[prefix]
	return count, ok, nil
}

func (c *cacheStub) SetFrequency(ctx context.Context, prefix string, count int, ttl time.Duration) error {
	c.freqs[prefix] = count
	return nil
}

func TestCountReadsThroughCache(t *testing.T) {
	tables := &tableStub{counts: map[string]int{"SMIT": 120}}
	cache := &cacheStub{freqs: map[string]int{}}
	svc := NewService(tables, cache, time.Minute)

	count, err := svc.Count(context.Background(), "SMIT")
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 120 {
		t.Errorf("count = %d, want 120", count)
	}
	if tables.calls != 1 {
		t.Errorf("table calls = %d, want 1", tables.calls)
	}

	// Second read is served from cache.
	if _, err := svc.Count(context.Background(), "SMIT"); err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if tables.calls != 1 {
		t.Errorf("table calls after cached read = %d, want 1", tables.calls)
	}
}

func TestCountWithoutCache(t *testing.T) {
	tables := &tableStub{counts: map[string]int{"JONE": 40}}
	svc := NewService(tables, nil, 0)

	count, err := svc.Count(context.Background(), "JONE")
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 40 {
		t.Errorf("count = %d, want 40", count)
	}
}

func TestCountRequiresPrefix(t *testing.T) {
	svc := NewService(&tableStub{}, nil, 0)
	if _, err := svc.Count(context.Background(), ""); err == nil {
		t.Error("Count(\"\") passed, want error")
	}
}
