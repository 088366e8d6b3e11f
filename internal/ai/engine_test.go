package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type failingCompleter struct {
	calls int
}

func (c *failingCompleter) Complete(ctx context.Context, prompt string, history []string) (string, error) {
	c.calls++
	return "", errors.New("backend down")
}

type flakyCompleter struct {
	failures int
	calls    int
}

func (c *flakyCompleter) Complete(ctx context.Context, prompt string, history []string) (string, error) {
	c.calls++
	if c.calls <= c.failures {
		return "", errors.New("transient")
	}
	return "ok: " + prompt, nil
}

func newTestEngine(c Completer, cfg Config) (*Engine, afero.Fs) {
	fs := afero.NewMemMapFs()
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = time.Millisecond
	}
	return NewEngine(c, fs, cfg, zap.NewNop()), fs
}

func TestGenerate_EchoesPromptAndRecordsMilestone(t *testing.T) {
	engine, _ := newTestEngine(EchoCompleter{}, Config{MilestonesFile: "milestones.json"})

	got := engine.Generate(context.Background(), 42, "hvad er OG?")
	if got != "[AI Response] hvad er OG?" {
		t.Fatalf("unexpected response %q", got)
	}

	milestones, err := engine.Milestones()
	if err != nil {
		t.Fatalf("Milestones failed: %v", err)
	}
	if len(milestones) != 1 {
		t.Fatalf("expected 1 milestone, got %d", len(milestones))
	}
	if milestones[0].UserID != 42 || milestones[0].Response != got {
		t.Errorf("unexpected milestone %+v", milestones[0])
	}
}

func TestGenerate_FallbackAfterRetriesExhausted(t *testing.T) {
	backend := &failingCompleter{}
	engine, _ := newTestEngine(backend, Config{MaxRetries: 2})

	got := engine.Generate(context.Background(), 1, "ping")
	if got != FallbackResponse("ping") {
		t.Fatalf("expected fallback, got %q", got)
	}
	if backend.calls != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", backend.calls)
	}
	if summary := engine.MemorySummary(); summary.ConversationLength != 0 {
		t.Errorf("failed exchanges must not enter memory, got %d", summary.ConversationLength)
	}
}

func TestGenerate_RecoversFromTransientFailure(t *testing.T) {
	backend := &flakyCompleter{failures: 1}
	engine, _ := newTestEngine(backend, Config{MaxRetries: 2})

	got := engine.Generate(context.Background(), 1, "ping")
	if got != "ok: ping" {
		t.Fatalf("expected recovered response, got %q", got)
	}
}

func TestGenerate_CancelledContextFallsBack(t *testing.T) {
	engine, _ := newTestEngine(EchoCompleter{Delay: time.Second}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := engine.Generate(ctx, 1, "slow"); got != FallbackResponse("slow") {
		t.Errorf("expected fallback on cancelled context, got %q", got)
	}
}

func TestProperty_MemoryIsBounded(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("memory never exceeds its limit and length counts every exchange", prop.ForAll(
		func(limit int, prompts int) bool {
			engine, _ := newTestEngine(EchoCompleter{}, Config{MemoryLimit: limit})
			for i := 0; i < prompts; i++ {
				engine.Generate(context.Background(), 7, "q")
			}

			summary := engine.MemorySummary()
			expectedRecent := prompts
			if expectedRecent > limit {
				expectedRecent = limit
			}
			return summary.ConversationLength == prompts &&
				len(summary.RecentExchanges) == expectedRecent &&
				summary.MemoryLimit == limit
		},
		gen.IntRange(1, 10),
		gen.IntRange(0, 25),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestReset_ClearsMemory(t *testing.T) {
	engine, _ := newTestEngine(EchoCompleter{}, Config{})
	engine.Generate(context.Background(), 1, "a")
	engine.Reset()

	if summary := engine.MemorySummary(); summary.ConversationLength != 0 || len(summary.RecentExchanges) != 0 {
		t.Errorf("expected empty memory after reset, got %+v", summary)
	}
}
