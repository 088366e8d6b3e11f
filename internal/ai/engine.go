package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	DefaultMemoryLimit = 20
	DefaultMaxRetries  = 2
	DefaultBackoff     = 50 * time.Millisecond
)

// Completer produces a reply for a prompt given recent conversation lines
type Completer interface {
	Complete(ctx context.Context, prompt string, history []string) (string, error)
}

// EchoCompleter is the placeholder backend: it answers every prompt by
// echoing it after an optional delay.
type EchoCompleter struct {
	Delay time.Duration
}

// Complete implements Completer
func (c EchoCompleter) Complete(ctx context.Context, prompt string, _ []string) (string, error) {
	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "[AI Response] " + prompt, nil
}

// Exchange is one prompt/response pair kept in conversation memory
type Exchange struct {
	UserID   int64     `json:"user_id"`
	Prompt   string    `json:"prompt"`
	Response string    `json:"response"`
	At       time.Time `json:"at"`
}

// Milestone is one line of the milestones log
type Milestone struct {
	UserID   int64     `json:"user_id"`
	Prompt   string    `json:"prompt"`
	Response string    `json:"response"`
	At       time.Time `json:"at"`
}

// MemorySummary describes the current conversation memory
type MemorySummary struct {
	ConversationLength int        `json:"conversation_length"`
	RecentExchanges    []Exchange `json:"recent_exchanges"`
	MemoryLimit        int        `json:"memory_limit"`
}

// Config holds engine settings
type Config struct {
	MemoryLimit    int
	MilestonesFile string
	MaxRetries     uint64
	BaseBackoff    time.Duration
}

// Engine wraps a Completer with bounded retries, conversation memory and
// a milestones log. Generate never fails: exhausted retries produce a
// fallback reply.
type Engine struct {
	mu          sync.Mutex
	completer   Completer
	fs          afero.Fs
	logger      *zap.Logger
	cfg         Config
	memory      []Exchange
	totalLength int
}

// NewEngine creates a new AI engine
func NewEngine(completer Completer, fs afero.Fs, cfg Config, logger *zap.Logger) *Engine {
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = DefaultMemoryLimit
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBackoff
	}
	return &Engine{
		completer: completer,
		fs:        fs,
		logger:    logger,
		cfg:       cfg,
	}
}

// FallbackResponse is the reply used when the backend cannot answer
func FallbackResponse(prompt string) string {
	return fmt.Sprintf("(Fallback AI svar: %s)", prompt)
}

// Generate answers prompt on behalf of userID
func (e *Engine) Generate(ctx context.Context, userID int64, prompt string) string {
	history := e.history()

	var response string
	backoff := retry.WithMaxRetries(e.cfg.MaxRetries, retry.NewExponential(e.cfg.BaseBackoff))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		out, err := e.completer.Complete(ctx, prompt, history)
		if err != nil {
			e.logger.Warn("AI completion attempt failed",
				zap.Int("attempt", attempt),
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		response = out
		return nil
	})
	if err != nil {
		e.logger.Error("AI generation failed, using fallback", zap.Error(err))
		return FallbackResponse(prompt)
	}

	now := time.Now().UTC()
	e.remember(Exchange{UserID: userID, Prompt: prompt, Response: response, At: now})
	if err := e.recordMilestone(Milestone{UserID: userID, Prompt: prompt, Response: response, At: now}); err != nil {
		e.logger.Warn("Milestone record failed", zap.Error(err))
	}

	return response
}

// MemorySummary returns a snapshot of the conversation memory
func (e *Engine) MemorySummary() MemorySummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	recent := make([]Exchange, len(e.memory))
	copy(recent, e.memory)

	return MemorySummary{
		ConversationLength: e.totalLength,
		RecentExchanges:    recent,
		MemoryLimit:        e.cfg.MemoryLimit,
	}
}

// Reset clears conversation memory. The milestones log is kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memory = nil
	e.totalLength = 0
}

// Milestones reads back every recorded milestone. Unparsable lines are
// skipped.
func (e *Engine) Milestones() ([]Milestone, error) {
	if e.cfg.MilestonesFile == "" {
		return nil, nil
	}

	f, err := e.fs.Open(e.cfg.MilestonesFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Milestone{}, nil
		}
		return nil, fmt.Errorf("failed to open milestones: %w", err)
	}
	defer f.Close()

	milestones := []Milestone{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var m Milestone
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			e.logger.Debug("Skipping malformed milestone line", zap.Error(err))
			continue
		}
		milestones = append(milestones, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read milestones: %w", err)
	}

	return milestones, nil
}

func (e *Engine) history() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	lines := make([]string, 0, len(e.memory)*2)
	for _, ex := range e.memory {
		lines = append(lines, "User: "+ex.Prompt, "AI: "+ex.Response)
	}
	return lines
}

func (e *Engine) remember(ex Exchange) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.memory = append(e.memory, ex)
	if len(e.memory) > e.cfg.MemoryLimit {
		e.memory = e.memory[len(e.memory)-e.cfg.MemoryLimit:]
	}
	e.totalLength++
}

func (e *Engine) recordMilestone(m Milestone) error {
	if e.cfg.MilestonesFile == "" {
		return nil
	}

	line, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode milestone: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.fs.OpenFile(e.cfg.MilestonesFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open milestones: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append milestone: %w", err)
	}
	return nil
}
