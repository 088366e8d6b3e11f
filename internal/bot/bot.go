// Package bot parses chat commands and drives the catalog, NFT, AI and
// subscription layers. Replies are delivered through an outbox.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ntrli-bot/internal/ai"
	"ntrli-bot/internal/catalog"
	"ntrli-bot/internal/middleware"
	"ntrli-bot/internal/nft"
	"ntrli-bot/internal/outbox"
	"ntrli-bot/internal/repository"
	"ntrli-bot/internal/store"

	"go.uber.org/zap"
)

var (
	ErrNotACommand = errors.New("not a bot command")
	ErrQueueFull   = errors.New("queue is full")
)

const (
	DefaultQueueSize   = 64
	DefaultWorkerPause = 10 * time.Millisecond

	DefaultNFTProduct = "NTRLI' Product"
	DefaultNFTSection = "Premium Selection"
)

// Update is one inbound chat message
type Update struct {
	SenderID int64
	Text     string
	// ReplyImagePath is the local path of the image the message replies to, if any
	ReplyImagePath string
}

// Handler processes a parsed command. A returned error is turned into a
// short reply for the sender by the dispatcher.
type Handler func(ctx context.Context, cmd *Command) error

// Middleware wraps a Handler
type Middleware func(Handler) Handler

// Command is an Update split into its command word and arguments
type Command struct {
	Update
	Name string
	Args []string
}

// Rest joins the arguments from index i on
func (c *Command) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// UsageError carries the usage line shown for malformed commands
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Usage
}

func usage(u string) error {
	return &UsageError{Usage: u}
}

// AIEngine is the part of the AI layer the bot talks to
type AIEngine interface {
	Generate(ctx context.Context, userID int64, prompt string) string
	MemorySummary() ai.MemorySummary
	Milestones() ([]ai.Milestone, error)
	Reset()
}

// Config controls bot behaviour. Live and IsAdmin are required.
type Config struct {
	Live        func() bool
	IsAdmin     func(userID int64) bool
	QueueSize   int
	WorkerPause time.Duration
	// RenewalPeriod is used by /admin_grant when no day count is given
	RenewalPeriod time.Duration
}

// Deps are the layers the bot orchestrates. Limiter may be nil.
type Deps struct {
	Catalog       catalog.Repository
	NFTs          nft.Registry
	AI            AIEngine
	Subscriptions repository.SubscriptionRepository
	Outbox        outbox.Outbox
	Limiter       middleware.Limiter
}

// Bot is the command dispatcher
type Bot struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	public map[string]Handler
	admin  map[string]Handler
	chain  []Middleware

	aiJobs  chan aiJob
	nftJobs chan nftJob
}

// New creates a Bot. Run must be called for /ask and /nft jobs to be processed.
func New(cfg Config, deps Deps, logger *zap.Logger) *Bot {
	if cfg.Live == nil {
		cfg.Live = func() bool { return true }
	}
	if cfg.IsAdmin == nil {
		cfg.IsAdmin = func(int64) bool { return false }
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.WorkerPause <= 0 {
		cfg.WorkerPause = DefaultWorkerPause
	}
	if cfg.RenewalPeriod <= 0 {
		cfg.RenewalPeriod = repository.DefaultPeriod
	}

	b := &Bot{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		aiJobs:  make(chan aiJob, cfg.QueueSize),
		nftJobs: make(chan nftJob, cfg.QueueSize),
	}

	b.chain = []Middleware{LiveOnly(cfg.Live)}
	if deps.Limiter != nil {
		b.chain = append(b.chain, RateLimited(deps.Limiter, b.reply, logger))
	}

	b.registerPublic()
	b.registerAdmin()
	return b
}

// IsAdminFunc builds an authorization predicate from a list of admin ids
func IsAdminFunc(ids []int64) func(int64) bool {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(userID int64) bool {
		_, ok := set[userID]
		return ok
	}
}

// Parse splits a message into a Command. Bot mentions ("/menu@ntrli_bot")
// are stripped from the command word.
func Parse(u Update) (*Command, error) {
	fields := strings.Fields(u.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil, ErrNotACommand
	}

	name := strings.ToLower(fields[0])
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}

	return &Command{Update: u, Name: name, Args: fields[1:]}, nil
}

// Dispatch routes an update to its handler. Unknown public commands and
// plain text return ErrNotACommand; every other outcome is answered
// through the outbox.
func (b *Bot) Dispatch(ctx context.Context, u Update) error {
	cmd, err := Parse(u)
	if err != nil {
		return err
	}

	var h Handler
	if strings.HasPrefix(cmd.Name, "/admin") {
		h = AdminOnly(b.cfg.IsAdmin, b.reply)(b.handleAdmin)
	} else if ph, ok := b.public[cmd.Name]; ok {
		h = ph
	} else {
		return ErrNotACommand
	}

	for i := len(b.chain) - 1; i >= 0; i-- {
		h = b.chain[i](h)
	}

	if err := h(ctx, cmd); err != nil {
		b.logger.Warn("Command failed",
			zap.String("command", cmd.Name),
			zap.Int64("sender_id", cmd.SenderID),
			zap.Error(err),
		)
		b.reply(ctx, cmd.SenderID, ErrorReply(err))
	}
	return nil
}

// ErrorReply maps a failure to the short message shown to the sender
func ErrorReply(err error) string {
	var ue *UsageError
	switch {
	case errors.As(err, &ue):
		return "Usage: " + ue.Usage
	case errors.Is(err, ErrQueueFull):
		return "⏳ Travlt lige nu. Prøv igen om lidt."
	case errors.Is(err, catalog.ErrSectionNotFound):
		return "❌ Section not found"
	case errors.Is(err, catalog.ErrProductNotFound):
		return "❌ Product not found"
	case errors.Is(err, nft.ErrNFTNotFound):
		return "❌ NFT not found"
	case errors.Is(err, repository.ErrSubscriptionNotFound):
		return "❌ Ingen aktiv subscription"
	case errors.Is(err, catalog.ErrInvalidField), errors.Is(err, repository.ErrInvalidTier):
		return "❌ Invalid value"
	case errors.Is(err, catalog.ErrAIUnavailable):
		return "⚠️ AI error. Self-heal activated."
	case errors.Is(err, store.ErrIO), errors.Is(err, store.ErrCorrupt):
		return "⚠️ Storage error. Self-heal activated."
	default:
		return "⚠️ Command error. Self-heal activated."
	}
}

func (b *Bot) reply(ctx context.Context, userID int64, text string) {
	b.push(ctx, userID, outbox.Text(text))
}

func (b *Bot) push(ctx context.Context, userID int64, msg outbox.Message) {
	if err := b.deps.Outbox.Push(ctx, userID, msg); err != nil {
		b.logger.Error("Reply delivery failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}
}

func (b *Bot) replyf(ctx context.Context, userID int64, format string, args ...interface{}) {
	b.reply(ctx, userID, fmt.Sprintf(format, args...))
}
