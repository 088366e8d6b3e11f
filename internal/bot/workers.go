package bot

import (
	"context"
	"errors"
	"time"

	"ntrli-bot/internal/outbox"
	"ntrli-bot/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type aiJob struct {
	id       string
	senderID int64
	prompt   string
}

// nftJob converts imagePath when set, otherwise renders a product canvas
type nftJob struct {
	id        string
	senderID  int64
	imagePath string
	product   string
	section   string
	specs     string
}

func (b *Bot) enqueueAI(senderID int64, prompt string) error {
	job := aiJob{id: uuid.NewString(), senderID: senderID, prompt: prompt}

	select {
	case b.aiJobs <- job:
		b.logger.Debug("AI job queued", zap.String("job_id", job.id), zap.Int64("sender_id", senderID))
		return nil
	default:
		return ErrQueueFull
	}
}

func (b *Bot) enqueueNFT(job nftJob) error {
	job.id = uuid.NewString()

	select {
	case b.nftJobs <- job:
		b.logger.Debug("NFT job queued", zap.String("job_id", job.id), zap.Int64("sender_id", job.senderID))
		return nil
	default:
		return ErrQueueFull
	}
}

// Run drains the AI and NFT queues until ctx is cancelled. Each worker
// handles one job at a time and pauses briefly between jobs.
func (b *Bot) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return drain(ctx, b.aiJobs, b.cfg.WorkerPause, b.processAI)
	})
	g.Go(func() error {
		return drain(ctx, b.nftJobs, b.cfg.WorkerPause, b.processNFT)
	})

	b.logger.Info("Queue workers started")
	err := g.Wait()
	b.logger.Info("Queue workers stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func drain[J any](ctx context.Context, jobs <-chan J, pause time.Duration, process func(context.Context, J)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-jobs:
			process(ctx, job)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}

func (b *Bot) processAI(ctx context.Context, job aiJob) {
	response := b.deps.AI.Generate(ctx, job.senderID, job.prompt)
	b.reply(ctx, job.senderID, response)

	b.logger.Debug("AI job done", zap.String("job_id", job.id))
}

func (b *Bot) processNFT(ctx context.Context, job nftJob) {
	var (
		nftID, nftPath string
		err            error
	)
	if job.imagePath != "" {
		nftID, nftPath, err = b.deps.NFTs.ConvertImage(ctx, job.imagePath, job.product, job.section, map[string]any{
			"source":    "reply",
			"sender_id": job.senderID,
		})
	} else {
		nftID, nftPath, err = b.deps.NFTs.GenerateProductNFT(ctx, job.product, job.section, job.specs)
	}

	if nftID == "" {
		b.logger.Error("NFT job failed", zap.String("job_id", job.id), zap.Error(err))
		b.reply(ctx, job.senderID, "❌ NFT generation failed")
		return
	}
	if err != nil {
		b.logger.Warn("NFT created but registry not saved", zap.String("nft_id", nftID), zap.Error(err))
	}

	b.assignIfSubscriber(ctx, job.senderID, nftID)

	b.replyf(ctx, job.senderID, "✅ NFT Generated: %s\n🎨 Asset ready", nftID)
	b.push(ctx, job.senderID, outbox.Image(nftPath))

	b.logger.Info("NFT job done", zap.String("job_id", job.id), zap.String("nft_id", nftID))
}

func (b *Bot) assignIfSubscriber(ctx context.Context, senderID int64, nftID string) {
	_, err := b.deps.Subscriptions.Get(ctx, senderID)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return
	}
	if err != nil {
		b.logger.Warn("Subscription lookup failed, NFT left unowned",
			zap.Int64("sender_id", senderID),
			zap.String("nft_id", nftID),
			zap.Error(err),
		)
		return
	}

	if err := b.deps.NFTs.AssignOwnership(ctx, nftID, senderID); err != nil {
		b.logger.Warn("NFT ownership assignment failed", zap.String("nft_id", nftID), zap.Error(err))
	}
}
