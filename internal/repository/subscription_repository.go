package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"ntrli-bot/internal/domain"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidTier          = errors.New("invalid subscription tier")
)

// DefaultPeriod is the renewal period used when none is given
const DefaultPeriod = 30 * 24 * time.Hour

// SubscriptionRepository defines the interface for premium subscription data access
type SubscriptionRepository interface {
	Subscribe(ctx context.Context, userID int64, tier domain.Tier, period time.Duration) (*domain.Subscription, error)
	Get(ctx context.Context, userID int64) (*domain.Subscription, error)
	Pause(ctx context.Context, userID int64) error
	Resume(ctx context.Context, userID int64) error
	Cancel(ctx context.Context, userID int64) error
	RenewalDays(ctx context.Context, userID int64) (int, error)
	Count(ctx context.Context) (int, error)
	TierBreakdown(ctx context.Context) (map[domain.Tier]int, error)
	ListActive(ctx context.Context, tier domain.Tier) ([]*domain.Subscription, error)
}

type subscriptionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSubscriptionRepository creates a new instance of SubscriptionRepository
func NewSubscriptionRepository(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db, now: time.Now}
}

// Subscribe creates or replaces the user's subscription as an active one
func (r *subscriptionRepository) Subscribe(ctx context.Context, userID int64, tier domain.Tier, period time.Duration) (*domain.Subscription, error) {
	if _, ok := domain.ParseTier(string(tier)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}
	if period <= 0 {
		period = DefaultPeriod
	}

	now := r.now().UTC()
	sub := &domain.Subscription{
		UserID:    userID,
		Tier:      tier,
		Status:    domain.SubscriptionActive,
		StartedAt: now,
		RenewsAt:  now.Add(period),
		UpdatedAt: now,
	}

	query := `
		INSERT INTO subscriptions (user_id, tier, status, started_at, renews_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier, status = EXCLUDED.status, started_at = EXCLUDED.started_at,
		    renews_at = EXCLUDED.renews_at, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		sub.UserID,
		sub.Tier,
		sub.Status,
		sub.StartedAt,
		sub.RenewsAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	return sub, nil
}

// Get returns the user's subscription if it is active
func (r *subscriptionRepository) Get(ctx context.Context, userID int64) (*domain.Subscription, error) {
	query := `
		SELECT user_id, tier, status, started_at, renews_at, updated_at
		FROM subscriptions
		WHERE user_id = $1 AND status = $2
	`

	sub := &domain.Subscription{}
	err := r.db.QueryRowContext(ctx, query, userID, domain.SubscriptionActive).Scan(
		&sub.UserID,
		&sub.Tier,
		&sub.Status,
		&sub.StartedAt,
		&sub.RenewsAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	return sub, nil
}

// Pause moves an active subscription to paused
func (r *subscriptionRepository) Pause(ctx context.Context, userID int64) error {
	return r.transition(ctx, userID, domain.SubscriptionPaused, domain.SubscriptionActive)
}

// Resume moves a paused subscription back to active
func (r *subscriptionRepository) Resume(ctx context.Context, userID int64) error {
	return r.transition(ctx, userID, domain.SubscriptionActive, domain.SubscriptionPaused)
}

// Cancel ends an active or paused subscription
func (r *subscriptionRepository) Cancel(ctx context.Context, userID int64) error {
	return r.transition(ctx, userID, domain.SubscriptionCancelled, domain.SubscriptionActive, domain.SubscriptionPaused)
}

func (r *subscriptionRepository) transition(ctx context.Context, userID int64, to domain.SubscriptionStatus, from ...domain.SubscriptionStatus) error {
	query := `
		UPDATE subscriptions
		SET status = $2, updated_at = $3
		WHERE user_id = $1 AND status = ANY($4)
	`

	fromStatuses := make([]string, len(from))
	for i, s := range from {
		fromStatuses[i] = string(s)
	}

	result, err := r.db.ExecContext(ctx, query, userID, to, r.now().UTC(), fromStatuses)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSubscriptionNotFound
	}

	return nil
}

// RenewalDays returns the whole days left until an active subscription renews.
// Overdue subscriptions report 0.
func (r *subscriptionRepository) RenewalDays(ctx context.Context, userID int64) (int, error) {
	sub, err := r.Get(ctx, userID)
	if err != nil {
		return 0, err
	}

	left := sub.RenewsAt.Sub(r.now())
	if left <= 0 {
		return 0, nil
	}
	return int(math.Ceil(left.Hours() / 24)), nil
}

// Count returns the number of active subscriptions
func (r *subscriptionRepository) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM subscriptions WHERE status = $1`
	if err := r.db.QueryRowContext(ctx, query, domain.SubscriptionActive).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return count, nil
}

// TierBreakdown counts active subscriptions per tier. Every known tier is present.
func (r *subscriptionRepository) TierBreakdown(ctx context.Context) (map[domain.Tier]int, error) {
	query := `
		SELECT tier, COUNT(*)
		FROM subscriptions
		WHERE status = $1
		GROUP BY tier
	`

	rows, err := r.db.QueryContext(ctx, query, domain.SubscriptionActive)
	if err != nil {
		return nil, fmt.Errorf("failed to count tiers: %w", err)
	}
	defer rows.Close()

	breakdown := map[domain.Tier]int{
		domain.TierStandard: 0,
		domain.TierAdvanced: 0,
	}
	for rows.Next() {
		var tier domain.Tier
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tier count: %w", err)
		}
		breakdown[tier] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tier counts: %w", err)
	}

	return breakdown, nil
}

// ListActive returns active subscriptions ordered by user id, optionally filtered by tier
func (r *subscriptionRepository) ListActive(ctx context.Context, tier domain.Tier) ([]*domain.Subscription, error) {
	query := `
		SELECT user_id, tier, status, started_at, renews_at, updated_at
		FROM subscriptions
		WHERE status = $1
	`
	args := []interface{}{domain.SubscriptionActive}

	if tier != "" {
		query += " AND tier = $2"
		args = append(args, tier)
	}
	query += " ORDER BY user_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []*domain.Subscription{}
	for rows.Next() {
		sub := &domain.Subscription{}
		err := rows.Scan(
			&sub.UserID,
			&sub.Tier,
			&sub.Status,
			&sub.StartedAt,
			&sub.RenewsAt,
			&sub.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}
