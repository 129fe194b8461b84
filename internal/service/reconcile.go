package service

import (
	"bitwise74/waitlist-api/internal/model"
	"context"

	"go.uber.org/zap"
)

type ReconcileStore interface {
	All(ctx context.Context) ([]model.User, error)
	SetReferralStats(ctx context.Context, id string, referralCount, rank int) error
}

// Reconciler rebuilds every referral count from the referredByCode links and
// recomputes ranks from signup order. Concurrent signups may leave stale
// positions or counts behind, a reconcile run settles them again.
type Reconciler struct {
	store ReconcileStore
}

func NewReconciler(s ReconcileStore) *Reconciler {
	return &Reconciler{store: s}
}

// Run returns the number of users whose stats changed
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	users, err := r.store.All(ctx)
	if err != nil {
		return 0, err
	}

	owners := make(map[string]*model.User, len(users))
	for i := range users {
		owners[users[i].ReferralCode] = &users[i]
	}

	counts := make(map[string]int, len(users))
	for _, u := range users {
		if u.ReferredByCode == nil {
			continue
		}

		referrer, ok := owners[*u.ReferredByCode]
		if !ok || referrer.ID == u.ID {
			continue
		}

		// Codes handed out after the signup never got credited for it
		if !referrer.CreatedAt.Before(u.CreatedAt) {
			continue
		}

		counts[referrer.ID]++
	}

	updated := 0
	position := 0

	for i, u := range users {
		// Users are sorted by createdAt, ties share the position of the
		// first one since nobody among them signed up strictly before
		if i == 0 || users[i-1].CreatedAt.Before(u.CreatedAt) {
			position = i
		}

		count := counts[u.ID]
		rank := CalculateRank(int64(position), count)

		if count == u.ReferralCount && rank == u.Rank {
			continue
		}

		if err := r.store.SetReferralStats(ctx, u.ID, count, rank); err != nil {
			return updated, err
		}

		zap.L().Debug("Reconciled user",
			zap.String("userID", u.ID),
			zap.Int("referralCount", count),
			zap.Int("rank", rank),
		)
		updated++
	}

	return updated, nil
}
