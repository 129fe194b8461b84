// Package service contains the waitlist business logic and the background
// jobs that run next to the HTTP server
package service

import (
	"bitwise74/waitlist-api/internal/metrics"
	"bitwise74/waitlist-api/internal/model"
	"bitwise74/waitlist-api/internal/store"
	"bitwise74/waitlist-api/pkg/validators"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmailTaken = errors.New("this email is already on the waitlist")
	ErrNotFound   = errors.New("user not found")
)

// InputError is returned when the caller supplied missing or malformed data.
// Its message is safe to show to the user
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }
func (e *InputError) Unwrap() error { return e.Err }

// UserStore is everything the waitlist needs from persistence
type UserStore interface {
	Count(ctx context.Context) (int64, error)
	CountRankedAbove(ctx context.Context, rank int) (int64, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByReferralCode(ctx context.Context, code string) (*model.User, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, u *model.User) error
	CreditReferral(ctx context.Context, referrerID string, rank store.RankFunc) (*model.User, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

type SignupInput struct {
	// Left empty by the public signup, which gets a fresh UUID. Profiles
	// created after an auth provider signup reuse the provider's user ID
	ID             string
	Email          string
	Name           string
	ReferredByCode string
}

type Option func(*Waitlist)

// WithClock overrides the time source used for createdAt
func WithClock(now func() time.Time) Option {
	return func(w *Waitlist) { w.now = now }
}

// WithCodeGenerator overrides the referral code generator
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(w *Waitlist) { w.newCode = gen }
}

type Waitlist struct {
	store   UserStore
	now     func() time.Time
	newCode func() (string, error)
}

func NewWaitlist(s UserStore, opts ...Option) *Waitlist {
	w := &Waitlist{
		store:   s,
		now:     func() time.Time { return time.Now().UTC() },
		newCode: GenerateReferralCode,
	}

	for _, o := range opts {
		o(w)
	}

	return w
}

// Signup adds a new user to the waitlist and credits whoever referred them.
//
// The signup position is read before the insert without any isolation, so
// two simultaneous signups can end up with the same starting rank.
func (w *Waitlist) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}

	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	_, err = w.store.FindByEmail(ctx, in.Email)
	if err == nil {
		return nil, ErrEmailTaken
	}

	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	position, err := w.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	code, err := w.uniqueReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:            in.ID,
		Email:         in.Email,
		Name:          in.Name,
		ReferralCode:  code,
		ReferralCount: 0,
		Rank:          CalculateRank(position, 0),
		CreatedAt:     w.now(),
	}

	if in.ReferredByCode != "" {
		ref := in.ReferredByCode
		user.ReferredByCode = &ref
	}

	if err := w.store.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}

		return nil, err
	}

	if user.ReferredByCode != nil {
		w.creditReferrer(ctx, *user.ReferredByCode, user.ID)
	}

	return user, nil
}

// CreateProfile creates the waitlist profile for a user that already exists in
// the auth provider. Calling it again with the same ID returns the stored
// profile untouched and created is false
func (w *Waitlist) CreateProfile(ctx context.Context, in SignupInput) (user *model.User, created bool, err error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, false, &InputError{Err: errors.New("no user ID provided")}
	}

	existing, err := w.store.FindByID(ctx, strings.TrimSpace(in.ID))
	if err == nil {
		return existing, false, nil
	}

	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	user, err = w.Signup(ctx, in)
	if err != nil {
		return nil, false, err
	}

	return user, true, nil
}

func (w *Waitlist) Stats(ctx context.Context) (*model.Stats, error) {
	n, err := w.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &model.Stats{TotalUsers: n}, nil
}

func (w *Waitlist) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		return []model.LeaderboardEntry{}, nil
	}

	return w.store.Leaderboard(ctx, limit)
}

func (w *Waitlist) UserByID(ctx context.Context, id string) (*model.User, error) {
	return notFound(w.store.FindByID(ctx, strings.TrimSpace(id)))
}

func (w *Waitlist) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return notFound(w.store.FindByEmail(ctx, normalizeEmail(email)))
}

// Position returns the current standing of the user owning code
func (w *Waitlist) Position(ctx context.Context, code string) (*model.Position, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !validators.IsReferralCode(code) {
		return nil, ErrNotFound
	}

	user, err := notFound(w.store.FindByReferralCode(ctx, code))
	if err != nil {
		return nil, err
	}

	ahead, err := w.store.CountRankedAbove(ctx, user.Rank)
	if err != nil {
		return nil, err
	}

	return &model.Position{
		Rank:          user.Rank,
		ReferralCount: user.ReferralCount,
		Ahead:         ahead,
	}, nil
}

// uniqueReferralCode keeps generating codes until one is free. There's no
// upper bound on attempts since a collision is roughly a 1 in 36^8 event
func (w *Waitlist) uniqueReferralCode(ctx context.Context) (string, error) {
	for {
		code, err := w.newCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate referral code, %w", err)
		}

		taken, err := w.store.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", err
		}

		if !taken {
			return code, nil
		}

		metrics.CodeCollisions.Inc()
		zap.L().Debug("Referral code collision", zap.String("code", code))
	}
}

// creditReferrer never fails the signup. The new user is stored at this point
// and a missing or broken referrer only means nobody gets the credit
func (w *Waitlist) creditReferrer(ctx context.Context, code, newUserID string) {
	referrer, err := w.store.FindByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.ReferralsUnmatched.Inc()
			return
		}

		zap.L().Error("Failed to look up referrer", zap.String("code", code), zap.Error(err))
		return
	}

	// An unused code typed at signup can be handed out to the very same user
	if referrer.ID == newUserID {
		return
	}

	_, err = w.store.CreditReferral(ctx, referrer.ID, CalculateRank)
	if err != nil {
		zap.L().Error("Failed to credit referrer",
			zap.String("referrerID", referrer.ID),
			zap.String("userID", newUserID),
			zap.Error(err),
		)
		return
	}

	metrics.ReferralsCredited.Inc()
}

func normalize(in SignupInput) (SignupInput, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	if err := validators.EmailValidator(in.Email); err != nil {
		return in, &InputError{Err: err}
	}

	if err := validators.NameValidator(in.Name); err != nil {
		return in, &InputError{Err: err}
	}

	// Malformed codes can't belong to anyone so they're dropped like any
	// other code that doesn't match
	in.ReferredByCode = strings.ToUpper(strings.TrimSpace(in.ReferredByCode))
	if in.ReferredByCode != "" && !validators.IsReferralCode(in.ReferredByCode) {
		in.ReferredByCode = ""
	}

	return in, nil
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func notFound(u *model.User, err error) (*model.User, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}

	return u, err
}
