// Package store contains the gorm backed data access layer for waitlist users
package store

import (
	"bitwise74/waitlist-api/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// RankFunc computes a rank from a zero indexed signup position and a referral count
type RankFunc func(position int64, referralCount int) int

type Users struct {
	DB *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{DB: db}
}

func (s *Users) Count(ctx context.Context) (int64, error) {
	var n int64

	err := s.DB.WithContext(ctx).
		Model(&model.User{}).
		Count(&n).
		Error
	if err != nil {
		return 0, fmt.Errorf("failed to count users, %w", err)
	}

	return n, nil
}

// CountCreatedBefore returns how many users signed up strictly before t
func (s *Users) CountCreatedBefore(ctx context.Context, t time.Time) (int64, error) {
	return countCreatedBefore(s.DB.WithContext(ctx), t)
}

// CountRankedAbove returns how many users hold a strictly better (lower) rank
func (s *Users) CountRankedAbove(ctx context.Context, rank int) (int64, error) {
	var n int64

	err := s.DB.WithContext(ctx).
		Model(&model.User{}).
		Where("rank < ?", rank).
		Count(&n).
		Error
	if err != nil {
		return 0, fmt.Errorf("failed to count users ranked above %d, %w", rank, err)
	}

	return n, nil
}

func (s *Users) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.findBy(ctx, "id", id)
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findBy(ctx, "email", email)
}

func (s *Users) FindByReferralCode(ctx context.Context, code string) (*model.User, error) {
	return s.findBy(ctx, "referral_code", code)
}

func (s *Users) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var n int64

	err := s.DB.WithContext(ctx).
		Model(&model.User{}).
		Where("referral_code = ?", code).
		Count(&n).
		Error
	if err != nil {
		return false, fmt.Errorf("failed to check referral code, %w", err)
	}

	return n > 0, nil
}

// Create inserts a new user. Unique violations on email, id or referral
// code are reported as ErrDuplicate
func (s *Users) Create(ctx context.Context, u *model.User) error {
	err := s.DB.WithContext(ctx).Create(u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}

		return fmt.Errorf("failed to create user, %w", err)
	}

	return nil
}

// CreditReferral adds one referral to the referrer and stores the rank
// computed by rank for its new referral count. The increment happens in the
// database so two concurrent credits never read the same count
func (s *Users) CreditReferral(ctx context.Context, referrerID string, rank RankFunc) (*model.User, error) {
	var referrer model.User

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := tx.Model(&model.User{}).
			Where("id = ?", referrerID).
			UpdateColumn("referral_count", gorm.Expr("referral_count + ?", 1))
		if r.Error != nil {
			return r.Error
		}

		if r.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Where("id = ?", referrerID).First(&referrer).Error; err != nil {
			return err
		}

		position, err := countCreatedBefore(tx, referrer.CreatedAt)
		if err != nil {
			return err
		}

		referrer.Rank = rank(position, referrer.ReferralCount)

		return tx.Model(&model.User{}).
			Where("id = ?", referrerID).
			UpdateColumn("rank", referrer.Rank).
			Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to credit referral, %w", err)
	}

	return &referrer, nil
}

// Leaderboard returns at most limit users ordered best rank first. Ties go
// to whoever signed up earlier
func (s *Users) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	entries := []model.LeaderboardEntry{}

	err := s.DB.WithContext(ctx).
		Model(&model.User{}).
		Select("name", "email", "referral_code", "referral_count", "rank").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "rank"}}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}}).
		Limit(limit).
		Find(&entries).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard, %w", err)
	}

	return entries, nil
}

// All returns every user in signup order
func (s *Users) All(ctx context.Context) ([]model.User, error) {
	var users []model.User

	err := s.DB.WithContext(ctx).
		Order("created_at asc").
		Order("id asc").
		Find(&users).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users, %w", err)
	}

	return users, nil
}

// SetReferralStats overwrites the referral count and rank of a user
func (s *Users) SetReferralStats(ctx context.Context, id string, referralCount, rank int) error {
	err := s.DB.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"referral_count": referralCount,
			"rank":           rank,
		}).
		Error
	if err != nil {
		return fmt.Errorf("failed to update referral stats of %s, %w", id, err)
	}

	return nil
}

func (s *Users) findBy(ctx context.Context, column, value string) (*model.User, error) {
	var u model.User

	err := s.DB.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		First(&u).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to find user by %s, %w", column, err)
	}

	return &u, nil
}

func countCreatedBefore(db *gorm.DB, t time.Time) (int64, error) {
	var n int64

	err := db.
		Model(&model.User{}).
		Where("created_at < ?", t).
		Count(&n).
		Error
	if err != nil {
		return 0, fmt.Errorf("failed to count users created before %s, %w", t, err)
	}

	return n, nil
}
