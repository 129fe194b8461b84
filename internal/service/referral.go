package service

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// ReferralAlphabet holds every symbol a referral code may contain
	ReferralAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	ReferralCodeLength = 8

	BaseRank        = 100
	RankPerReferral = 50
)

// GenerateReferralCode returns a random code of ReferralCodeLength symbols
// picked uniformly from ReferralAlphabet. It says nothing about uniqueness,
// callers have to check that themselves
func GenerateReferralCode() (string, error) {
	return gonanoid.Generate(ReferralAlphabet, ReferralCodeLength)
}

// CalculateRank turns a zero indexed signup position and a referral count
// into a leaderboard rank. Lower is better and 1 is the best possible rank.
// Every referral is worth RankPerReferral places
func CalculateRank(position int64, referralCount int) int {
	rank := BaseRank + position - int64(RankPerReferral)*int64(referralCount)
	if rank < 1 {
		return 1
	}

	return int(rank)
}
