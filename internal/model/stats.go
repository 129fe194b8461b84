package model

type Stats struct {
	TotalUsers int64 `json:"totalUsers"`
}

// Position describes where a user currently stands on the waitlist
type Position struct {
	Rank          int   `json:"rank"`
	ReferralCount int   `json:"referralCount"`
	Ahead         int64 `json:"ahead"`
}
