package validators

import "regexp"

var referralCodeRe = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// IsReferralCode reports whether c is shaped like a referral code. It
// expects the code to be upper-cased already
func IsReferralCode(c string) bool {
	return referralCodeRe.MatchString(c)
}
