package models

import "time"

// OTPPurpose enumerates the flows a one-time code can gate.
type OTPPurpose string

const (
	OTPPurposeSignup        OTPPurpose = "signup"
	OTPPurposeLogin         OTPPurpose = "login"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
)

// Valid reports whether the purpose is one of the known flows.
func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPPurposeSignup, OTPPurposeLogin, OTPPurposePasswordReset:
		return true
	}
	return false
}

// OTPCode is a ledger entry for an issued one-time code. A consumed record
// never satisfies a verification again; expiry is checked at verification
// time, the retention sweep only keeps the table small.
type OTPCode struct {
	BaseModel

	Email     string     `gorm:"index:idx_otp_email_purpose;not null" json:"email"`
	Code      string     `gorm:"not null" json:"-"`
	Purpose   OTPPurpose `gorm:"index:idx_otp_email_purpose;not null" json:"purpose"`
	ExpiresAt time.Time  `gorm:"index" json:"expires_at"`
	Consumed  bool       `gorm:"not null;default:false" json:"consumed"`
}
