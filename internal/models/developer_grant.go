package models

// DeveloperGrant elevates an account to privileged operations. Presence of a
// row grants access; absence denies it regardless of any other attribute.
// Rows are managed out-of-band via cmd/grantdev.
type DeveloperGrant struct {
	BaseModel

	AccountID string `gorm:"uniqueIndex;type:uuid;not null" json:"account_id"`
	Email     string `json:"email"`
}
