package models

// Feedback is a user-submitted note. AccountID is set only when the submitter
// presented a valid bearer token.
type Feedback struct {
	BaseModel

	AccountID *string `gorm:"index" json:"account_id,omitempty"`
	Name      string  `gorm:"not null" json:"name"`
	Email     string  `json:"email"`
	Message   string  `gorm:"not null" json:"message"`
}
