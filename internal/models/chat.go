package models

// ChatSession groups the messages of one conversation. Title is derived from
// the first user message.
type ChatSession struct {
	BaseModel

	AccountID string `gorm:"index;not null" json:"account_id"`
	Title     string `json:"title"`

	Messages []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// ChatMessage is a single question/answer exchange within a session.
type ChatMessage struct {
	BaseModel

	SessionID    string `gorm:"type:uuid;index;not null" json:"session_id"`
	AccountID    string `gorm:"index;not null" json:"account_id"`
	Question     string `gorm:"not null" json:"question"`
	Answer       string `json:"answer"`
	ResponseType string `json:"response_type"`
	Language     string `json:"language"`
}
