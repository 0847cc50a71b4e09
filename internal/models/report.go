package models

import "gorm.io/datatypes"

// Report stores a generated farming report for an account.
type Report struct {
	BaseModel

	AccountID string `gorm:"index;not null" json:"account_id"`
	CropName  string `gorm:"not null" json:"crop_name"`
	Region    string `gorm:"not null" json:"region"`
	Language  string `json:"language"`

	// Payload holds the generated report sections as produced by the
	// report generator.
	Payload datatypes.JSON `json:"payload"`
}
