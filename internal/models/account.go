package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Authentication provider labels recorded in Account.AuthProviders.
const (
	ProviderLocal     = "local"
	ProviderFederated = "google"
)

// Account is the single record an email resolves to regardless of signup
// path. Email is stored lowercase; FederatedUID is set only for accounts that
// have signed in through the identity provider at least once.
type Account struct {
	BaseModel

	Email        string  `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash *string `gorm:"" json:"-"`
	FederatedUID *string `gorm:"uniqueIndex" json:"-"`

	// AuthProviders is a JSON array of provider labels. It grows
	// monotonically: linking adds, never removes.
	AuthProviders datatypes.JSON `gorm:"not null" json:"auth_providers"`

	DisplayName    string `json:"display_name"`
	ProfilePicture string `json:"profile_picture"`

	LastLoginAt *time.Time `json:"last_login_at"`
}

// Providers decodes the stored provider set.
func (a *Account) Providers() []string {
	var providers []string
	if len(a.AuthProviders) == 0 {
		return providers
	}
	_ = json.Unmarshal(a.AuthProviders, &providers)
	return providers
}

// HasProvider reports whether the given provider label is present.
func (a *Account) HasProvider(name string) bool {
	for _, p := range a.Providers() {
		if p == name {
			return true
		}
	}
	return false
}

// WithProvider returns the provider set extended with name (idempotent).
func (a *Account) WithProvider(name string) datatypes.JSON {
	providers := a.Providers()
	for _, p := range providers {
		if p == name {
			return a.AuthProviders
		}
	}
	providers = append(providers, name)
	encoded, _ := json.Marshal(providers)
	return datatypes.JSON(encoded)
}

// ProviderSet encodes a provider list for storage.
func ProviderSet(names ...string) datatypes.JSON {
	encoded, _ := json.Marshal(names)
	return datatypes.JSON(encoded)
}

// HasPassword reports whether local password login is possible.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}
