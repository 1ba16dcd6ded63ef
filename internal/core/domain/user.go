package domain

import "time"

// User is an account of the development identity provider. ProviderFlag is
// the self-declared claim carried in issued tokens.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	ProviderFlag bool      `json:"provider_flag"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
