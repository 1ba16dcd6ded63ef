package domain

import "time"

// Service is a catalog entry a booking is made against.
type Service struct {
	ID       string `json:"id" bson:"_id"`
	Name     string `json:"name" bson:"name"`
	Category string `json:"category" bson:"category"`
	Active   bool   `json:"active" bson:"active"`
}

// Profile is a durable per-role profile document.
type Profile struct {
	UserID      string    `json:"user_id" bson:"_id"`
	DisplayName string    `json:"display_name" bson:"display_name"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// ProfileSet holds whichever role profiles a user has.
type ProfileSet struct {
	Client   *Profile
	Provider *Profile
}

// DisplayName prefers the profile matching role, falling back to the other.
func (s ProfileSet) DisplayName(role Role) string {
	first, second := s.Client, s.Provider
	if role == RoleProvider {
		first, second = s.Provider, s.Client
	}
	if first != nil && first.DisplayName != "" {
		return first.DisplayName
	}
	if second != nil {
		return second.DisplayName
	}
	return ""
}
