package models

// UserProfile is the display data returned by the identity service
type UserProfile struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	// Placeholder is true when the identity service could not be reached
	Placeholder bool `json:"placeholder,omitempty"`
}

// PlaceholderDisplayName is shown for users whose profile could not be loaded
const PlaceholderDisplayName = "Unknown user"

// PlaceholderProfile returns the minimal profile used when identity lookup is degraded
func PlaceholderProfile(userID string) *UserProfile {
	return &UserProfile{
		ID:          userID,
		Role:        "unknown",
		DisplayName: PlaceholderDisplayName,
		Placeholder: true,
	}
}
