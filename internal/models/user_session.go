package models

// UserSession represents an authenticated platform user
type UserSession struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	ExpiresAt int64  `json:"exp"`
	IssuedAt  int64  `json:"iat"`
}

// IsMentor reports whether the user acts as a mentor
func (s *UserSession) IsMentor() bool {
	return s.Role == "mentor"
}
