package http

import (
	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/pkg/authsdk"
)

func toUser(u domain.User) authsdk.User {
	return authsdk.User{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Role:             string(u.Role),
		Active:           u.Active,
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
		LastLoginAt:      u.LastLoginAt,
	}
}

func toUsers(us []domain.User) []authsdk.User {
	out := make([]authsdk.User, 0, len(us))
	for _, u := range us {
		out = append(out, toUser(u))
	}
	return out
}
