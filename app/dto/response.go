package dto

import "github.com/vantage-solutions/ms-go-accounts/app/entity"

// UserProfile is the public projection of an account; it never carries the
// password hash or any token material.
type UserProfile struct {
	ID         uint64 `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsVerified bool   `json:"is_verified"`
}

func NewUserProfile(user *entity.User) UserProfile {
	return UserProfile{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		IsVerified: user.IsVerified,
	}
}

type RegisterResponse struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Message  string `json:"message"`
}

type LoginResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         UserProfile `json:"user"`
}

type ListUsersResponse struct {
	Total int           `json:"total"`
	Users []UserProfile `json:"users"`
}

type ProfileResponse struct {
	Message string      `json:"message,omitempty"`
	User    UserProfile `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
