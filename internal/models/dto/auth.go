package dto

import "github.com/hongminglow/storefront/internal/models"

type SignUpRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type OTPRequest struct {
	Code string `json:"otp"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"otp"`
}

type PasswordResetVerifyResponse struct {
	ResetToken string `json:"reset_token"`
}

type SetPasswordRequest struct {
	ResetToken   string `json:"reset_token"`
	NewPassword1 string `json:"new_password1"`
	NewPassword2 string `json:"new_password2"`
}

type UpdateProfileRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type DashboardResponse struct {
	User       models.User       `json:"user"`
	Profile    models.Profile    `json:"profile"`
	Membership models.Membership `json:"membership"`
	IsActive   bool              `json:"is_active"`
}
