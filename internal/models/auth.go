package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a student.
type LoginRequest struct {
	RegistrationNumber string `json:"registration_number" validate:"required"`
	Password           string `json:"password" validate:"required"`
	IP                 string `json:"-"`
	UserAgent          string `json:"-"`
}

// RegisterRequest holds the student self-registration payload.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	StateID  string `json:"state_id" validate:"required"`
	CenterID string `json:"center_id" validate:"required"`
}

// AuthResponse returns the upstream-issued token and student info.
type AuthResponse struct {
	Token   string         `json:"token"`
	Student StudentDetails `json:"student"`
}

// StudentDetails describes a student as returned by the upstream API.
type StudentDetails struct {
	StudentID          string `json:"student_id"`
	RegistrationNumber string `json:"registration_number"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	CenterID           string `json:"center_id,omitempty"`
	CenterName         string `json:"center_name,omitempty"`
}

// ForgotPasswordRequest initiates the reset flow upstream.
type ForgotPasswordRequest struct {
	RegistrationNumber string `json:"registration_number" validate:"required"`
}

// ResetPasswordRequest completes the reset flow upstream.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// State is a selectable region for registration.
type State struct {
	StateID string `json:"state_id"`
	Name    string `json:"name"`
}

// Center is a teaching center within a state.
type Center struct {
	CenterID string `json:"center_id"`
	StateID  string `json:"state_id"`
	Name     string `json:"name"`
}

// JWTClaims represents the upstream-issued student token payload.
type JWTClaims struct {
	StudentID          string `json:"student_id"`
	RegistrationNumber string `json:"registration_number"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	jwt.RegisteredClaims
}
