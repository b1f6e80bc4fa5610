package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Worker represents a field worker account with their device API key
type Worker struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	APIKey     string    `json:"apiKey,omitempty"` // Only shown on creation
	APIKeyHash string    `json:"-"`                // Never exposed
	PINHash    string    `json:"-"`                // Never exposed
	IsAdmin    bool      `json:"isAdmin"`
	CreatedAt  time.Time `json:"createdAt"`
	IsActive   bool      `json:"isActive"`
}

// WorkerResponse is the safe response format (no API key)
type WorkerResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	IsActive  bool      `json:"isActive"`
	HasPIN    bool      `json:"hasPin"`
}

// CreateWorkerRequest is the request body for creating a worker
type CreateWorkerRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	IsAdmin  bool   `json:"isAdmin"`
	PIN      string `json:"pin,omitempty"`
}

// NewWorker creates a new worker with a generated API key
func NewWorker(email, fullName string, isAdmin bool) (*Worker, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	fullName = strings.TrimSpace(fullName)

	if email == "" {
		return nil, ErrEmptyEmail
	}
	if fullName == "" {
		return nil, ErrEmptyFullName
	}

	apiKey, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	return &Worker{
		ID:         uuid.New().String(),
		Email:      email,
		FullName:   fullName,
		APIKey:     apiKey,
		APIKeyHash: HashAPIKey(apiKey),
		IsAdmin:    isAdmin,
		CreatedAt:  time.Now().UTC(),
		IsActive:   true,
	}, nil
}

// ToResponse converts Worker to WorkerResponse (safe for API)
func (w *Worker) ToResponse() WorkerResponse {
	return WorkerResponse{
		ID:        w.ID,
		Email:     w.Email,
		FullName:  w.FullName,
		IsAdmin:   w.IsAdmin,
		CreatedAt: w.CreatedAt,
		IsActive:  w.IsActive,
		HasPIN:    w.PINHash != "",
	}
}

// GenerateAPIKey creates a secure random API key
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// HashAPIKey creates a SHA256 hash of an API key for lookup
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// SetPIN hashes and sets the worker's clock-in PIN using bcrypt (cost 12)
func (w *Worker) SetPIN(pin string) error {
	if len(pin) < 4 || len(pin) > 8 {
		return ErrInvalidPINLength
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return ErrInvalidPINFormat
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), 12)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}

	w.PINHash = string(hash)
	return nil
}

// VerifyPIN checks if the provided PIN matches the hash (constant-time via bcrypt)
func (w *Worker) VerifyPIN(pin string) bool {
	if w.PINHash == "" {
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(w.PINHash), []byte(pin))
	return err == nil
}

// HasPIN returns true if the worker has a clock-in PIN set
func (w *Worker) HasPIN() bool {
	return w.PINHash != ""
}

// Worker errors
var (
	ErrEmptyEmail       = WorkerError{"email cannot be empty"}
	ErrEmptyFullName    = WorkerError{"full name cannot be empty"}
	ErrWorkerNotFound   = WorkerError{"worker not found"}
	ErrEmailExists      = WorkerError{"email already registered"}
	ErrInvalidAPIKey    = WorkerError{"invalid API key"}
	ErrInvalidPINLength = WorkerError{"pin must be 4 to 8 digits"}
	ErrInvalidPINFormat = WorkerError{"pin must contain only digits"}
)

type WorkerError struct {
	Message string
}

func (e WorkerError) Error() string {
	return e.Message
}
