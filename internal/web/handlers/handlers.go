// Package handlers wires the HTTP surface to the auth and donation
// services.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jredh-dev/surpluserve/internal/auth"
	"github.com/jredh-dev/surpluserve/internal/donation"
	"github.com/jredh-dev/surpluserve/internal/token"
	"github.com/jredh-dev/surpluserve/pkg/models"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	auth      *auth.Service
	donations *donation.Service
	tokens    *token.Service
	tokenTTL  time.Duration
}

// New creates a new Handler.
func New(authService *auth.Service, donations *donation.Service, tokens *token.Service, tokenTTL time.Duration) *Handler {
	return &Handler{
		auth:      authService,
		donations: donations,
		tokens:    tokens,
		tokenTTL:  tokenTTL,
	}
}

type registerReq struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
	Phone        string `json:"phone"`
}

// Register creates a donor or recipient account and returns a bearer token.
// POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		Role:         models.Role(req.Role),
		Organization: req.Organization,
		Phone:        req.Phone,
	})
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		jsonError(w, "email, password, name, and a valid role are required", http.StatusBadRequest)
		return
	case errors.Is(err, auth.ErrUserExists):
		jsonError(w, "user already exists", http.StatusConflict)
		return
	case err != nil:
		log.Printf("register failed: %v", err)
		jsonError(w, "registration failed", http.StatusInternalServerError)
		return
	}

	tok, err := h.tokens.GenerateToken(user, h.tokenTTL)
	if err != nil {
		log.Printf("token generation failed for %s: %v", user.ID, err)
		jsonError(w, "registration failed", http.StatusInternalServerError)
		return
	}

	jsonOK(w, http.StatusCreated, map[string]string{"token": tok})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and returns a bearer token.
// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		jsonError(w, "email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		log.Printf("login failed: %v", err)
		jsonError(w, "login failed", http.StatusInternalServerError)
		return
	}

	tok, err := h.tokens.GenerateToken(user, h.tokenTTL)
	if err != nil {
		log.Printf("token generation failed for %s: %v", user.ID, err)
		jsonError(w, "login failed", http.StatusInternalServerError)
		return
	}

	jsonOK(w, http.StatusOK, map[string]string{"token": tok})
}

// --- helpers ---

func jsonOK(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
