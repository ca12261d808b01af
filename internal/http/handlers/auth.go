package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"server/internal/domain"
	"server/internal/middleware"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Token string `json:"token"`
}

type loginResponse struct {
	Token           string          `json:"token"`
	IsPremium       bool            `json:"is_premium"`
	FreePredictions map[string]bool `json:"free_predictions"`
}

type userProfileDTO struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	IsPremium       bool            `json:"is_premium"`
	FreePredictions map[string]bool `json:"free_predictions"`
}

// canonicalEmail is the single place the login key is normalized.
func canonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	email := canonicalEmail(req.Email)
	if email == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "email and password required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.Logger.Error().Err(err).Msg("hash password failed")
		a.error(w, http.StatusInternalServerError, "internal", "registration failed")
		return
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := a.Users.Create(r.Context(), user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			a.error(w, http.StatusConflict, "email_taken", "email already in use")
			return
		}
		a.Logger.Error().Err(err).Msg("create user failed")
		a.error(w, http.StatusInternalServerError, "internal", "registration failed")
		return
	}

	token, err := middleware.SignJWT(a.JWTSecret, user.ID, user.IsPremium, a.JWTTTL)
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "internal", "registration failed")
		return
	}
	a.json(w, http.StatusCreated, registerResponse{Token: token})
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	user, err := a.Users.GetByEmail(r.Context(), canonicalEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}
		a.Logger.Error().Err(err).Msg("load user failed")
		a.error(w, http.StatusInternalServerError, "internal", "login failed")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	windows, err := a.Ledger.ConsumedWindows(r.Context(), user.ID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("load consumed windows failed")
		windows = map[string]bool{}
	}

	token, err := middleware.SignJWT(a.JWTSecret, user.ID, user.IsPremium, a.JWTTTL)
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "internal", "login failed")
		return
	}
	a.json(w, http.StatusOK, loginResponse{
		Token:           token,
		IsPremium:       user.IsPremium,
		FreePredictions: windows,
	})
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		a.Logger.Error().Err(err).Msg("load user failed")
		a.error(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}

	windows, err := a.Ledger.ConsumedWindows(r.Context(), user.ID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("load consumed windows failed")
		windows = map[string]bool{}
	}
	a.json(w, http.StatusOK, userProfileDTO{
		ID:              user.ID,
		Email:           user.Email,
		IsPremium:       user.IsPremium,
		FreePredictions: windows,
	})
}
