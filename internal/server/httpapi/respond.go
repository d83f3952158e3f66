package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	validation "github.com/go-ozzo/ozzo-validation"
)

const maxBodyBytes = 1 << 20

type messageResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type authResponse struct {
	AccessToken  string     `json:"accessToken,omitempty"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

func toAuthResponse(r *services.AuthResponse) authResponse {
	out := authResponse{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	if !r.AccessExpiresAt.IsZero() {
		at := r.AccessExpiresAt.UTC()
		out.ExpiresAt = &at
	}
	return out
}

type validatable interface {
	Validate() error
}

var errBadBody = errors.New("malformed request body")

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst validatable) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errBadBody, err)
	}
	return dst.Validate()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// statusOf maps service errors onto HTTP statuses and client-safe messages.
// Anything unrecognised is a 500 and must be logged by the caller.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, common.ErrAccountNotVerified):
		return http.StatusForbidden, "account not verified"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, common.ErrTokenRevoked):
		return http.StatusUnauthorized, "token revoked"
	case errors.Is(err, common.ErrTokenNotFound), errors.Is(err, common.ErrTokenInvalid):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return http.StatusBadRequest, "invalid or expired token"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for k, v := range verrs {
			fields[k] = v.Error()
		}
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "validation failed", Errors: fields})
		return
	case errors.Is(err, errBadBody):
		writeMessage(w, http.StatusBadRequest, errBadBody.Error())
		return
	}

	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeMessage(w, status, msg)
}
