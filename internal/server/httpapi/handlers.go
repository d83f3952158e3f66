package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

// Register creates an unverified account and mails its activation link.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.svc.Register(r.Context(), req.Email, req.Password, h.baseURL(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "registered, check your email to verify the account")
}

// Verify consumes the token from the activation link.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeMessage(w, http.StatusBadRequest, "invalid or expired token")
		return
	}
	if err := h.svc.VerifyAccount(r.Context(), token); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "account verified")
}

// Login exchanges credentials for an access/refresh token pair. The
// User-Agent header is recorded as the session's device info.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.svc.Login(r.Context(), req.Email, req.Password, r.UserAgent())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(resp))
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(resp))
}

// Logout revokes the refresh token. Unknown or already revoked tokens
// succeed too.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "logged out")
}

// ResendVerification always answers the same way so it cannot be used to
// enumerate registered addresses.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.ResendVerification(r.Context(), req.Email, h.baseURL(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusAccepted, "if the account exists and is not verified, a new link was sent")
}

type meResponse struct {
	Subject   string    `json:"subject"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Me echoes the principal of the bearer token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Subject: p.Subject, Roles: p.Roles, ExpiresAt: p.ExpiresAt.UTC()})
}

// baseURL is the configured public URL. Without one the request's scheme and
// Host header are trusted; config only allows that for in-memory storage.
func (h *Handler) baseURL(r *http.Request) string {
	if h.appBaseURL != "" {
		return h.appBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
