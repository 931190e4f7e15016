package handler

import (
	"net/http"

	"github.com/rl1809/cropchain/internal/core/domain"
)

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.Registration
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "user registered", user)
}

// Login accepts the OAuth2 password form: username (or email) and password.
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "invalid form")
		return
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	if username == "" || password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	token, err := h.users.Login(r.Context(), username, password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "authenticated", TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *HTTPHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), currentUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "user found", user)
}
