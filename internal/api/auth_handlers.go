package api

import (
	"errors"
	"net/http"

	"paxassist/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Pin      string `json:"pin"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Pin == "" {
		writeError(w, http.StatusBadRequest, "username and pin are required")
		return
	}

	u, err := auth.Login(r.Context(), s.store, req.Username, req.Pin)
	if errors.Is(err, auth.ErrBadCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	token, err := s.signer.Issue(u)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"token":  token,
		"user":   u,
		"access": auth.Access(u.Role),
	})
}

// handleValidate confirms the bearer token and, when ?app= is given, that the
// caller's role grants that app.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r)
	if app := r.URL.Query().Get("app"); app != "" && !auth.CanAccess(c.Role, app) {
		s.fail(w, auth.NoAccessError(app))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"user":   map[string]string{"username": c.Username, "role": c.Role},
		"access": auth.Access(c.Role),
	})
}
