// Package auth issues and verifies stateless HMAC-signed bearer tokens and
// holds the role to app-access matrix. Error messages here are shown to
// operators verbatim, so they read as sentences.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"paxassist/internal/store"
)

// TokenTTL is how long a login session stays valid.
const TokenTTL = 6 * time.Hour

// App scopes endpoints can require.
const (
	AppDispatch = "dispatch"
	AppLead     = "lead"
	AppMgmt     = "mgmt"
)

var (
	ErrBadCredentials = errors.New("Invalid username or pin.")
	ErrExpired        = errors.New("Session expired. Please login again.")
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingToken   = errors.New("missing authorization")
)

// NoAccessError names the denied app scope.
func NoAccessError(app string) error {
	return fmt.Errorf("No access to %s", app)
}

// Access returns the app scopes a role may use.
func Access(role string) []string {
	switch role {
	case store.RoleDispatch:
		return []string{AppDispatch}
	case store.RoleLead:
		return []string{AppLead}
	case store.RoleMgmt:
		return []string{AppDispatch, AppLead, AppMgmt}
	}
	return nil
}

// CanAccess reports whether a role may use an app scope.
func CanAccess(role, app string) bool {
	for _, a := range Access(role) {
		if a == app {
			return true
		}
	}
	return false
}

// Claims is the signed token payload.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	ExpAt    int64  `json:"expAt"` // unix seconds
}

// Signer signs and verifies tokens with a shared HMAC key.
type Signer struct {
	key []byte

	now func() time.Time
}

// NewSigner builds a signer over the shared key.
func NewSigner(key []byte) *Signer {
	return &Signer{key: key, now: time.Now}
}

// Issue signs a token for the user, valid for TokenTTL.
func (s *Signer) Issue(u *store.User) (string, error) {
	return s.IssueClaims(Claims{
		Username: u.Username,
		Role:     u.Role,
		ExpAt:    s.now().Add(TokenTTL).Unix(),
	})
}

// IssueClaims signs an explicit claims payload.
func (s *Signer) IssueClaims(c Claims) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(s.sign(payload)), nil
}

// Verify checks the signature and expiry and returns the claims.
func (s *Signer) Verify(token string) (*Claims, error) {
	part, sig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(part)
	if err != nil {
		return nil, ErrInvalidToken
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !hmac.Equal(got, s.sign(payload)) {
		return nil, ErrInvalidToken
	}

	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, ErrInvalidToken
	}
	if s.now().Unix() > c.ExpAt {
		return nil, ErrExpired
	}
	return &c, nil
}

func (s *Signer) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// Login checks the username/PIN pair against the store. The PIN comparison is
// constant-time; unknown users and wrong PINs are indistinguishable.
func Login(ctx context.Context, st store.Store, username, pin string) (*store.User, error) {
	u, err := st.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		subtle.ConstantTimeCompare([]byte(pin), []byte(pin))
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(u.Pin), []byte(pin)) != 1 {
		return nil, ErrBadCredentials
	}
	return u, nil
}
