// Package auth resolves the caller of an API request to a user id.
//
// Tokens are configured statically (token -> subject). User ids are the
// SHA-256 of the normalised subject, so renaming a token keeps the owner.
// With no tokens configured the daemon is single-user and every request
// belongs to the local OS user.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"os"
	"os/user"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoforge/internal/logging"
)

// ErrUnauthorized is returned for a missing or unknown token.
var ErrUnauthorized = errors.New("unauthorized")

// userIDKey is the echo context key holding the resolved user id.
const userIDKey = "auth.user_id"

// UserID derives the stable user id of subject.
func UserID(subject string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(subject))))
	return hex.EncodeToString(sum[:16])
}

// LocalSubject names the OS user running the process, or "local".
func LocalSubject() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "local"
}

type credential struct {
	hash   [32]byte
	userID string
}

// Verifier checks bearer tokens.
type Verifier struct {
	creds []credential
	local string
}

// NewVerifier builds a verifier from a token -> subject table.
func NewVerifier(tokens map[string]string) *Verifier {
	v := &Verifier{local: UserID(LocalSubject())}
	for token, subject := range tokens {
		if token == "" {
			continue
		}
		v.creds = append(v.creds, credential{hash: sha256.Sum256([]byte(token)), userID: UserID(subject)})
	}
	return v
}

// Enabled reports whether tokens are required.
func (v *Verifier) Enabled() bool {
	return len(v.creds) > 0
}

// Verify returns the user id owning token.
func (v *Verifier) Verify(_ context.Context, token string) (string, error) {
	if !v.Enabled() {
		return v.local, nil
	}
	if token == "" {
		return "", ErrUnauthorized
	}
	h := sha256.Sum256([]byte(token))
	for _, c := range v.creds {
		if subtle.ConstantTimeCompare(h[:], c.hash[:]) == 1 {
			return c.userID, nil
		}
	}
	return "", ErrUnauthorized
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// ErrorHandler answers a request that failed authentication.
type ErrorHandler func(c echo.Context, err error) error

// Middleware resolves the caller and stores the user id on the echo
// context and on the request context's logger fields. onError, if nil,
// answers 401 with a JSON body.
func Middleware(v *Verifier, logger *logging.Logger, onError ErrorHandler) echo.MiddlewareFunc {
	if logger == nil {
		logger = logging.NewNop()
	}
	if onError == nil {
		onError = func(c echo.Context, err error) error {
			return echo.NewHTTPError(401, err.Error())
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			userID, err := v.Verify(req.Context(), BearerToken(req.Header.Get(echo.HeaderAuthorization)))
			if err != nil {
				logger.Warn(req.Context(), "request rejected",
					zap.String("path", c.Path()),
					zap.String("remote_ip", c.RealIP()))
				return onError(c, err)
			}
			c.Set(userIDKey, userID)
			c.SetRequest(req.WithContext(logging.WithUserID(req.Context(), userID)))
			return next(c)
		}
	}
}

// FromContext returns the user id set by Middleware.
func FromContext(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
