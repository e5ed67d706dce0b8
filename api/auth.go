/*
auth.go - Login, JWT validation, and role policy

PURPOSE:
  Issues HS256 tokens for the configured users and validates the Bearer
  token on every protected route. The role claim also backs the access
  policy the day lifecycle consults for owner-only operations.

CLAIMS:
  sub  username
  role owner | staff
  exp  configured expiry

SEE ALSO:
  - server.go: which routes are protected
  - config/config.go: user list and secret
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/courtside/club-engine/config"
)

type contextKey string

const (
	ctxKeyActor contextKey = "actor"
	ctxKeyRole  contextKey = "role"
)

// Authenticator issues and validates tokens for the configured users.
type Authenticator struct {
	secret []byte
	expiry time.Duration
	users  map[string]config.UserConfig
	now    func() time.Time
}

// NewAuthenticator builds an Authenticator from the auth config. The
// expiry must already be validated by config.Load.
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	expiry, err := time.ParseDuration(cfg.TokenExpiry)
	if err != nil {
		expiry = 12 * time.Hour
	}
	users := make(map[string]config.UserConfig, len(cfg.Users))
	for _, u := range cfg.Users {
		users[u.Username] = u
	}
	return &Authenticator{
		secret: []byte(cfg.JWTSecret),
		expiry: expiry,
		users:  users,
		now:    time.Now,
	}
}

// Login checks credentials and issues a signed token. The bool reports
// whether the credentials were accepted.
func (a *Authenticator) Login(username, password string) (token string, role string, ok bool) {
	u, found := a.users[username]
	if !found || u.Password != password {
		return "", "", false
	}
	now := a.now()
	claims := jwt.MapClaims{
		"sub":  u.Username,
		"role": u.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(a.expiry).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", "", false
	}
	return signed, u.Role, true
}

// Middleware validates the Bearer token and injects actor and role
// into the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		})
		if err != nil || !tok.Valid {
			writeError(w, http.StatusUnauthorized, "Invalid token", nil)
			return
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid claims", nil)
			return
		}
		actor, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)

		ctx := context.WithValue(r.Context(), ctxKeyActor, actor)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFrom returns the authenticated username for the request.
func actorFrom(r *http.Request) string {
	actor, _ := r.Context().Value(ctxKeyActor).(string)
	return actor
}

// HasOwnerPrivilege reports whether the named user carries the owner
// role. Satisfies the access policy the day lifecycle consults.
func (a *Authenticator) HasOwnerPrivilege(actor string) bool {
	u, found := a.users[actor]
	return found && u.Role == config.RoleOwner
}
