package httpx

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/ariefcatur/go-sales-orders/internal/orders"
	"github.com/golang-jwt/jwt/v5"
)

// Claims matches the access tokens issued by the auth service: {id, role}.
type Claims struct {
	ID   int64       `json:"id"`
	Role orders.Role `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

func WithActor(ctx context.Context, a orders.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func ActorFrom(ctx context.Context) (orders.Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(orders.Actor)
	return a, ok
}

// Authenticator verifies HS256 bearer tokens. JWT issuance lives elsewhere.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

var errBadToken = errors.New("invalid or expired token")

func (a *Authenticator) Parse(raw string) (orders.Actor, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || c.ID <= 0 {
		return orders.Actor{}, errBadToken
	}
	return orders.Actor{ID: c.ID, Role: c.Role}, nil
}

// Middleware reads the token from the Authorization header, or from ?token= for
// browser websocket clients that cannot set headers.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearer(r)
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		actor, err := a.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Authorize must run after Middleware.
func Authorize(roles ...orders.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := ActorFrom(r.Context())
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
				return
			}
			if !slices.Contains(roles, a.Role) {
				writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden: access denied"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
