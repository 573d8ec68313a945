// Package auth resolves the request principal from a bearer token. The
// token is issued by the external auth provider; this package only verifies
// and maps it to a profile row; it never authenticates users itself.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/slanglab/backend/internal/models"
	"github.com/slanglab/backend/internal/storage"
)

type contextKey string

const principalKey contextKey = "principal"

// ClientTokenHeader carries the opaque token anonymous visitors present for
// their one-search allowance.
const ClientTokenHeader = "X-Client-Token"

// Claims are the verified token claims. Role and plan are never trusted from
// the token; they are read from the profile row on every request so a billing
// sync or role change takes effect immediately.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// PrincipalFrom returns the principal resolved for the request, or nil for
// anonymous requests.
func PrincipalFrom(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(principalKey).(*models.Principal)
	return p
}

// WithPrincipal stashes a resolved principal on the context. Exposed for
// handler tests.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Resolver verifies tokens and loads profiles.
type Resolver struct {
	secret []byte
	store  *storage.Store
}

// NewResolver creates a resolver.
func NewResolver(jwtSecret string, store *storage.Store) *Resolver {
	return &Resolver{secret: []byte(jwtSecret), store: store}
}

// errTransient marks a backend failure during resolution, distinct from an
// invalid token.
var errTransient = errors.New("transient resolution failure")

func (r *Resolver) resolve(ctx context.Context, tokenString string) (*models.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	profile, err := r.store.GetProfile(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errTransient, err)
	}

	return &models.Principal{
		ID:    &profile.ID,
		Email: profile.Email,
		Role:  profile.Role,
		Plan:  profile.Plan,
	}, nil
}

// Optional resolves a principal when a token is present and passes the
// request through anonymously otherwise. Invalid tokens are rejected rather
// than downgraded to anonymous.
func (r *Resolver) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		tokenString, present := bearerToken(req)
		if !present {
			next.ServeHTTP(w, req)
			return
		}

		principal, err := r.resolve(req.Context(), tokenString)
		if err != nil {
			r.reject(w, err)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithPrincipal(req.Context(), principal)))
	})
}

// Required rejects requests without a valid token.
func (r *Resolver) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		tokenString, present := bearerToken(req)
		if !present {
			http.Error(w, `{"error":"authentication_required"}`, http.StatusUnauthorized)
			return
		}

		principal, err := r.resolve(req.Context(), tokenString)
		if err != nil {
			r.reject(w, err)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithPrincipal(req.Context(), principal)))
	})
}

func (r *Resolver) reject(w http.ResponseWriter, err error) {
	if errors.Is(err, errTransient) {
		logrus.Errorf("Principal resolution failed transiently: %v", err)
		http.Error(w, `{"error":"temporarily_unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	http.Error(w, `{"error":"authentication_required"}`, http.StatusUnauthorized)
}

func bearerToken(req *http.Request) (string, bool) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
