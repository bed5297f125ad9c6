package auth

import (
	"errors"
	"net/http"
	"strings"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/httpx"
)

// Verifier validates bearer tokens.
type Verifier interface {
	Verify(token string) (domain.Actor, error)
}

// rejection is a failed authentication or authorisation outcome.
type rejection struct {
	status int
	code   string
	reason string
}

var (
	rejectMissing   = rejection{http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid"}
	rejectNoService = rejection{http.StatusUnauthorized, "unauthenticated", "authorization service unavailable"}
	rejectExpired   = rejection{http.StatusUnauthorized, "token_expired", "staff token expired"}
	rejectInvalid   = rejection{http.StatusUnauthorized, "invalid_token", "staff token invalid"}
	rejectRole      = rejection{http.StatusForbidden, "insufficient_role", "staff member does not have required role"}
)

// RequireStaff admits requests with a valid staff bearer token and, when roles are given, one
// of those roles. The actor is stored on the request context for handlers and logging.
func RequireStaff(verifier Verifier, roles ...domain.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, rej := authenticate(verifier, r.Header.Get("Authorization"))
			if rej == nil && !HasRole(actor, roles...) {
				rej = &rejectRole
			}
			if rej != nil {
				reject(w, r, *rej)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func authenticate(verifier Verifier, header string) (domain.Actor, *rejection) {
	token, ok := bearerToken(header)
	if !ok {
		return domain.Actor{}, &rejectMissing
	}
	if verifier == nil {
		return domain.Actor{}, &rejectNoService
	}
	actor, err := verifier.Verify(token)
	switch {
	case errors.Is(err, ErrTokenExpired):
		return domain.Actor{}, &rejectExpired
	case err != nil:
		return domain.Actor{}, &rejectInvalid
	}
	return actor, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// reject answers with the JSON error envelope. 401s carry a Bearer challenge.
func reject(w http.ResponseWriter, r *http.Request, rej rejection) {
	if rej.status == http.StatusUnauthorized {
		challenge := `Bearer realm="bi-a-manager"`
		if rej.code != "unauthenticated" {
			challenge += `, error="invalid_token"`
		}
		w.Header().Set("WWW-Authenticate", challenge)
	}
	httpx.WriteError(r.Context(), w, httpx.NewError(rej.code, rej.reason, rej.status))
}
