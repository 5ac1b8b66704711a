package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
)

type contextKey struct{}

// IdentityLoader fetches the current identity row for a token subject.
type IdentityLoader interface {
	GetByID(ctx context.Context, id string) (*entity.Identity, error)
}

// WithActor returns ctx carrying actor.
func WithActor(ctx context.Context, actor *entity.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFrom returns the authenticated identity or nil.
func ActorFrom(ctx context.Context) *entity.Identity {
	v, _ := ctx.Value(contextKey{}).(*entity.Identity)
	return v
}

// Middleware attaches the authenticated identity to the request context.
// It never rejects a request itself: requests without a valid token carry no
// actor and the gate denies them with "authentication required".
func Middleware(tokens *TokenService, loader IdentityLoader, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := tokens.ParseAccess(raw)
			if err != nil {
				logger.Debugw("rejected access token", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			// role and version are read from the store on every request so a
			// role change takes effect immediately
			u, err := loader.GetByID(r.Context(), claims.Subject)
			if err != nil || u == nil || u.Version != claims.Version {
				logger.Debugw("stale access token", "sub", claims.Subject, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), u)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
