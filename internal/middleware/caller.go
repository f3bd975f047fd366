package middleware

import (
	"context"
	"net/http"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/platform/logger"
)

const callerKey ctxKey = "caller"

// CallerResolver traduce el userID autenticado en un authz.Caller (rol + perfiles).
type CallerResolver interface {
	ResolveCaller(ctx context.Context, userID string) (authz.Caller, error)
}

// ResolveCaller corre después de AuthContext. Con claims válidos resuelve el caller
// una sola vez por request. Igual que AuthContext, no corta requests anónimas:
// los handlers deciden. Solo un error interno del resolver termina en 500.
func ResolveCaller(resolver CallerResolver, log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok || claims.UserID == "" {
				next.ServeHTTP(w, r)
				return
			}

			c, err := resolver.ResolveCaller(r.Context(), claims.UserID)
			if err != nil {
				if apperror.KindOf(err) == apperror.KindInternal {
					apperror.Write(w, log, err)
					return
				}
				log.Debug("caller not resolved", map[string]any{"user_id": claims.UserID, "error": err})
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetCaller(ctx context.Context) (authz.Caller, bool) {
	c, ok := ctx.Value(callerKey).(authz.Caller)
	return c, ok
}

// WithCaller inyecta un caller directamente (tests de handlers).
func WithCaller(ctx context.Context, c authz.Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}
