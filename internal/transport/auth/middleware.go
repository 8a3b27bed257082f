package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type ctxKey string

const ActorIDKey ctxKey = "actorID"

// ActorMiddleware extracts the acting user from the X-Actor-ID header set by
// the upstream gateway after authentication, with an actor query parameter
// fallback for websocket connections. Authorization itself is enforced
// upstream; the engine only needs the identity for audit attribution.
func ActorMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get("X-Actor-ID"))
			if actor == "" {
				actor = strings.TrimSpace(r.URL.Query().Get("actor"))
			}
			if actor == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ActorIDKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetActorID(ctx context.Context) (string, error) {
	actorID, ok := ctx.Value(ActorIDKey).(string)
	if !ok || actorID == "" {
		return "", errors.New("actorID not found in context")
	}
	return actorID, nil
}
