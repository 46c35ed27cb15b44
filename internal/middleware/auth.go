package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ContextKey string

const CallerIDKey ContextKey = "callerID"

// CallerIDHeader carries the external user id. The chat transport in front of
// the API is trusted to set it.
const CallerIDHeader = "X-Caller-ID"

// Privileges answers whether a caller may run admin operations.
type Privileges interface {
	IsPrivileged(callerID string) bool
}

// AdminSet is a fixed list of privileged user ids.
type AdminSet map[string]struct{}

func NewAdminSet(ids []string) AdminSet {
	set := make(AdminSet, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func (a AdminSet) IsPrivileged(callerID string) bool {
	_, ok := a[callerID]
	return ok
}

// IDs lists the admins, used to address admin notifications.
func (a AdminSet) IDs() []string {
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	return ids
}

func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callerID := strings.TrimSpace(r.Header.Get(CallerIDHeader))
		if callerID == "" {
			http.Error(w, "missing "+CallerIDHeader+" header", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), CallerIDKey, callerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetCallerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(CallerIDKey).(string)
	return id, ok && id != ""
}

// RequirePrivileged rejects callers that are not admins. It must run after
// RequireCaller.
func RequirePrivileged(p Privileges) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callerID, ok := GetCallerIDFromContext(r.Context())
			if !ok || !p.IsPrivileged(callerID) {
				http.Error(w, "admin privileges required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
