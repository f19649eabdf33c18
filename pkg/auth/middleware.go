package auth

import (
	"net/http"

	"github.com/google/uuid"
)

// Header names carrying the caller's identity. The engine sits behind a
// gateway that authenticates callers and forwards identity as headers.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
	HeaderElevated = "X-Elevated"
)

// Middleware resolves the actor from request headers and injects it into
// the request context. Requests without a valid tenant are rejected.
func Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := uuid.Parse(r.Header.Get(HeaderTenantID))
		if err != nil || tenantID == uuid.Nil {
			http.Error(w, "missing or invalid tenant", http.StatusUnauthorized)
			return
		}

		actor := &Actor{
			TenantID: tenantID,
			UserID:   r.Header.Get(HeaderUserID),
			Elevated: r.Header.Get(HeaderElevated) == "true",
		}

		next(w, r.WithContext(SetActor(r.Context(), actor)))
	}
}
