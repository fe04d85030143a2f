package common

import (
	"context"
	"net/http"
	"slices"
	"strings"
)

// Role names the coarse permission group of the caller.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleCashier    Role = "CASHIER"
	RoleCustomer   Role = "CUSTOMER"
	RoleShipping   Role = "SHIPPING"
	RoleSupplier   Role = "SUPPLIER"
)

// Gateway identity headers. The edge proxy authenticates the caller and forwards these.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

type ctxKey string

const (
	userIDKey ctxKey = "auth/user-id"
	roleKey   ctxKey = "auth/role"
)

// WithUserID stores the authenticated user identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// WithRole stores the caller role on the context.
func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// RoleFrom returns the caller role if one was attached.
func RoleFrom(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(roleKey).(Role)
	return role, ok && role != ""
}

// GatewayIdentity copies the forwarded identity headers onto the request context.
// Requests without headers pass through anonymously.
func GatewayIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
			ctx = WithUserID(ctx, id)
		}
		if role := strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderUserRole))); role != "" {
			ctx = WithRole(ctx, Role(role))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers that are anonymous or whose role is not listed.
// SUPER_ADMIN is always allowed.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserID(r.Context()); !ok {
				JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
				return
			}
			role, ok := RoleFrom(r.Context())
			if !ok {
				JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
				return
			}
			if role != RoleSuperAdmin && !slices.Contains(roles, role) {
				JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
