// Package auth models the capability check applied at the API boundary.
// Session issuance and credential validation are external concerns; the
// gateway fronting this service authenticates callers and forwards their
// identity and role in headers. The three role-specific front ends
// (admin, staff, client) are views over the same billing data with
// different capabilities, not separate code paths.
package auth

import (
	"context"
	"net/http"
)

// Role is the caller's coarse permission tier.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleClient Role = "client"
)

// Operation names a capability-gated action on the billing core.
type Operation string

const (
	OpReadBilling    Operation = "billing:read"
	OpWriteEntries   Operation = "entries:write"
	OpManageInvoices Operation = "invoices:manage"
	OpVoidInvoice    Operation = "invoices:void"
)

// Can reports whether the role may perform the operation. Clients are
// read-only; staff may do everything except void issued invoices.
func (r Role) Can(op Operation) bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleStaff:
		return op != OpVoidInvoice
	case RoleClient:
		return op == OpReadBilling
	}
	return false
}

// Actor is the authenticated caller as asserted by the upstream gateway.
type Actor struct {
	UserID string
	Role   Role
}

type ctxKey struct{}

// WithActor stores the actor on the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// ActorFrom retrieves the actor placed by the middleware.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}

// Middleware extracts caller identity from the X-User-Id and X-Role
// headers. Requests without an identity are rejected; an unknown or
// missing role defaults to staff.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-Id")
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized","code":401,"message":"X-User-Id header is required"}`))
			return
		}
		role := Role(r.Header.Get("X-Role"))
		switch role {
		case RoleAdmin, RoleStaff, RoleClient:
		default:
			role = RoleStaff
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), Actor{UserID: userID, Role: role})))
	})
}
