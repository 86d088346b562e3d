package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRoleCan(t *testing.T) {
	cases := []struct {
		role Role
		op   Operation
		want bool
	}{
		{RoleAdmin, OpVoidInvoice, true},
		{RoleAdmin, OpWriteEntries, true},
		{RoleStaff, OpWriteEntries, true},
		{RoleStaff, OpManageInvoices, true},
		{RoleStaff, OpVoidInvoice, false},
		{RoleClient, OpReadBilling, true},
		{RoleClient, OpWriteEntries, false},
		{RoleClient, OpVoidInvoice, false},
		{Role("ghost"), OpReadBilling, false},
	}
	for _, tc := range cases {
		if got := tc.role.Can(tc.op); got != tc.want {
			t.Fatalf("%s.Can(%s) = %v, want %v", tc.role, tc.op, got, tc.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	var seen Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFrom(r.Context())
	})
	h := Middleware(next)

	// No identity header.
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/time-entries", nil))
	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing identity: status = %d", w.Result().StatusCode)
	}

	// Known role passes through.
	req := httptest.NewRequest("GET", "/api/time-entries", nil)
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-Role", "client")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen.UserID != "u1" || seen.Role != RoleClient {
		t.Fatalf("actor = %+v", seen)
	}

	// Unknown role defaults to staff.
	req = httptest.NewRequest("GET", "/api/time-entries", nil)
	req.Header.Set("X-User-Id", "u2")
	req.Header.Set("X-Role", "superuser")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen.Role != RoleStaff {
		t.Fatalf("unknown role mapped to %s, want staff", seen.Role)
	}
}
