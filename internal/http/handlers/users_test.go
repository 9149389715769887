package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/service"
	"github.com/geocoder89/taskhub/internal/utils"
)

func TestUpdateProfileHandler_PassesOnlyPresentFields(t *testing.T) {
	var got service.ProfileUpdate
	h := handlers.NewUsersHandler(&fakeUsers{
		updateProfileFn: func(ctx context.Context, p access.Principal, id string, upd service.ProfileUpdate) (user.User, error) {
			got = upd
			return user.User{ID: id, FirstName: *upd.FirstName}, nil
		},
	})
	r := setupRouter(http.MethodPatch, "/api/users/:id", h.UpdateProfile, as(alice))

	req := httptest.NewRequest(http.MethodPatch, "/api/users/u-alice", bytes.NewBufferString(`{"firstName":"Alice"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if got.Username != nil || got.Email != nil || got.LastName != nil {
		t.Fatalf("absent fields must stay nil: %+v", got)
	}
}

func TestUpdatePasswordHandler(t *testing.T) {
	h := handlers.NewUsersHandler(&fakeUsers{
		updatePasswordFn: func(ctx context.Context, p access.Principal, upd service.PasswordUpdate) error {
			if upd.Current != "old-secret" || upd.New != "new-secret" || upd.Confirmation != "new-secret" {
				t.Fatalf("unexpected update %+v", upd)
			}
			return nil
		},
	})
	r := setupRouter(http.MethodPut, "/api/me/password", h.UpdatePassword, as(alice))

	body := `{"currentPassword":"old-secret","newPassword":"new-secret","newPasswordConfirmation":"new-secret"}`
	req := httptest.NewRequest(http.MethodPut, "/api/me/password", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusNoContent, w.Body.String())
	}
}

func TestListUsersHandler_CursorAndETag(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var gotAfter *user.ListCursor
	var gotLimit int

	h := handlers.NewUsersHandler(&fakeUsers{
		listFn: func(ctx context.Context, p access.Principal, after *user.ListCursor, limit int) ([]user.User, error) {
			gotAfter, gotLimit = after, limit
			return []user.User{
				{ID: "a", Username: "a", CreatedAt: base},
				{ID: "b", Username: "b", CreatedAt: base.Add(time.Minute)},
			}, nil
		},
	})
	r := setupRouter("GET", "/api/admin/users", h.List, as(root))

	cursor, err := utils.EncodeUserCursor(base, "z")
	if err != nil {
		t.Fatalf("encode cursor: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/admin/users?limit=2&cursor="+cursor, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if gotLimit != 2 || gotAfter == nil || gotAfter.ID != "z" {
		t.Fatalf("unexpected paging args limit=%d after=%+v", gotLimit, gotAfter)
	}

	var resp handlers.UserListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(resp.Items) != 2 || resp.NextCursor == nil {
		t.Fatalf("expected full page with next cursor, got %+v", resp)
	}
	next, err := utils.DecodeUserCursor(*resp.NextCursor)
	if err != nil || next.ID != "b" {
		t.Fatalf("next cursor should point at the last row, got %+v err=%v", next, err)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header")
	}

	req := httptest.NewRequest("GET", "/api/admin/users?limit=2&cursor="+cursor, nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNotModified)
	}
}

func TestListUsersHandler_BadInput(t *testing.T) {
	h := handlers.NewUsersHandler(&fakeUsers{})
	r := setupRouter("GET", "/api/admin/users", h.List, as(root))

	for _, q := range []string{"?limit=0", "?limit=101", "?limit=abc", "?cursor=not-a-cursor"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/api/admin/users"+q, nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: got status %d, want %d", q, w.Code, http.StatusBadRequest)
		}
	}
}

func TestListUsersHandler_ForbiddenForNonAdmin(t *testing.T) {
	h := handlers.NewUsersHandler(&fakeUsers{
		listFn: func(ctx context.Context, p access.Principal, after *user.ListCursor, limit int) ([]user.User, error) {
			return nil, access.RequireAdmin(p)
		},
	})
	r := setupRouter("GET", "/api/admin/users", h.List, as(alice))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/admin/users", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestSetRolesAndEnabledHandlers(t *testing.T) {
	h := handlers.NewUsersHandler(&fakeUsers{
		setRolesFn: func(ctx context.Context, p access.Principal, id string, roleIDs []string) (user.User, error) {
			if len(roleIDs) != 1 || roleIDs[0] != "r1" {
				t.Fatalf("unexpected role ids %v", roleIDs)
			}
			return user.User{ID: id}, nil
		},
	})
	r := setupRouter(http.MethodPut, "/api/admin/users/:id/roles", h.SetRoles, as(root))
	r.PUT("/api/admin/users/:id/enabled", h.SetEnabled)

	cases := []struct {
		path, body string
		want       int
	}{
		{"/api/admin/users/u1/roles", `{"roleIds":["r1"]}`, http.StatusOK},
		{"/api/admin/users/u1/roles", `{"roleIds":[]}`, http.StatusBadRequest},
		{"/api/admin/users/u1/enabled", `{"enabled":false}`, http.StatusOK},
		{"/api/admin/users/u1/enabled", `{}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPut, tc.path, bytes.NewBufferString(tc.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s %s: got status %d, want %d, body=%s", tc.path, tc.body, w.Code, tc.want, w.Body.String())
		}
	}
}
