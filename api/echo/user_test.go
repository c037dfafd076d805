package echoapi

import (
	"net/http"
	"strings"
	"testing"

	"github.com/redland-cl/registro-escolar/core/user"
)

func Test_userApi_login(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "viewer@redland.cl", user.RoleViewer, true)
	env.createUser(t, "off@redland.cl", user.RoleViewer, false)

	tests := []httpTest{
		{
			name: "email required", body: marchallObj(t, map[string]string{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required"}),
		},
		{
			name: "malformed email", body: marchallObj(t, map[string]string{"email": "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "unknown email", body: marchallObj(t, map[string]string{"email": "nobody@redland.cl"}),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "Email not authorized. Contact administrator."}),
		},
		{
			name: "disabled account", body: marchallObj(t, map[string]string{"email": "off@redland.cl"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "User account is disabled"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/auth/login", tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/auth/login",
			marchallObj(t, map[string]string{"email": " Viewer@Redland.CL "}))
		env.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var res LoginResponse
		decodeBody(t, rec, &res)
		if res.AccessToken == "" || res.TokenType != "bearer" {
			t.Errorf("response = %+v; want a bearer token", res)
		}
		if res.User.Email != "viewer@redland.cl" {
			t.Errorf("user = %+v; want the authenticated user", res.User)
		}

		// the issued token works against an authenticated endpoint
		req, rec = newAuthRequest(http.MethodGet, "/api/auth/me", res.AccessToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("me code = %v; body = %s", rec.Code, rec.Body.String())
		}
	})
}

func Test_userApi_me(t *testing.T) {
	env := newTestEnv(t)
	usr := env.createUser(t, "viewer@redland.cl", user.RoleViewer, true)
	ghost := user.User{Email: "gone@redland.cl", Role: user.RoleViewer, IsActive: true}

	tests := []httpTest{
		{
			name: "auth required", wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			// a valid token whose user has been removed is unauthorized
			name: "removed user", token: env.getToken(t, ghost),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
		{
			name: "ok", token: env.getToken(t, usr),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, UserResponse{User: usr}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/api/auth/me", tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_addAdmin(t *testing.T) {
	env := newTestEnv(t)

	req, rec := newRequest(http.MethodPost, "/api/users/add-admin",
		marchallObj(t, map[string]string{"email": "admin@redland.cl"}))
	env.app.ServeHTTP(rec, req)

	tt := httpTest{
		wantCode: http.StatusCreated,
		wantData: marchallObj(t, map[string]interface{}{
			"success": true,
			"message": "First admin user created: admin@redland.cl",
			"email":   "admin@redland.cl",
		}),
	}
	checkCodeAndData(t, tt, rec)

	usr, err := env.usrSvc.GetByEmail("admin@redland.cl")
	if err != nil {
		t.Fatalf("GetByEmail(): %v", err)
	}
	if usr.Role != user.RoleEditor || !usr.IsActive {
		t.Errorf("first admin = %+v; want an active editor", usr)
	}

	// the endpoint disables itself once the directory has a user
	req, rec = newRequest(http.MethodPost, "/api/users/add-admin",
		marchallObj(t, map[string]string{"email": "other@redland.cl"}))
	env.app.ServeHTTP(rec, req)
	tt = httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "Admin already exists. Use CSV upload to add more users."}),
	}
	checkCodeAndData(t, tt, rec)
}

func Test_userApi_checkStatus(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "a@redland.cl", user.RoleEditor, true)
	env.createUser(t, "b@redland.cl", user.RoleViewer, true)

	req, rec := newRequest(http.MethodGet, "/api/users/check-status")
	env.app.ServeHTTP(rec, req)

	tt := httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, map[string]interface{}{
			"status":      "ok",
			"total_users": 2,
			"sample":      []string{"a@redland.cl", "b@redland.cl"},
		}),
	}
	checkCodeAndData(t, tt, rec)
}

func Test_userApi_editorGate(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.createUser(t, "viewer@redland.cl", user.RoleViewer, true)
	viewerToken := env.getToken(t, viewer)

	paths := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/users/upload-csv"},
		{http.MethodGet, "/api/users/export-csv"},
		{http.MethodPost, "/api/users/bulk-delete"},
		{http.MethodDelete, "/api/users/x@redland.cl"},
		{http.MethodPatch, "/api/users/x@redland.cl/role"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			// no token at all
			req, rec := newRequest(p.method, p.path)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{
				wantCode: http.StatusUnauthorized,
				wantData: marchallObj(t, errMissingToken),
			}, rec)

			// a viewer token is not enough
			req, rec = newAuthRequest(p.method, p.path, viewerToken)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{
				wantCode: http.StatusForbidden,
				wantData: marchallObj(t, httpErr{Error: "not enough permissions, editor role required"}),
			}, rec)
		})
	}
}

func Test_userApi_list(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "editor@redland.cl", user.RoleEditor, true)
	viewer := env.createUser(t, "viewer@redland.cl", user.RoleViewer, true)

	req, rec := newAuthRequest(http.MethodGet, "/api/users", env.getToken(t, editor))
	env.app.ServeHTTP(rec, req)

	tt := httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, map[string][]user.User{"users": {editor, viewer}}),
	}
	checkCodeAndData(t, tt, rec)
}

func Test_userApi_uploadCSV(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "editor@redland.cl", user.RoleEditor, true)
	token := env.getToken(t, editor)

	csv := []byte("email,role\na@redland.cl,viewer\nb@redland.cl,editor\nbad-row,viewer\n")
	req, rec := newUploadRequest(t, http.MethodPost, "/api/users/upload-csv", token, "file", "usuarios.csv", csv, nil)
	env.app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
	}
	var res ImportResponse
	decodeBody(t, rec, &res)
	if !res.Success || res.Message != "Processed 2 users" {
		t.Errorf("response = %+v; want 2 processed", res)
	}
	if len(res.Created) != 2 || len(res.Errors) != 1 {
		t.Errorf("result = %+v; want 2 created and 1 error", res.ImportResult)
	}

	// file part is mandatory
	req, rec = newUploadRequest(t, http.MethodPost, "/api/users/upload-csv", token, "", "", nil, nil)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"file": "this field is required"}),
	}, rec)
}

func Test_userApi_exportCSV(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "editor@redland.cl", user.RoleEditor, true)
	env.createUser(t, "viewer@redland.cl", user.RoleViewer, true)

	req, rec := newAuthRequest(http.MethodGet, "/api/users/export-csv", env.getToken(t, editor))
	env.app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "usuarios.csv") {
		t.Errorf("Content-Disposition = %q; want an attachment filename", got)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("Content-Type = %q; want text/csv", rec.Header().Get("Content-Type"))
	}
	want := "email,role\neditor@redland.cl,editor\nviewer@redland.cl,viewer\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q; want %q", rec.Body.String(), want)
	}
}

func Test_userApi_destroy(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "editor@redland.cl", user.RoleEditor, true)
	env.createUser(t, "other@redland.cl", user.RoleViewer, true)
	token := env.getToken(t, editor)

	tests := []httpTest{
		{
			name: "self-deletion rejected", path: "/api/users/editor@redland.cl",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "cannot delete your own account"}),
		},
		{
			name: "unknown user", path: "/api/users/nobody@redland.cl",
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "ok", path: "/api/users/other@redland.cl",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]interface{}{
				"success": true,
				"message": "User other@redland.cl deleted successfully",
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodDelete, tt.path, token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_bulkDelete(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "editor@redland.cl", user.RoleEditor, true)
	env.createUser(t, "a@redland.cl", user.RoleViewer, true)
	env.createUser(t, "b@redland.cl", user.RoleViewer, true)
	token := env.getToken(t, editor)

	body := marchallObj(t, BulkDeleteRequest{Emails: []string{"editor@redland.cl", "a@redland.cl", "b@redland.cl"}})
	req, rec := newAuthRequest(http.MethodPost, "/api/users/bulk-delete", token, body)
	env.app.ServeHTTP(rec, req)

	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, map[string]interface{}{"success": true, "deleted": 2}),
	}, rec)

	if _, err := env.usrSvc.GetByEmail("editor@redland.cl"); err != nil {
		t.Errorf("caller must survive bulk deletion; err = %v", err)
	}

	// only the caller in the set: nothing left to delete
	body = marchallObj(t, BulkDeleteRequest{Emails: []string{"editor@redland.cl"}})
	req, rec = newAuthRequest(http.MethodPost, "/api/users/bulk-delete", token, body)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "no users to delete"}),
	}, rec)
}

func Test_userApi_updateRole(t *testing.T) {
	env := newTestEnv(t)
	editor := env.createUser(t, "editor@redland.cl", user.RoleEditor, true)
	env.createUser(t, "viewer@redland.cl", user.RoleViewer, true)
	token := env.getToken(t, editor)

	tests := []httpTest{
		{
			name: "invalid role", path: "/api/users/viewer@redland.cl/role",
			body:     marchallObj(t, map[string]string{"role": "principal"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": "role must be 'editor' or 'viewer'"}),
		},
		{
			name: "unknown user", path: "/api/users/nobody@redland.cl/role",
			body:     marchallObj(t, map[string]string{"role": user.RoleEditor}),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPatch, tt.path, token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("ok", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"role": user.RoleEditor})
		req, rec := newAuthRequest(http.MethodPatch, "/api/users/viewer@redland.cl/role", token, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		usr, err := env.usrSvc.GetByEmail("viewer@redland.cl")
		if err != nil {
			t.Fatalf("GetByEmail(): %v", err)
		}
		if usr.Role != user.RoleEditor {
			t.Errorf("role = %q; want promoted to editor", usr.Role)
		}
	})
}
