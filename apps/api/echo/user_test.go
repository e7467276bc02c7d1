package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/trezcool/edusense/core/user"
)

func Test_userApi_login(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "Student One", "student@test.cd", "s3cr3t", user.StudentRoles, true)
	env.createUser(t, "Gone Guy", "gone@test.cd", "s3cr3t", user.StudentRoles, false)

	tests := []httpTest{
		{
			name: "valid credentials",
			body: marchallObj(t, LoginRequest{Email: "student@test.cd", Password: "s3cr3t"}),

			wantCode: http.StatusOK,
		},
		{
			name:     "email is case-insensitive",
			body:     marchallObj(t, LoginRequest{Email: "  STUDENT@test.cd ", Password: "s3cr3t"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "unknown email",
			body:     marchallObj(t, LoginRequest{Email: "nobody@test.cd", Password: "s3cr3t"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, LoginRequest{Email: "student@test.cd", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     marchallObj(t, LoginRequest{Email: "gone@test.cd", Password: "s3cr3t"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name:     "missing fields",
			body:     marchallObj(t, LoginRequest{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			env.do(req, rec)

			if tt.wantData == nil {
				if rec.Code != tt.wantCode {
					t.Fatalf("login() code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var resp LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshalling response failed: %v", err)
				}
				if resp.Token == "" {
					t.Error("login() returned an empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_retrieveSelf(t *testing.T) {
	env := newTestEnv(t)
	usr := env.createUser(t, "Student One", "student@test.cd", "s3cr3t", user.StudentRoles, true)

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "own profile", token: getToken(t, usr), wantCode: http.StatusOK, wantData: marchallObj(t, usr)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", tt.token)
			env.do(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_query(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", "s3cr3t", user.AdminRoles, true)
	student := env.createUser(t, "King Student", "king@test.cd", "s3cr3t", user.StudentRoles, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	tests := []httpTest{
		{name: "no token", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "student is forbidden", path: "/v1/users", token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "all users", path: "/v1/users", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, admin, student)},
		{name: "search", path: "/v1/users?search=king", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, student)},
		{name: "search (unknown)", path: "/v1/users?search=lol", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "role filter", path: "/v1/users?role=student%3A", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, student)},
		{name: "students shortcut", path: "/v1/users/students", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, student)},
		{name: "roles list", path: "/v1/users/roles", token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.do(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_create(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", "s3cr3t", user.AdminRoles, true)
	student := env.createUser(t, "Student", "student@test.cd", "s3cr3t", user.StudentRoles, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name:     "student is forbidden",
			body:     marchallObj(t, user.NewUser{Name: "New Guy", Email: "new@test.cd", Password: "s3cr3t"}),
			token:    getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "defaults to student role",
			body:     marchallObj(t, user.NewUser{Name: "New Guy", Email: "new@test.cd", Password: "s3cr3t"}),
			token:    adminToken,
			wantCode: http.StatusCreated,
		},
		{
			name:     "duplicate email",
			body:     marchallObj(t, user.NewUser{Name: "Other Guy", Email: "student@test.cd", Password: "s3cr3t"}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{
			name:     "unknown roles",
			body:     marchallObj(t, user.NewUser{Name: "New Guy", Email: "new2@test.cd", Password: "s3cr3t", Roles: []string{"teacher:"}}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"roles": "invalid roles"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, tt.body)
			env.do(req, rec)

			if tt.wantData == nil {
				if rec.Code != tt.wantCode {
					t.Fatalf("create() code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Fatalf("unmarshalling response failed: %v", err)
				}
				if usr.ID == "" {
					t.Error("create() returned an empty ID")
				}
				if !usr.IsStudent() || usr.IsAdmin() {
					t.Errorf("roles = %v, want student only", usr.Roles)
				}
				if usr.IsActive == nil || !*usr.IsActive {
					t.Error("new user is not active")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}
