package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-accounts/internal/api/middleware"
	"github.com/99minutos/user-accounts/internal/core/domain"
	"github.com/99minutos/user-accounts/internal/core/ports"
)

type stubUserService struct {
	findFn               func(ctx context.Context, q domain.UserQuery) (*domain.UserPage, error)
	getFn                func(ctx context.Context, id string) (*domain.User, error)
	getByUsernameFn      func(ctx context.Context, caller *domain.TokenClaims, username string) (*domain.User, error)
	currentFn            func(ctx context.Context, caller *domain.TokenClaims) (*domain.User, error)
	createFn             func(ctx context.Context, caller *domain.TokenClaims, in ports.CreateUserInput) (*ports.CreateUserResult, error)
	updateFn             func(ctx context.Context, caller *domain.TokenClaims, id string, in domain.UpdateUserInput) (*domain.User, error)
	deleteFn             func(ctx context.Context, caller *domain.TokenClaims, id string) (*domain.User, error)
	changePasswordFn     func(ctx context.Context, caller *domain.TokenClaims, id string, in ports.ChangePasswordInput) error
	changeEmailFn        func(ctx context.Context, caller *domain.TokenClaims, id, email string) (*domain.User, error)
	resetPasswordFn      func(ctx context.Context, caller *domain.TokenClaims, in ports.ResetPasswordInput) error
	rolesFn              func(ctx context.Context, id string) ([]string, error)
	changeRolesFn        func(ctx context.Context, caller *domain.TokenClaims, id string, roles []string) (*domain.User, error)
	applicationsFn       func(ctx context.Context, id string) ([]string, error)
	changeApplicationsFn func(ctx context.Context, caller *domain.TokenClaims, id string, apps []string) (*domain.User, error)
	authenticateFn       func(ctx context.Context, username, password string) (string, error)
}

func (s *stubUserService) Find(ctx context.Context, q domain.UserQuery) (*domain.UserPage, error) {
	return s.findFn(ctx, q)
}

func (s *stubUserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.getFn(ctx, id)
}

func (s *stubUserService) GetByUsername(ctx context.Context, caller *domain.TokenClaims, username string) (*domain.User, error) {
	return s.getByUsernameFn(ctx, caller, username)
}

func (s *stubUserService) Current(ctx context.Context, caller *domain.TokenClaims) (*domain.User, error) {
	return s.currentFn(ctx, caller)
}

func (s *stubUserService) Create(ctx context.Context, caller *domain.TokenClaims, in ports.CreateUserInput) (*ports.CreateUserResult, error) {
	return s.createFn(ctx, caller, in)
}

func (s *stubUserService) Update(ctx context.Context, caller *domain.TokenClaims, id string, in domain.UpdateUserInput) (*domain.User, error) {
	return s.updateFn(ctx, caller, id, in)
}

func (s *stubUserService) Delete(ctx context.Context, caller *domain.TokenClaims, id string) (*domain.User, error) {
	return s.deleteFn(ctx, caller, id)
}

func (s *stubUserService) ChangePassword(ctx context.Context, caller *domain.TokenClaims, id string, in ports.ChangePasswordInput) error {
	return s.changePasswordFn(ctx, caller, id, in)
}

func (s *stubUserService) ChangeEmailAddress(ctx context.Context, caller *domain.TokenClaims, id, email string) (*domain.User, error) {
	return s.changeEmailFn(ctx, caller, id, email)
}

func (s *stubUserService) ResetPassword(ctx context.Context, caller *domain.TokenClaims, in ports.ResetPasswordInput) error {
	return s.resetPasswordFn(ctx, caller, in)
}

func (s *stubUserService) Roles(ctx context.Context, id string) ([]string, error) {
	return s.rolesFn(ctx, id)
}

func (s *stubUserService) ChangeRoles(ctx context.Context, caller *domain.TokenClaims, id string, roles []string) (*domain.User, error) {
	return s.changeRolesFn(ctx, caller, id, roles)
}

func (s *stubUserService) Applications(ctx context.Context, id string) ([]string, error) {
	return s.applicationsFn(ctx, id)
}

func (s *stubUserService) ChangeApplications(ctx context.Context, caller *domain.TokenClaims, id string, apps []string) (*domain.User, error) {
	return s.changeApplicationsFn(ctx, caller, id, apps)
}

func (s *stubUserService) KnownRoles() []string { return []string{"admin", "operator"} }

func (s *stubUserService) KnownApplications() []string { return []string{"billing"} }

func (s *stubUserService) Authenticate(ctx context.Context, username, password string) (string, error) {
	return s.authenticateFn(ctx, username, password)
}

var adminClaims = &domain.TokenClaims{Subject: "root", Kind: domain.TokenKindUser, Roles: []string{"admin"}, Applications: []string{}}

// newRequest builds an echo context with a JSON body, optional caller and path id.
func newRequest(method, target, body string, claims *domain.TokenClaims, id string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if claims != nil {
		req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	return c, rec
}

func TestUserHandler_Authenticate(t *testing.T) {
	stub := &stubUserService{
		authenticateFn: func(ctx context.Context, username, password string) (string, error) {
			if username != "alice" || password != "secret1" {
				return "", domain.ErrInvalidCredentials
			}
			return "signed-token", nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, rec := newRequest(http.MethodPost, "/users/authenticate", `{"username":"alice","password":"secret1"}`, nil, "")
	if err := h.Authenticate(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec.Code != http.StatusOK || resp.Token != "signed-token" {
		t.Fatalf("unexpected response %d %+v", rec.Code, resp)
	}

	c, _ = newRequest(http.MethodPost, "/users/authenticate", `{"username":"alice","password":"nope"}`, nil, "")
	if err := h.Authenticate(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserHandler_Create(t *testing.T) {
	var got ports.CreateUserInput
	stub := &stubUserService{
		createFn: func(ctx context.Context, caller *domain.TokenClaims, in ports.CreateUserInput) (*ports.CreateUserResult, error) {
			got = in
			return &ports.CreateUserResult{User: &domain.User{ID: "65a1", Username: *in.Username, Email: in.Email, PasswordHash: "secret-hash"}}, nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, rec := newRequest(http.MethodPost, "/users",
		`{"username":"alice","password":"secret1","password_confirm":"secret1","email":"alice@example.com"}`, nil, "")
	c.Request().Header.Set("Idempotency-Key", "key-1")

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/users/65a1" {
		t.Fatalf("unexpected Location %q", loc)
	}
	if got.Username == nil || *got.Username != "alice" || got.PasswordConfirm != "secret1" || got.IdempotencyKey != "key-1" {
		t.Fatalf("unexpected service input: %+v", got)
	}
	if strings.Contains(rec.Body.String(), "secret-hash") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}
}

func TestUserHandler_Create_MissingUsernameStaysNil(t *testing.T) {
	stub := &stubUserService{
		createFn: func(ctx context.Context, caller *domain.TokenClaims, in ports.CreateUserInput) (*ports.CreateUserResult, error) {
			if in.Username != nil {
				t.Fatalf("absent username must reach the service as nil")
			}
			return nil, domain.Malformed("Invalid username")
		},
	}
	h := NewUserHandler(stub, "/users")

	c, _ := newRequest(http.MethodPost, "/users", `{"password":"secret1"}`, nil, "")
	if err := h.Create(c); !errors.Is(err, domain.ErrMalformedEntity) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestUserHandler_Create_IdempotentReplay(t *testing.T) {
	stub := &stubUserService{
		createFn: func(ctx context.Context, caller *domain.TokenClaims, in ports.CreateUserInput) (*ports.CreateUserResult, error) {
			return &ports.CreateUserResult{User: &domain.User{ID: "65a1", Username: "alice"}, AlreadyExisted: true}, nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, rec := newRequest(http.MethodPost, "/users", `{"username":"alice","password":"secret1"}`, nil, "")
	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderLocation) != "/users/65a1" {
		t.Fatalf("expected 200 with Location on replay, got %d %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
}

func TestUserHandler_Create_InvalidPayload(t *testing.T) {
	h := NewUserHandler(&stubUserService{}, "/users")

	c, _ := newRequest(http.MethodPost, "/users", `{"username":`, nil, "")
	err := h.Create(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestUserHandler_Find(t *testing.T) {
	var got domain.UserQuery
	stub := &stubUserService{
		findFn: func(ctx context.Context, q domain.UserQuery) (*domain.UserPage, error) {
			got = q
			return &domain.UserPage{Items: []*domain.User{{ID: "1", Username: "alice"}}, TotalFound: 1, Page: 2, Limit: 5}, nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, rec := newRequest(http.MethodGet, "/users?username=ali&role=admin&sort=-email&page=2&limit=5", "", nil, "")
	if err := h.Find(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got.Username != "ali" || got.Role != "admin" || got.Sort != "-email" || got.Page != 2 || got.Limit != 5 {
		t.Fatalf("unexpected query: %+v", got)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["total_found"] != float64(1) {
		t.Fatalf("unexpected payload: %v", resp)
	}
}

func TestUserHandler_Find_EmailFilterAcceptsStoredShapes(t *testing.T) {
	var got domain.UserQuery
	stub := &stubUserService{
		findFn: func(ctx context.Context, q domain.UserQuery) (*domain.UserPage, error) {
			got = q
			return &domain.UserPage{Items: []*domain.User{}}, nil
		},
	}
	h := NewUserHandler(stub, "/users")

	// accepted by ValidateEmailAddress on write, so it must be searchable
	email := "ops@mail_host.local"
	if err := domain.ValidateEmailAddress(email); err != nil {
		t.Fatalf("precondition: %v", err)
	}
	c, _ := newRequest(http.MethodGet, "/users?email="+email, "", nil, "")
	if err := h.Find(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got.Email != email {
		t.Fatalf("unexpected email filter %q", got.Email)
	}
}

func TestUserHandler_Find_RejectsOversizedLimit(t *testing.T) {
	h := NewUserHandler(&stubUserService{}, "/users")

	c, _ := newRequest(http.MethodGet, "/users?limit=500", "", nil, "")
	err := h.Find(c)
	if !errors.Is(err, domain.ErrMalformedEntity) {
		t.Fatalf("expected malformed, got %v", err)
	}
	if !strings.Contains(err.Error(), "limit must be at most 100") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestUserHandler_CallerIsPassedThrough(t *testing.T) {
	stub := &stubUserService{
		currentFn: func(ctx context.Context, caller *domain.TokenClaims) (*domain.User, error) {
			if caller == nil {
				return nil, domain.ErrUserNotFound
			}
			return &domain.User{ID: "1", Username: caller.Subject}, nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, rec := newRequest(http.MethodGet, "/users/current", "", adminClaims, "")
	if err := h.Current(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"username":"root"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	c, _ = newRequest(http.MethodGet, "/users/current", "", nil, "")
	if err := h.Current(c); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("anonymous current must be not found, got %v", err)
	}
}

func TestUserHandler_ChangePassword(t *testing.T) {
	var got ports.ChangePasswordInput
	stub := &stubUserService{
		changePasswordFn: func(ctx context.Context, caller *domain.TokenClaims, id string, in ports.ChangePasswordInput) error {
			if id != "65a1" {
				t.Fatalf("unexpected id %q", id)
			}
			got = in
			return nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, rec := newRequest(http.MethodPatch, "/users/65a1/changepassword",
		`{"oldpassword":"secret1","password":"secret2","password_confirm":"secret2"}`, nil, "65a1")
	if err := h.ChangePassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.OldPassword != "secret1" || got.Password != "secret2" || got.PasswordConfirm != "secret2" {
		t.Fatalf("unexpected input: %+v", got)
	}
}

func TestUserHandler_ChangeEmailAddress(t *testing.T) {
	stub := &stubUserService{
		changeEmailFn: func(ctx context.Context, caller *domain.TokenClaims, id, email string) (*domain.User, error) {
			return &domain.User{ID: id, Username: "alice", Email: email}, nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, rec := newRequest(http.MethodPatch, "/users/65a1/changeemailaddress", `{"email_address":"new@example.com"}`, nil, "65a1")
	if err := h.ChangeEmailAddress(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "new@example.com") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	c, _ = newRequest(http.MethodPatch, "/users/65a1/changeemailaddress", `{}`, nil, "65a1")
	err := h.ChangeEmailAddress(c)
	if !errors.Is(err, domain.ErrMalformedEntity) || err.Error() != "email_address is required" {
		t.Fatalf("expected email_address is required, got %v", err)
	}
}

func TestUserHandler_ChangeRoles(t *testing.T) {
	var gotRoles []string
	var gotCaller *domain.TokenClaims
	stub := &stubUserService{
		changeRolesFn: func(ctx context.Context, caller *domain.TokenClaims, id string, roles []string) (*domain.User, error) {
			gotRoles, gotCaller = roles, caller
			return &domain.User{ID: id, Username: "alice", Roles: roles}, nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, rec := newRequest(http.MethodPost, "/users/65a1/roles", `{"roles":["operator"]}`, adminClaims, "65a1")
	if err := h.ChangeRoles(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || len(gotRoles) != 1 || gotRoles[0] != "operator" || gotCaller != adminClaims {
		t.Fatalf("unexpected call: %d %v %v", rec.Code, gotRoles, gotCaller)
	}
}

func TestUserHandler_ChangeRoles_OmittedListIsNil(t *testing.T) {
	stub := &stubUserService{
		changeRolesFn: func(ctx context.Context, caller *domain.TokenClaims, id string, roles []string) (*domain.User, error) {
			if roles != nil {
				t.Fatalf("omitted roles must reach the service as nil, got %v", roles)
			}
			return nil, domain.Malformed("Roles list cannot be undefined.")
		},
	}
	h := NewUserHandler(stub, "/users")

	c, _ := newRequest(http.MethodPost, "/users/65a1/roles", `{}`, adminClaims, "65a1")
	if err := h.ChangeRoles(c); !errors.Is(err, domain.ErrMalformedEntity) {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestUserHandler_ChangeApplications(t *testing.T) {
	stub := &stubUserService{
		changeApplicationsFn: func(ctx context.Context, caller *domain.TokenClaims, id string, apps []string) (*domain.User, error) {
			return &domain.User{ID: id, Applications: apps}, nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, _ := newRequest(http.MethodPost, "/users/65a1/apps", `{"applications":["billing",""]}`, adminClaims, "65a1")
	if err := h.ChangeApplications(c); !errors.Is(err, domain.ErrMalformedEntity) {
		t.Fatalf("empty application names must be rejected, got %v", err)
	}

	c, rec := newRequest(http.MethodPost, "/users/65a1/apps", `{"applications":["billing"]}`, adminClaims, "65a1")
	if err := h.ChangeApplications(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "billing") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestUserHandler_RolesAndApplications(t *testing.T) {
	stub := &stubUserService{
		rolesFn:        func(ctx context.Context, id string) ([]string, error) { return []string{}, nil },
		applicationsFn: func(ctx context.Context, id string) ([]string, error) { return nil, domain.ErrUserNotFound },
	}
	h := NewUserHandler(stub, "/users")

	c, rec := newRequest(http.MethodGet, "/users/65a1/roles", "", nil, "65a1")
	if err := h.Roles(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}

	c, _ = newRequest(http.MethodGet, "/users/65a1/apps", "", nil, "65a1")
	if err := h.Applications(c); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserHandler_KnownLists(t *testing.T) {
	h := NewUserHandler(&stubUserService{}, "/users")

	c, rec := newRequest(http.MethodGet, "/users/getroles", "", nil, "")
	if err := h.KnownRoles(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != `["admin","operator"]` {
		t.Fatalf("unexpected roles: %s", rec.Body.String())
	}

	c, rec = newRequest(http.MethodGet, "/users/getapplications", "", nil, "")
	if err := h.KnownApplications(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != `["billing"]` {
		t.Fatalf("unexpected applications: %s", rec.Body.String())
	}
}

func TestUserHandler_Update_OnlyWhitelistedFields(t *testing.T) {
	var got domain.UpdateUserInput
	stub := &stubUserService{
		updateFn: func(ctx context.Context, caller *domain.TokenClaims, id string, in domain.UpdateUserInput) (*domain.User, error) {
			got = in
			return &domain.User{ID: id, Username: "alice"}, nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, _ := newRequest(http.MethodPut, "/users/65a1",
		`{"id":"other","password":"x","email":"a@example.com","roles":["operator"]}`, adminClaims, "65a1")
	if err := h.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got.Email == nil || *got.Email != "a@example.com" {
		t.Fatalf("email not passed: %+v", got)
	}
	if got.Roles == nil || len(*got.Roles) != 1 {
		t.Fatalf("roles not passed: %+v", got)
	}
	if got.Applications != nil {
		t.Fatalf("omitted applications must stay nil")
	}
}

func TestUserHandler_Delete(t *testing.T) {
	stub := &stubUserService{
		deleteFn: func(ctx context.Context, caller *domain.TokenClaims, id string) (*domain.User, error) {
			if id == "admin-id" {
				return nil, domain.NotAuthorized("Cannot delete this user")
			}
			return &domain.User{ID: id, Username: "bob"}, nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, rec := newRequest(http.MethodDelete, "/users/65a2", "", nil, "65a2")
	if err := h.Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"username":"bob"`) {
		t.Fatalf("deleted user not returned: %s", rec.Body.String())
	}

	c, _ = newRequest(http.MethodDelete, "/users/admin-id", "", nil, "admin-id")
	if err := h.Delete(c); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
}

func TestUserHandler_ResetPassword(t *testing.T) {
	var got ports.ResetPasswordInput
	stub := &stubUserService{
		resetPasswordFn: func(ctx context.Context, caller *domain.TokenClaims, in ports.ResetPasswordInput) error {
			if caller == nil {
				return domain.ErrNotAuthenticated
			}
			got = in
			return nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, rec := newRequest(http.MethodPatch, "/users/resetpassword",
		`{"username":"alice","password":"fresh","password_confirm":"fresh"}`, adminClaims, "")
	if err := h.ResetPassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || got.Username != "alice" || got.Password != "fresh" {
		t.Fatalf("unexpected reset: %d %+v", rec.Code, got)
	}

	c, _ = newRequest(http.MethodPatch, "/users/resetpassword",
		`{"username":"alice","password":"fresh","password_confirm":"fresh"}`, nil, "")
	if err := h.ResetPassword(c); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
}

func TestUserHandler_GetByUsername(t *testing.T) {
	stub := &stubUserService{
		getByUsernameFn: func(ctx context.Context, caller *domain.TokenClaims, username string) (*domain.User, error) {
			return &domain.User{ID: "1", Username: username}, nil
		},
	}
	h := NewUserHandler(stub, "/users")

	c, rec := newRequest(http.MethodGet, "/users/getbyusername?username=alice", "", adminClaims, "")
	if err := h.GetByUsername(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"username":"alice"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
