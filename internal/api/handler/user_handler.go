package handler

import (
	"net/http"
	"path"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-accounts/internal/api/metrics"
	"github.com/99minutos/user-accounts/internal/core/domain"
	"github.com/99minutos/user-accounts/internal/core/ports"
)

// UserHandler handles HTTP requests for user accounts.
type UserHandler struct {
	service  ports.UserService
	basePath string
}

// NewUserHandler builds a handler whose Location headers are rooted at basePath.
func NewUserHandler(service ports.UserService, basePath string) *UserHandler {
	return &UserHandler{service: service, basePath: basePath}
}

// Authenticate handles POST /users/authenticate.
//
// @Summary      Authenticate and obtain a token
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      authenticateRequest  true  "Credentials"
// @Success      200   {object}  tokenResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /users/authenticate [post]
func (h *UserHandler) Authenticate(c echo.Context) error {
	var req authenticateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	token, err := h.service.Authenticate(c.Request().Context(), req.Username, req.Password)
	metrics.AuthenticationsTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// Find handles GET /users.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        username     query     string  false  "Partial, case-insensitive username"
// @Param        email        query     string  false  "Exact email address"
// @Param        role         query     string  false  "Users holding this role"
// @Param        application  query     string  false  "Users granted this application"
// @Param        sort         query     string  false  "username or email, prefix with - for descending"
// @Param        page         query     int     false  "1-based page"
// @Param        limit        query     int     false  "Page size, at most 100"
// @Success      200          {object}  domain.UserPage
// @Failure      400          {object}  errorResponse
// @Failure      401          {object}  errorResponse
// @Failure      500          {object}  errorResponse
// @Router       /users [get]
func (h *UserHandler) Find(c echo.Context) error {
	var req findUsersRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	page, err := h.service.Find(c.Request().Context(), domain.UserQuery{
		Username:    req.Username,
		Email:       req.Email,
		Role:        req.Role,
		Application: req.Application,
		Sort:        req.Sort,
		Page:        req.Page,
		Limit:       req.Limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// Create handles POST /users.
//
// @Summary      Create a user
// @Description  Responds 201 with a Location header. A repeated Idempotency-Key returns the first user with 200.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string             false  "Idempotency key to prevent duplicate submissions"
// @Param        body             body      createUserRequest  true   "New account"
// @Success      201              {object}  domain.User
// @Success      200              {object}  domain.User
// @Failure      400              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Failure      500              {object}  errorResponse
// @Router       /users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.service.Create(c.Request().Context(), caller(c), ports.CreateUserInput{
		CreateUserInput: domain.CreateUserInput{
			Username:        req.Username,
			Password:        req.Password,
			PasswordConfirm: req.PasswordConfirm,
			Email:           req.Email,
		},
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
	metrics.ObserveCommand("create", err)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, path.Join(h.basePath, result.User.ID))
	if result.AlreadyExisted {
		metrics.IdempotentReplaysTotal.Inc()
		return c.JSON(http.StatusOK, result.User)
	}
	return c.JSON(http.StatusCreated, result.User)
}

// Current handles GET /users/current.
//
// @Summary      The authenticated user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.User
// @Failure      404  {object}  errorResponse
// @Router       /users/current [get]
func (h *UserHandler) Current(c echo.Context) error {
	user, err := h.service.Current(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// GetByUsername handles GET /users/getbyusername?username=.
//
// @Summary      Look a user up by username
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        username  query     string  true  "Exact username"
// @Success      200       {object}  domain.User
// @Failure      404       {object}  errorResponse
// @Router       /users/getbyusername [get]
func (h *UserHandler) GetByUsername(c echo.Context) error {
	user, err := h.service.GetByUsername(c.Request().Context(), caller(c), c.QueryParam("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// ResetPassword handles PATCH /users/resetpassword.
//
// @Summary      Set a user's password without the old one
// @Tags         users
// @Accept       json
// @Security     BearerAuth
// @Param        body  body  resetPasswordRequest  true  "Target username and new password"
// @Success      200
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /users/resetpassword [patch]
func (h *UserHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.service.ResetPassword(c.Request().Context(), caller(c), ports.ResetPasswordInput{
		Username:        req.Username,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	metrics.ObserveCommand("reset_password", err)
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

// KnownRoles handles GET /users/getroles.
//
// @Summary      Role names a user may be given
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  string
// @Router       /users/getroles [get]
func (h *UserHandler) KnownRoles(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.KnownRoles())
}

// KnownApplications handles GET /users/getapplications.
//
// @Summary      Application names a user may be granted
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  string
// @Router       /users/getapplications [get]
func (h *UserHandler) KnownApplications(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.KnownApplications())
}

// Get handles GET /users/:id.
//
// @Summary      Get a user by id
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  domain.User
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Update handles PUT /users/:id.
//
// @Summary      Update a user's email, roles and applications
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User id"
// @Param        body  body      updateUserRequest  true  "Fields to change; omitted fields are kept"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.service.Update(c.Request().Context(), caller(c), c.Param("id"), domain.UpdateUserInput{
		Email:        req.Email,
		Applications: req.Applications,
		Roles:        req.Roles,
	})
	metrics.ObserveCommand("update", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Delete handles DELETE /users/:id.
//
// @Summary      Delete a user
// @Description  Admin and built-in accounts cannot be deleted.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  domain.User
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	user, err := h.service.Delete(c.Request().Context(), caller(c), c.Param("id"))
	metrics.ObserveCommand("delete", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// ChangePassword handles PATCH /users/:id/changepassword.
//
// @Summary      Change a user's password
// @Tags         users
// @Accept       json
// @Security     BearerAuth
// @Param        id    path  string                 true  "User id"
// @Param        body  body  changePasswordRequest  true  "Old and new password"
// @Success      200
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /users/{id}/changepassword [patch]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.service.ChangePassword(c.Request().Context(), caller(c), c.Param("id"), ports.ChangePasswordInput{
		OldPassword:     req.OldPassword,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	metrics.ObserveCommand("change_password", err)
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

// ChangeEmailAddress handles PATCH /users/:id/changeemailaddress.
//
// @Summary      Change a user's email address
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                     true  "User id"
// @Param        body  body      changeEmailAddressRequest  true  "New address"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /users/{id}/changeemailaddress [patch]
func (h *UserHandler) ChangeEmailAddress(c echo.Context) error {
	var req changeEmailAddressRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.service.ChangeEmailAddress(c.Request().Context(), caller(c), c.Param("id"), req.EmailAddress)
	metrics.ObserveCommand("change_email_address", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Roles handles GET /users/:id/roles.
//
// @Summary      A user's roles
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string  true  "User id"
// @Success      200  {array}  string
// @Failure      404  {object}  errorResponse
// @Router       /users/{id}/roles [get]
func (h *UserHandler) Roles(c echo.Context) error {
	roles, err := h.service.Roles(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}

// ChangeRoles handles POST /users/:id/roles.
//
// @Summary      Replace a user's roles
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string              true  "User id"
// @Param        body  body      changeRolesRequest  true  "Complete role list"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /users/{id}/roles [post]
func (h *UserHandler) ChangeRoles(c echo.Context) error {
	var req changeRolesRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.service.ChangeRoles(c.Request().Context(), caller(c), c.Param("id"), req.Roles)
	metrics.ObserveCommand("change_roles", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Applications handles GET /users/:id/apps.
//
// @Summary      A user's applications
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string  true  "User id"
// @Success      200  {array}  string
// @Failure      404  {object}  errorResponse
// @Router       /users/{id}/apps [get]
func (h *UserHandler) Applications(c echo.Context) error {
	apps, err := h.service.Applications(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apps)
}

// ChangeApplications handles POST /users/:id/apps.
//
// @Summary      Replace a user's applications
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                     true  "User id"
// @Param        body  body      changeApplicationsRequest  true  "Complete application list"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /users/{id}/apps [post]
func (h *UserHandler) ChangeApplications(c echo.Context) error {
	var req changeApplicationsRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.service.ChangeApplications(c.Request().Context(), caller(c), c.Param("id"), req.Applications)
	metrics.ObserveCommand("change_applications", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}
