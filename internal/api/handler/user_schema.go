package handler

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type authenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// createUserRequest keeps username as a pointer: a missing field and an empty
// string are validated differently.
type createUserRequest struct {
	Username        *string `json:"username"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"password_confirm"`
	Email           string  `json:"email"`
}

// updateUserRequest lists the only fields PUT may change. Password and id are
// not bindable.
type updateUserRequest struct {
	Email        *string   `json:"email"`
	Applications *[]string `json:"applications"`
	Roles        *[]string `json:"roles"`
}

type findUsersRequest struct {
	Username    string `query:"username"`
	Email       string `query:"email"`
	Role        string `query:"role"`
	Application string `query:"application"`
	Sort        string `query:"sort"`
	Page        int    `query:"page"        validate:"gte=0"`
	Limit       int    `query:"limit"       validate:"gte=0,lte=100"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldpassword"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type changeEmailAddressRequest struct {
	EmailAddress string `json:"email_address" validate:"required"`
}

type resetPasswordRequest struct {
	Username        string `json:"username" validate:"required"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Roles and applications stay nullable so an omitted list reaches the
// allow-list check as undefined.
type changeRolesRequest struct {
	Roles []string `json:"roles" validate:"omitempty,dive,required"`
}

type changeApplicationsRequest struct {
	Applications []string `json:"applications" validate:"omitempty,dive,required"`
}
