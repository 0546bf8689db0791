package domain

// PasswordHasher turns raw passwords into their stored form and checks them.
type PasswordHasher interface {
	Hash(raw string) (string, error)
	Verify(raw, stored string) bool
}

// AddCommand is a validated user ready to be inserted.
type AddCommand interface {
	Entity() *User
	add()
}

// SaveCommand is a validated user ready to replace its stored mutable fields.
type SaveCommand interface {
	Entity() *User
	save()
}

// DeleteCommand is a user cleared for removal.
type DeleteCommand interface {
	Entity() *User
	remove()
}

type entityCommand struct {
	user *User
}

func (c entityCommand) Entity() *User { return c.user }

type saveCommand struct{ entityCommand }

func (saveCommand) save() {}

// CreateUserInput carries the raw fields of a new account. A nil Username
// means the field was not supplied.
type CreateUserInput struct {
	Username        *string
	Password        string
	PasswordConfirm string
	Email           string
}

type CreateUserCommand struct{ entityCommand }

func (CreateUserCommand) add() {}

// NewCreateUserCommand validates in and returns a user with a hashed password
// and no roles or applications.
func NewCreateUserCommand(h PasswordHasher, in CreateUserInput) (*CreateUserCommand, error) {
	if err := ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if in.PasswordConfirm != "" && in.PasswordConfirm != in.Password {
		return nil, Malformed("Password and password confirm don't match")
	}
	if in.Email != "" {
		if err := ValidateEmailAddress(in.Email); err != nil {
			return nil, err
		}
	}

	hash, err := h.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	return &CreateUserCommand{entityCommand{&User{
		Username:     *in.Username,
		PasswordHash: hash,
		Email:        in.Email,
		Applications: []string{},
		Roles:        []string{},
	}}}, nil
}

// NewBootstrapAdminCommand is NewCreateUserCommand for the first
// administrator of an empty store.
func NewBootstrapAdminCommand(h PasswordHasher, in CreateUserInput, perms Permissions) (*CreateUserCommand, error) {
	if err := perms.Roles.Check("role", []string{RoleAdmin}); err != nil {
		return nil, err
	}
	cmd, err := NewCreateUserCommand(h, in)
	if err != nil {
		return nil, err
	}
	cmd.user.Roles = []string{RoleAdmin}
	return cmd, nil
}

// UpdateUserInput lists the fields an update may touch. Nil means unchanged.
type UpdateUserInput struct {
	Email        *string
	Applications *[]string
	Roles        *[]string
}

type UpdateUserCommand struct{ saveCommand }

func NewUpdateUserCommand(user *User, in UpdateUserInput, perms Permissions) (*UpdateUserCommand, error) {
	if in.Email != nil && *in.Email != "" {
		if err := ValidateEmailAddress(*in.Email); err != nil {
			return nil, err
		}
	}
	if in.Applications != nil {
		if err := perms.Applications.Check("application", *in.Applications); err != nil {
			return nil, err
		}
	}
	if in.Roles != nil {
		if err := perms.Roles.Check("role", *in.Roles); err != nil {
			return nil, err
		}
	}

	u := user.Clone()
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Applications != nil {
		u.Applications = cloneStrings(*in.Applications)
	}
	if in.Roles != nil {
		u.Roles = cloneStrings(*in.Roles)
	}
	return &UpdateUserCommand{saveCommand{entityCommand{u}}}, nil
}

type DeleteUserCommand struct{ entityCommand }

func (DeleteUserCommand) remove() {}

// NewDeleteUserCommand refuses to delete admin and built-in accounts.
func NewDeleteUserCommand(user *User) (*DeleteUserCommand, error) {
	if user.HasRole(RoleAdmin) || user.HasRole(RoleBuiltIn) {
		return nil, NotAuthorized("Cannot delete this user")
	}
	return &DeleteUserCommand{entityCommand{user.Clone()}}, nil
}

type ChangePasswordCommand struct{ saveCommand }

func NewChangePasswordCommand(h PasswordHasher, user *User, oldPassword, password, passwordConfirm string) (*ChangePasswordCommand, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if password != passwordConfirm {
		return nil, Malformed("Password and password confirm don't match")
	}
	if !h.Verify(oldPassword, user.PasswordHash) {
		return nil, Malformed("Old password doesn't match")
	}

	hash, err := h.Hash(password)
	if err != nil {
		return nil, err
	}
	u := user.Clone()
	u.PasswordHash = hash
	return &ChangePasswordCommand{saveCommand{entityCommand{u}}}, nil
}

type ChangeEmailAddressCommand struct{ saveCommand }

func NewChangeEmailAddressCommand(user *User, email string) (*ChangeEmailAddressCommand, error) {
	if err := ValidateEmailAddress(email); err != nil {
		return nil, err
	}
	u := user.Clone()
	u.Email = email
	return &ChangeEmailAddressCommand{saveCommand{entityCommand{u}}}, nil
}

type ChangeApplicationsCommand struct{ saveCommand }

func NewChangeApplicationsCommand(user *User, applications []string, perms Permissions) (*ChangeApplicationsCommand, error) {
	if err := perms.Applications.Check("application", applications); err != nil {
		return nil, err
	}
	u := user.Clone()
	u.Applications = cloneStrings(applications)
	return &ChangeApplicationsCommand{saveCommand{entityCommand{u}}}, nil
}

type ChangeRolesCommand struct{ saveCommand }

func NewChangeRolesCommand(user *User, roles []string, perms Permissions) (*ChangeRolesCommand, error) {
	if err := perms.Roles.Check("role", roles); err != nil {
		return nil, err
	}
	u := user.Clone()
	u.Roles = cloneStrings(roles)
	return &ChangeRolesCommand{saveCommand{entityCommand{u}}}, nil
}

type ResetPasswordCommand struct{ saveCommand }

func NewResetPasswordCommand(h PasswordHasher, user *User, password, passwordConfirm string) (*ResetPasswordCommand, error) {
	if password != passwordConfirm {
		return nil, Malformed("Password and password confirm are not the same.")
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := h.Hash(password)
	if err != nil {
		return nil, err
	}
	u := user.Clone()
	u.PasswordHash = hash
	return &ResetPasswordCommand{saveCommand{entityCommand{u}}}, nil
}

// AuthenticateUserCommand is a read-only check; it never reaches the repository.
type AuthenticateUserCommand struct {
	user *User
}

// NewAuthenticateUserCommand fails with ErrInvalidCredentials both when user
// is nil and when the password does not verify.
func NewAuthenticateUserCommand(h PasswordHasher, user *User, password string) (*AuthenticateUserCommand, error) {
	if user == nil || !h.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &AuthenticateUserCommand{user: user}, nil
}

func (c *AuthenticateUserCommand) User() *User { return c.user }

func (c *AuthenticateUserCommand) Claims() TokenClaims { return c.user.TokenClaims() }
