package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/user-accounts/internal/core/domain"
	"github.com/99minutos/user-accounts/internal/core/ports"
	"github.com/99minutos/user-accounts/pkg/logger"
)

// PasswordHasher is the hashing contract plus upgrade detection for stored hashes.
type PasswordHasher interface {
	domain.PasswordHasher
	NeedsRehash(stored string) bool
}

// UserServiceConfig wires the collaborators of UserService. Audit and
// Idempotency are optional.
type UserServiceConfig struct {
	Repo        ports.UserRepository
	Hasher      PasswordHasher
	Tokens      ports.TokenIssuer
	Permissions domain.Permissions
	Audit       ports.AuditRecorder
	Idempotency ports.IdempotencyStore
	Logger      zerolog.Logger
}

// UserService loads users, runs commands against them and persists the result.
type UserService struct {
	repo   ports.UserRepository
	hasher PasswordHasher
	tokens ports.TokenIssuer
	perms  domain.Permissions
	audit  ports.AuditRecorder
	idem   ports.IdempotencyStore
	log    zerolog.Logger
	now    func() time.Time

	// decoyHash is verified against when the username is unknown so both
	// failure paths cost the same.
	decoyHash string
}

func NewUserService(cfg UserServiceConfig) *UserService {
	s := &UserService{
		repo:   cfg.Repo,
		hasher: cfg.Hasher,
		tokens: cfg.Tokens,
		perms:  cfg.Permissions,
		audit:  cfg.Audit,
		idem:   cfg.Idempotency,
		log:    cfg.Logger,
		now:    time.Now,
	}
	if s.audit == nil {
		s.audit = noopAudit{}
	}
	if decoy, err := s.hasher.Hash(uuid.NewString()); err == nil {
		s.decoyHash = decoy
	}
	return s
}

func (s *UserService) Find(ctx context.Context, q domain.UserQuery) (*domain.UserPage, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	return s.repo.Find(ctx, q)
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.Get(ctx, id)
}

// GetByUsername requires an authenticated caller; anonymous lookups report not found.
func (s *UserService) GetByUsername(ctx context.Context, caller *domain.TokenClaims, username string) (*domain.User, error) {
	if caller == nil {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.GetByUsername(ctx, username)
}

func (s *UserService) Current(ctx context.Context, caller *domain.TokenClaims) (*domain.User, error) {
	if caller == nil {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.GetByUsername(ctx, caller.Subject)
}

// Create adds a new account. When an Idempotency-Key is supplied and was
// already used, the previously created user is returned untouched. A second
// request racing the first one on the same key fails with ErrUserExists.
func (s *UserService) Create(ctx context.Context, caller *domain.TokenClaims, in ports.CreateUserInput) (*ports.CreateUserResult, error) {
	key, existing, err := s.claim(ctx, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.For(ctx, s.log).Info().Str("idempotency_key", in.IdempotencyKey).Str("user_id", existing.ID).Msg("idempotent replay")
		return &ports.CreateUserResult{User: existing, AlreadyExisted: true}, nil
	}

	user, err := s.add(ctx, in.CreateUserInput)
	if err != nil {
		if key != "" {
			if rerr := s.idem.Release(ctx, key); rerr != nil {
				logger.For(ctx, s.log).Warn().Err(rerr).Str("idempotency_key", key).Msg("failed to release idempotency key")
			}
		}
		return nil, err
	}

	if key != "" {
		if err := s.idem.Remember(ctx, key, user.ID); err != nil {
			logger.For(ctx, s.log).Warn().Err(err).Str("idempotency_key", key).Msg("failed to store idempotency key")
		}
	}

	s.record(domain.ActionCreated, user.Username, caller)
	logger.For(ctx, s.log).Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user created")
	return &ports.CreateUserResult{User: user}, nil
}

func (s *UserService) add(ctx context.Context, in domain.CreateUserInput) (*domain.User, error) {
	cmd, err := domain.NewCreateUserCommand(s.hasher, in)
	if err != nil {
		return nil, err
	}
	return s.repo.Add(ctx, cmd)
}

// claim reserves key for this request. It returns the key to resolve once the
// user exists ("" when there is nothing to resolve), or the user an earlier
// request already created with it. An unreachable store does not block creates.
func (s *UserService) claim(ctx context.Context, key string) (string, *domain.User, error) {
	if key == "" || s.idem == nil {
		return "", nil, nil
	}
	claimed, id, err := s.idem.Claim(ctx, key)
	if err != nil {
		logger.For(ctx, s.log).Warn().Err(err).Str("idempotency_key", key).Msg("idempotency claim failed, creating anyway")
		return "", nil, nil
	}
	if claimed {
		return key, nil, nil
	}
	if id == "" {
		return "", nil, &domain.Error{Kind: domain.ErrUserExists, Reason: "A request with this Idempotency-Key is in progress"}
	}
	user, err := s.repo.Get(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		// bound user was deleted since; the key no longer replays anything
		return key, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	return "", user, nil
}

// Update applies whitelisted field changes. Admin only, since it can touch roles.
func (s *UserService) Update(ctx context.Context, caller *domain.TokenClaims, id string, in domain.UpdateUserInput) (*domain.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cmd, err := domain.NewUpdateUserCommand(user, in, s.perms)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, cmd, domain.ActionUpdated, caller)
}

func (s *UserService) Delete(ctx context.Context, caller *domain.TokenClaims, id string) (*domain.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cmd, err := domain.NewDeleteUserCommand(user)
	if err != nil {
		return nil, err
	}
	deleted, err := s.repo.Delete(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s.record(domain.ActionDeleted, deleted.Username, caller)
	logger.For(ctx, s.log).Info().Str("user_id", deleted.ID).Str("username", deleted.Username).Msg("user deleted")
	return deleted, nil
}

func (s *UserService) ChangePassword(ctx context.Context, caller *domain.TokenClaims, id string, in ports.ChangePasswordInput) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	cmd, err := domain.NewChangePasswordCommand(s.hasher, user, in.OldPassword, in.Password, in.PasswordConfirm)
	if err != nil {
		return err
	}
	_, err = s.save(ctx, cmd, domain.ActionPasswordChanged, caller)
	return err
}

func (s *UserService) ChangeEmailAddress(ctx context.Context, caller *domain.TokenClaims, id, email string) (*domain.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cmd, err := domain.NewChangeEmailAddressCommand(user, email)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, cmd, domain.ActionEmailChanged, caller)
}

// ResetPassword lets an admin set a new password without knowing the old one.
func (s *UserService) ResetPassword(ctx context.Context, caller *domain.TokenClaims, in ports.ResetPasswordInput) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	user, err := s.repo.GetByUsername(ctx, in.Username)
	if err != nil {
		return err
	}
	cmd, err := domain.NewResetPasswordCommand(s.hasher, user, in.Password, in.PasswordConfirm)
	if err != nil {
		return err
	}
	_, err = s.save(ctx, cmd, domain.ActionPasswordReset, caller)
	return err
}

func (s *UserService) Roles(ctx context.Context, id string) ([]string, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Roles == nil {
		return []string{}, nil
	}
	return user.Roles, nil
}

func (s *UserService) ChangeRoles(ctx context.Context, caller *domain.TokenClaims, id string, roles []string) (*domain.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cmd, err := domain.NewChangeRolesCommand(user, roles, s.perms)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, cmd, domain.ActionRolesChanged, caller)
}

func (s *UserService) Applications(ctx context.Context, id string) ([]string, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Applications == nil {
		return []string{}, nil
	}
	return user.Applications, nil
}

func (s *UserService) ChangeApplications(ctx context.Context, caller *domain.TokenClaims, id string, applications []string) (*domain.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cmd, err := domain.NewChangeApplicationsCommand(user, applications, s.perms)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, cmd, domain.ActionApplicationsChanged, caller)
}

func (s *UserService) KnownRoles() []string {
	return append([]string{}, s.perms.Roles...)
}

func (s *UserService) KnownApplications() []string {
	return append([]string{}, s.perms.Applications...)
}

// Authenticate verifies credentials and signs the user's claims. A hash in an
// outdated scheme is upgraded after a successful check.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return "", err
		}
		user = nil
		s.hasher.Verify(password, s.decoyHash)
	}

	cmd, err := domain.NewAuthenticateUserCommand(s.hasher, user, password)
	if err != nil {
		logger.For(ctx, s.log).Debug().Str("username", username).Msg("authentication rejected")
		return "", err
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	token, err := s.tokens.Sign(cmd.Claims())
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.record(domain.ActionAuthenticated, user.Username, nil)
	return token, nil
}

func (s *UserService) rehash(ctx context.Context, user *domain.User, password string) {
	cmd, err := domain.NewResetPasswordCommand(s.hasher, user, password, password)
	if err != nil {
		logger.For(ctx, s.log).Warn().Err(err).Str("username", user.Username).Msg("password rehash rejected")
		return
	}
	if _, err := s.repo.Save(ctx, cmd); err != nil {
		logger.For(ctx, s.log).Warn().Err(err).Str("username", user.Username).Msg("password rehash not saved")
		return
	}
	logger.For(ctx, s.log).Info().Str("username", user.Username).Msg("password hash upgraded")
}

// EnsureAdmin creates an admin account unless one already exists.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password, email string) (bool, error) {
	page, err := s.repo.Find(ctx, domain.UserQuery{Role: domain.RoleAdmin, Sort: domain.DefaultSort, Page: 1, Limit: 1})
	if err != nil {
		return false, err
	}
	if page.TotalFound > 0 {
		return false, nil
	}

	cmd, err := domain.NewBootstrapAdminCommand(s.hasher, domain.CreateUserInput{
		Username:        &username,
		Password:        password,
		PasswordConfirm: password,
		Email:           email,
	}, s.perms)
	if err != nil {
		return false, err
	}
	user, err := s.repo.Add(ctx, cmd)
	if err != nil {
		return false, err
	}
	s.record(domain.ActionCreated, user.Username, nil)
	return true, nil
}

func (s *UserService) save(ctx context.Context, cmd domain.SaveCommand, action domain.AccountAction, caller *domain.TokenClaims) (*domain.User, error) {
	user, err := s.repo.Save(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s.record(action, user.Username, caller)
	logger.For(ctx, s.log).Info().Str("user_id", user.ID).Str("action", string(action)).Msg("user saved")
	return user, nil
}

func (s *UserService) record(action domain.AccountAction, username string, caller *domain.TokenClaims) {
	ev := domain.AccountEvent{
		ID:         uuid.NewString(),
		Action:     action,
		Username:   username,
		OccurredAt: s.now().UTC(),
	}
	if caller != nil {
		ev.Actor = caller.Subject
	}
	s.audit.Record(ev)
}

func requireAdmin(caller *domain.TokenClaims) error {
	if caller == nil {
		return domain.ErrNotAuthenticated
	}
	if !caller.IsInRole(domain.RoleAdmin) {
		return domain.NotAuthorized("Only administrators can perform this operation")
	}
	return nil
}

type noopAudit struct{}

func (noopAudit) Record(domain.AccountEvent) {}
