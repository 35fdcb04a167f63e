package auth

import (
	"context"
	"errors"
	"strings"

	"deliveryService/internal/apperr"
	"deliveryService/internal/logx"
	"deliveryService/models"
	"deliveryService/repository"
)

// InitialAdminUsername is the account created from INITIAL_USER_PASSWORD.
const InitialAdminUsername = "admin"

// Accounts manages user accounts.
type Accounts struct {
	users repository.UserRepositoryI
	log   logx.Logger
}

func NewAccounts(users repository.UserRepositoryI, log logx.Logger) *Accounts {
	if log == nil {
		log = logx.Nop()
	}
	return &Accounts{users: users, log: log}
}

// CreateUser adds an account on behalf of actor, who must be an admin.
func (a *Accounts) CreateUser(ctx context.Context, actor *Principal, username, password, role string) (*models.User, error) {
	if actor == nil {
		return nil, apperr.New(apperr.Unauthenticated, "missing principal")
	}
	if err := actor.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.Invalid("username", "username is empty")
	}
	if strings.Contains(username, ":") {
		return nil, apperr.Invalid("username", "username %q contains ':'", username)
	}
	if password == "" {
		return nil, apperr.Invalid("password", "password is empty")
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return nil, apperr.Invalid("role", "role %q is not one of customer, rider, admin", role)
	}
	u, err := a.create(ctx, username, password, r)
	if err != nil {
		return nil, err
	}
	a.log.Info("user created", logx.String("username", username), logx.String("role", string(r)), logx.String("by", actor.Username))
	return u, nil
}

// EnsureInitialAdmin creates the admin account with password unless password is
// empty or the account already exists. It reports whether an account was created.
func (a *Accounts) EnsureInitialAdmin(ctx context.Context, password string) (bool, error) {
	if password == "" {
		a.log.Info("not creating an initial user: INITIAL_USER_PASSWORD is not set")
		return false, nil
	}
	existing, err := a.users.GetByUsername(ctx, InitialAdminUsername)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if _, err := a.create(ctx, InitialAdminUsername, password, models.RoleAdmin); err != nil {
		if errors.Is(err, apperr.Conflict) {
			return false, nil
		}
		return false, err
	}
	a.log.Info("initial admin account created", logx.String("username", InitialAdminUsername))
	return true, nil
}

func (a *Accounts) create(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	hash, salt, err := HashPassword(password)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "hash password: %v", err)
	}
	u := &models.User{Username: username, Role: role, PasswordHash: hash, Salt: salt}
	if err := a.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apperr.New(apperr.Conflict, "user %q already exists", username)
		}
		return nil, apperr.New(apperr.Internal, "create user %q: %v", username, err)
	}
	return u, nil
}
