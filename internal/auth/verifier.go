package auth

import (
	"context"

	"deliveryService/internal/apperr"
	"deliveryService/internal/logx"
	"deliveryService/models"
	"deliveryService/repository"
)

// Verifier checks credentials against the user store.
type Verifier struct {
	users repository.UserRepositoryI
	log   logx.Logger
}

func NewVerifier(users repository.UserRepositoryI, log logx.Logger) *Verifier {
	if log == nil {
		log = logx.Nop()
	}
	return &Verifier{users: users, log: log}
}

// Verify returns the principal for username/password. Unknown users and wrong
// passwords are both an Unauthenticated error with the same message; the reason
// is only logged.
func (v *Verifier) Verify(ctx context.Context, username, password string) (*Principal, error) {
	u, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "load user: %v", err)
	}
	if u == nil {
		v.log.Info("user not found", logx.String("username", username))
		return nil, apperr.New(apperr.Unauthenticated, "authentication failed")
	}
	ok, err := CheckPassword(password, u.PasswordHash, u.Salt)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "check password for %s: %v", username, err)
	}
	if !ok {
		v.log.Info("incorrect password", logx.String("username", username))
		return nil, apperr.New(apperr.Unauthenticated, "authentication failed")
	}
	role, err := models.ParseRole(string(u.Role))
	if err != nil {
		return nil, apperr.New(apperr.Internal, "user %s: %v", username, err)
	}
	return &Principal{Username: u.Username, Role: role}, nil
}
