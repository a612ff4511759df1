package local

import (
	"context"

	authsync "github.com/goliatone/go-auth-sync"
	goerrors "github.com/goliatone/go-errors"
)

// Service is an in-process authsync.IdentityService on top of a Directory.
// Successful authentications are written to the credential store before
// AuthenticateWithPassword returns.
type Service struct {
	directory *Directory
	store     authsync.CredentialStore
}

var _ authsync.IdentityService = (*Service)(nil)

// NewService wires directory to store
func NewService(directory *Directory, store authsync.CredentialStore) *Service {
	return &Service{
		directory: directory,
		store:     store,
	}
}

func (s *Service) AuthenticateWithPassword(ctx context.Context, credential, secret string) (authsync.AuthResult, error) {
	result, err := s.directory.VerifyPassword(ctx, credential, secret)
	if err != nil {
		return authsync.AuthResult{}, err
	}

	if err := s.store.Save(result.Token, result.Identity); err != nil {
		return authsync.AuthResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store credentials")
	}

	return result, nil
}

func (s *Service) CreateAccount(ctx context.Context, msg authsync.RegisterAccountMessage) (authsync.Identity, error) {
	user, err := s.directory.CreateUser(ctx, msg)
	if err != nil {
		return nil, err
	}
	return user, nil
}
