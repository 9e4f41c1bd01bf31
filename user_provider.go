package identity

import (
	"context"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

// UserTracker is a store we can use to retrieve users
type UserTracker interface {
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
}

// userTrackerAdapter narrows the full Users repository to the UserTracker
// surface the provider needs.
type userTrackerAdapter struct {
	users Users
}

func (a userTrackerAdapter) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

// UserProvider resolves identifiers against the store and verifies passwords.
type UserProvider struct {
	store     UserTracker
	Validator func(*User) error
	logger    Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserTracker) *UserProvider {
	return &UserProvider{
		store:     store,
		logger:    defLogger{},
		Validator: defaultValidator,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

func (u *UserProvider) validate(user *User) error {
	if u.Validator != nil {
		return u.Validator(user)
	}
	return defaultValidator(user)
}

// VerifyIdentity will find the user, compare to the password, and return identity.
// An unknown identifier and a wrong password produce the exact same error so a
// caller cannot probe which handles are registered.
func (u UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to retrieve user during verification")
	}

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if user.PasswordHash == "" {
		return nil, ErrOAuthOnlyAccount
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	aid := authIdentity{
		id:       user.ID.String(),
		email:    user.Email,
		username: user.Username,
		role:     string(user.Role),
	}

	return aid, nil
}

// FindIdentityByIdentifier resolves an identifier without a password check.
func (u UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	aid := authIdentity{
		email:    user.Email,
		id:       user.ID.String(),
		username: user.Username,
		role:     string(user.Role),
	}

	return aid, nil
}

type authIdentity struct {
	id       string
	username string
	email    string
	role     string
}

func (a authIdentity) ID() string {
	return a.id
}

func (a authIdentity) Username() string {
	return a.username
}

func (a authIdentity) Email() string {
	return a.email
}

func (a authIdentity) Role() string {
	return a.role
}

var _ Identity = authIdentity{}

func defaultValidator(u *User) error {
	if IsValidRole(u.Role) {
		return nil
	}
	return errors.New("user has an unknown or invalid role", errors.CategoryAuth).
		WithTextCode("INVALID_ROLE").
		WithMetadata(map[string]any{"role": u.Role, "user_id": u.ID.String()})
}
