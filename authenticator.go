package identity

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// Auther orchestrates registration and login against the identity store.
// All collaborators are fixed at construction; instances are safe to share
// across requests.
type Auther struct {
	repo            RepositoryManager
	provider        IdentityProvider
	signingKey      []byte
	tokenExpiration int
	issuer          string
	logger          Logger
	tokenService    TokenService
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, cfg *Config) *Auther {
	tokenService := NewTokenService(
		[]byte(cfg.JWTSecret),
		cfg.TokenExpiration,
		cfg.Issuer,
		nil,
		defLogger{},
	)

	return &Auther{
		repo:            repo,
		provider:        NewUserProvider(userTrackerAdapter{users: repo.Users()}),
		signingKey:      []byte(cfg.JWTSecret),
		tokenExpiration: cfg.TokenExpiration,
		issuer:          cfg.Issuer,
		logger:          defLogger{},
		tokenService:    tokenService,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	s.tokenService = NewTokenService(
		s.signingKey,
		s.tokenExpiration,
		s.issuer,
		nil,
		logger,
	)
	return s
}

// WithIdentityProvider sets a custom IdentityProvider for the Auther.
func (s *Auther) WithIdentityProvider(provider IdentityProvider) *Auther {
	s.provider = provider
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// RegisterUserMessage is the input for user registration
type RegisterUserMessage struct {
	FullName     string `json:"full_name"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	CountryCode  string `json:"country_code"`
	MobileNumber string `json:"mobile_number"`
	Role         string `json:"role"`
	Password     string `json:"password"`
}

// Validate will run validation rules. Self-assigned elevated roles are
// rejected here: open registration only ever produces USER accounts, and
// promotion is an administrative operation this service does not expose.
func (r RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Username, validation.Length(3, 50)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&r.MobileNumber, validation.By(validPhoneWith(r.CountryCode))),
		validation.Field(&r.Role, validation.In(RoleUser)),
	)
}

// Register creates a new user, hashing before any persistence so a failure can
// never leave a plaintext password behind, and issues a credential token bound
// to the new user's id, role, and handle. The store's unique constraints are
// the authority on duplicates; the pre-check only produces friendlier errors.
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*User, string, error) {
	if err := msg.Validate(); err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload").
			WithCode(goerrors.CodeBadRequest)
	}

	countryCode, mobileNumber := normalizePhone(msg.CountryCode, msg.MobileNumber)

	if existing, err := s.repo.Users().FindByAnyHandle(ctx, msg.Email, msg.Username, countryCode, mobileNumber); err == nil && existing != nil {
		return nil, "", NewDuplicateIdentityError(matchedHandleField(existing, msg.Email, msg.Username, mobileNumber))
	} else if err != nil && !repository.IsRecordNotFound(err) {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryOperation, "failed to check for existing user")
	}

	hash, err := HashPassword(msg.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, "", goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		FullName:     strings.TrimSpace(msg.FullName),
		Username:     strings.TrimSpace(msg.Username),
		Email:        strings.TrimSpace(msg.Email),
		CountryCode:  countryCode,
		MobileNumber: mobileNumber,
		PasswordHash: hash,
		Role:         RoleUser,
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := s.repo.Users().CreateTx(ctx, tx, user)
		if err != nil {
			if IsUniqueViolation(err) {
				return NewDuplicateIdentityError(UniqueViolationField(err))
			}
			return goerrors.Wrap(err, goerrors.CategoryOperation, "could not create user")
		}
		user = created
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, "", richErr
		}
		return nil, "", goerrors.Wrap(err, goerrors.CategoryOperation, "user registration transaction failed")
	}

	token, err := s.tokenService.Generate(identityFromUser(user))
	if err != nil {
		s.logger.Error("Register failed to generate token", "error", err)
		return nil, "", err
	}

	return user.Sanitized(), token, nil
}

// Login verifies the identifier/password pair and issues a credential token.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*User, string, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Info("Login verify identity rejected", "error", err)
		return nil, "", err
	}

	if identity == nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("Login failed to generate token", "error", err)
		return nil, "", err
	}

	user, err := s.repo.Users().GetByIdentifier(ctx, identity.ID())
	if err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load user after verification")
	}

	return user.Sanitized(), token, nil
}

func identityFromUser(user *User) Identity {
	return authIdentity{
		id:       user.ID.String(),
		email:    user.Email,
		username: user.Username,
		role:     string(user.Role),
	}
}

func matchedHandleField(existing *User, email, username, mobileNumber string) string {
	switch {
	case existing.Email == email:
		return "email"
	case username != "" && existing.Username == username:
		return "username"
	case mobileNumber != "" && existing.MobileNumber == mobileNumber:
		return "mobile_number"
	default:
		return "user"
	}
}

// normalizePhone validates and splits a phone handle into the stored
// country_code / mobile_number pair. Invalid or absent input yields empties;
// validity itself is enforced by the payload rules.
func normalizePhone(countryCode, mobileNumber string) (string, string) {
	if countryCode == "" || mobileNumber == "" {
		return "", ""
	}

	prefix := "+" + strings.TrimLeft(countryCode, "+")
	num, err := phonenumbers.Parse(prefix+mobileNumber, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ""
	}

	return prefix, phonenumbers.GetNationalSignificantNumber(num)
}

func validPhoneWith(countryCode string) validation.RuleFunc {
	return func(value any) error {
		mobile, _ := value.(string)
		if mobile == "" {
			return nil
		}
		if countryCode == "" {
			return goerrors.New("country_code is required with mobile_number", goerrors.CategoryValidation)
		}
		num, err := phonenumbers.Parse("+"+strings.TrimLeft(countryCode, "+")+mobile, "")
		if err != nil || !phonenumbers.IsValidNumber(num) {
			return goerrors.New("must be a valid phone number", goerrors.CategoryValidation)
		}
		return nil
	}
}
