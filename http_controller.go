package identity

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

// Controller exposes the HTTP surface of the identity service. It owns no
// business rules: payloads are validated, the authenticator does the work,
// and the translator shapes whatever comes back.
type Controller struct {
	auth       Authenticator
	repo       RepositoryManager
	translator *ErrorTranslator
	logger     Logger
	contextKey string
}

// NewController creates the HTTP controller.
func NewController(auth Authenticator, repo RepositoryManager, translator *ErrorTranslator) *Controller {
	return &Controller{
		auth:       auth,
		repo:       repo,
		translator: translator,
		logger:     defLogger{},
		contextKey: "user",
	}
}

func (a *Controller) WithLogger(logger Logger) *Controller {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithContextKey overrides the request-local key the gate stores claims under.
func (a *Controller) WithContextKey(key string) *Controller {
	if key != "" {
		a.contextKey = key
	}
	return a
}

// LoginPayload is the login request body. Identifier can be an email, a
// username, a phone number, or a user id; the store resolves which.
type LoginPayload struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Validate will run validation rules for the payload
func (l LoginPayload) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Identifier, validation.Required),
		validation.Field(&l.Password, validation.Required),
	)
}

// RegisterCreate handles POST /auth/register.
func (a *Controller) RegisterCreate(c *fiber.Ctx) error {
	var msg RegisterUserMessage
	if err := c.BodyParser(&msg); err != nil {
		return a.translator.WriteError(c, errors.Wrap(err, errors.CategoryBadInput, "malformed request body").
			WithCode(errors.CodeBadRequest))
	}

	user, token, err := a.auth.Register(c.UserContext(), msg)
	if err != nil {
		return a.translator.WriteError(c, err)
	}

	return JSONSuccess(c, fiber.StatusCreated, "user registered", fiber.Map{
		"user":  user,
		"token": token,
	})
}

// LoginPost handles POST /auth/login.
func (a *Controller) LoginPost(c *fiber.Ctx) error {
	var payload LoginPayload
	if err := c.BodyParser(&payload); err != nil {
		return a.translator.WriteError(c, errors.Wrap(err, errors.CategoryBadInput, "malformed request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.translator.WriteError(c, errors.Wrap(err, errors.CategoryValidation, "invalid login payload").
			WithCode(errors.CodeBadRequest))
	}

	user, token, err := a.auth.Login(c.UserContext(), payload.Identifier, payload.Password)
	if err != nil {
		return a.translator.WriteError(c, err)
	}

	return JSONSuccess(c, fiber.StatusOK, "login successful", fiber.Map{
		"user":  user,
		"token": token,
	})
}

// MeShow handles GET /me. The gate has already verified the token; here we
// only hydrate the principal from the store.
func (a *Controller) MeShow(c *fiber.Ctx) error {
	claims, err := a.requestClaims(c)
	if err != nil {
		return a.translator.WriteError(c, err)
	}

	user, err := a.repo.Users().GetByIdentifier(c.UserContext(), claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return a.translator.WriteError(c, ErrIdentityNotFound)
		}
		return a.translator.WriteError(c, errors.Wrap(err, errors.CategoryOperation, "failed to load current user"))
	}

	return JSONSuccess(c, fiber.StatusOK, "", fiber.Map{
		"user": user.Sanitized(),
	})
}

// AdminDashboardShow handles GET /admin/dashboard. The gate only lets ADMIN
// principals through, so the handler can stay a plain success payload.
func (a *Controller) AdminDashboardShow(c *fiber.Ctx) error {
	claims, err := a.requestClaims(c)
	if err != nil {
		return a.translator.WriteError(c, err)
	}

	return JSONSuccess(c, fiber.StatusOK, "", fiber.Map{
		"dashboard": fiber.Map{
			"viewer": claims.Handle(),
			"role":   claims.Role(),
		},
	})
}

// UsersProfileShow handles GET /users/profile, open to every known role.
func (a *Controller) UsersProfileShow(c *fiber.Ctx) error {
	claims, err := a.requestClaims(c)
	if err != nil {
		return a.translator.WriteError(c, err)
	}

	user, err := a.repo.Users().GetByIdentifier(c.UserContext(), claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return a.translator.WriteError(c, ErrIdentityNotFound)
		}
		return a.translator.WriteError(c, errors.Wrap(err, errors.CategoryOperation, "failed to load profile"))
	}

	return JSONSuccess(c, fiber.StatusOK, "", fiber.Map{
		"profile": user.Sanitized(),
	})
}

// HealthShow handles GET /health. No credentials, no store access: probes
// must succeed even when everything behind the gate is broken.
func (a *Controller) HealthShow(c *fiber.Ctx) error {
	return JSONSuccess(c, fiber.StatusOK, "", fiber.Map{
		"status": "ok",
	})
}

// requestClaims pulls the verified claims the gate stored for this request.
// A protected handler running without claims means the route table let an
// unauthenticated request through, which is a configuration bug, but we
// still answer with the generic authentication failure.
func (a *Controller) requestClaims(c *fiber.Ctx) (AuthClaims, error) {
	if claims, ok := c.Locals(a.contextKey).(AuthClaims); ok && claims != nil {
		return claims, nil
	}

	a.logger.Error("protected handler reached without verified claims", "method", c.Method(), "path", c.Path())

	return nil, errors.New("Missing or Invalid Token", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode("UNAUTHORIZED")
}
