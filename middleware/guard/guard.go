// Package guard is the per-request authentication and authorization gate.
// Every inbound request passes through it before any business handler: the
// matched route's policy decides public vs protected, the token validator
// decides authenticity, and the policy's role set decides authorization.
package guard

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

var (
	// ErrMissingOrMalformedToken covers every verification failure: absent
	// header, bad scheme, bad structure, bad signature, expired token. One
	// error, one message, so the response never reveals which it was.
	ErrMissingOrMalformedToken = errors.New("missing or malformed token")
	// ErrInsufficientRole is returned when a verified principal's role is not
	// in the route's allowed set. Equally generic: the accepted roles are not
	// disclosed.
	ErrInsufficientRole = errors.New("insufficient role")
)

// TokenValidator interface for validating tokens without import cycles.
// This mirrors the TokenService.Validate method from the identity package.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthClaims interface for structured claims without import cycles.
// This mirrors the AuthClaims interface from the identity package.
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	Handle() string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// Policy is the per-route access metadata, declared at startup and read-only
// afterwards. An empty Roles set means any authenticated principal.
type Policy struct {
	Public bool
	Roles  []string
}

// Policies maps "METHOD /path" route identifiers to their Policy. Routes with
// no entry are treated as protected: the gate is secure by default.
type Policies map[string]Policy

// Set registers a policy for a method and path.
func (p Policies) Set(method, path string, policy Policy) Policies {
	p[PolicyKey(method, path)] = policy
	return p
}

// Lookup returns the policy for a method and path.
func (p Policies) Lookup(method, path string) (Policy, bool) {
	policy, ok := p[PolicyKey(method, path)]
	return policy, ok
}

// PolicyKey builds the route identifier used by the policy table.
func PolicyKey(method, path string) string {
	path = strings.TrimSpace(path)
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + path
}

type Config struct {
	// Policies is the route policy table. Required.
	Policies Policies
	// TokenValidator is required for token validation.
	TokenValidator TokenValidator
	// ContextKey stores the verified claims in the request locals.
	ContextKey string
	// AuthScheme is the expected Authorization scheme. The bearer header is
	// the single authoritative credential carrier; there is no cookie
	// fallback by design.
	AuthScheme string
	// HealthPath always bypasses the gate so infrastructure probes never
	// need credentials.
	HealthPath string
	// ErrorHandler writes the rejection response.
	ErrorHandler fiber.ErrorHandler
	// ContextEnricher propagates claims to the standard Go context after
	// successful validation.
	ContextEnricher func(ctx context.Context, claims AuthClaims) context.Context
}

// New builds the gate middleware. The returned handler touches no shared
// mutable state beyond the read-only config, so it is safe under arbitrarily
// concurrent requests.
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	return func(c *fiber.Ctx) error {
		if c.Path() == cfg.HealthPath && c.Method() == fiber.MethodGet {
			return c.Next()
		}

		policy, known := cfg.Policies.Lookup(c.Method(), c.Path())
		if known && policy.Public {
			return c.Next()
		}

		raw, err := tokenFromHeader(c, cfg.AuthScheme)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.TokenValidator.Validate(raw)
		if err != nil {
			// collapse the validator's detail into the generic rejection
			return cfg.ErrorHandler(c, ErrMissingOrMalformedToken)
		}

		c.Locals(cfg.ContextKey, claims)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), claims))
		}

		if known && len(policy.Roles) > 0 && !roleAllowed(claims.Role(), policy.Roles) {
			return cfg.ErrorHandler(c, ErrInsufficientRole)
		}

		return c.Next()
	}
}

func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenValidator == nil {
		panic("GUARD: middleware configuration: TokenValidator is required.")
	}

	if cfg.Policies == nil {
		cfg.Policies = Policies{}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	return cfg
}

func tokenFromHeader(c *fiber.Ctx, authScheme string) (string, error) {
	a := c.Get(fiber.HeaderAuthorization)
	l := len(authScheme)
	if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
		return strings.TrimSpace(a[l:]), nil
	}
	return "", ErrMissingOrMalformedToken
}

func roleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// rejection mirrors the service's wire envelope without importing it.
type rejection struct {
	Success   bool           `json:"success"`
	Error     rejectionError `json:"error"`
	Timestamp string         `json:"timestamp"`
}

type rejectionError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusUnauthorized
	body := rejectionError{
		Type:    "AuthenticationError",
		Message: "Missing or Invalid Token",
	}

	if errors.Is(err, ErrInsufficientRole) {
		status = fiber.StatusForbidden
		body = rejectionError{
			Type:    "AuthorizationError",
			Message: "Insufficient Permissions",
		}
	}

	return c.Status(status).JSON(rejection{
		Success:   false,
		Error:     body,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
