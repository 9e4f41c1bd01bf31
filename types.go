package identity

import (
	"context"
	"fmt"
	"strings"
)

// Logger takes a message plus slog-style key value pairs, so an injected
// structured logger (glog) and the fallback render the same call sites.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Register(ctx context.Context, msg RegisterUserMessage) (*User, string, error)
	Login(ctx context.Context, identifier, password string) (*User, string, error)
	TokenService() TokenService
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Printf("[ERR] IDENTITY %s%s\n", msg, formatAttrs(args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Printf("[WRN] IDENTITY %s%s\n", msg, formatAttrs(args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Printf("[INF] IDENTITY %s%s\n", msg, formatAttrs(args))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Printf("[DBG] IDENTITY %s%s\n", msg, formatAttrs(args))
}

// formatAttrs renders slog-style trailing args as " k=v" pairs; a dangling
// odd argument is printed bare.
func formatAttrs(args []any) string {
	if len(args) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return b.String()
}
