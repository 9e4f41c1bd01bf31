package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// Users is the identity store: user lookup by handle plus creation. Uniqueness
// of handles is enforced by the table's unique constraints; callers treat
// IsUniqueViolation as the authoritative duplicate signal.
type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	FindByAnyHandle(ctx context.Context, email, username, countryCode, mobileNumber string) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	return a.CreateTx(ctx, tx, user)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

// GetByIdentifier resolves a single identifier against id, email, phone, and
// username columns in that order.
func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.getByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) getByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	options := resolveUserIdentifier(identifier)

	for _, opt := range options {
		record := &User{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

// FindByAnyHandle returns the first user matching any of the supplied handles.
// Used as the registration pre-check; the unique constraints remain the
// arbiter when two registrations race past it.
func (a *users) FindByAnyHandle(ctx context.Context, email, username, countryCode, mobileNumber string) (*User, error) {
	record := &User{}
	q := a.db.NewSelect().Model(record)

	q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("?TableAlias.email = ?", email)
		if username != "" {
			q = q.WhereOr("?TableAlias.username = ?", username)
		}
		if countryCode != "" && mobileNumber != "" {
			q = q.WhereOr("?TableAlias.country_code = ? AND ?TableAlias.mobile_number = ?", countryCode, mobileNumber)
		}
		return q
	})

	if err := q.Limit(1).Scan(ctx); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 4)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	if national, ok := nationalNumber(trimmed); ok {
		options = append(options, identifierOption{
			column: "mobile_number",
			value:  national,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}

// nationalNumber extracts the national significant number from an E.164
// identifier (leading +), matching how registration stores mobile_number.
func nationalNumber(identifier string) (string, bool) {
	if !strings.HasPrefix(identifier, "+") {
		return "", false
	}

	num, err := phonenumbers.Parse(identifier, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}

	return phonenumbers.GetNationalSignificantNumber(num), true
}

// IsUniqueViolation reports whether the store rejected a write because a
// unique constraint fired. Covers the sqlite and postgres phrasings.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// UniqueViolationField guesses which handle column a unique violation names,
// so the conflict can be field-attributed in the response.
func UniqueViolationField(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, column := range []string{"email", "username", "mobile_number"} {
		if strings.Contains(msg, column) {
			return column
		}
	}
	return "user"
}
