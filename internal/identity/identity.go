// Package identity carries the authenticated account through request context.
// Authentication itself is delegated to an external identity provider; this
// package only models the verified claims.
package identity

import (
	"context"
	"strings"
)

// Role classifies an account.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Account is the verified identity of the caller.
type Account struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Role      Role
}

// DisplayName returns the account's full name, with a placeholder first name
// when the profile is incomplete.
func (a Account) DisplayName() string {
	first := strings.TrimSpace(a.FirstName)
	if first == "" {
		first = "Patient"
	}
	return strings.TrimSpace(first + " " + strings.TrimSpace(a.LastName))
}

type ctxKey string

const accountKey ctxKey = "telehealth.account"

// WithAccount stores the account in context.
func WithAccount(ctx context.Context, acct Account) context.Context {
	return context.WithValue(ctx, accountKey, acct)
}

// AccountFromContext extracts the account if present.
func AccountFromContext(ctx context.Context) (Account, bool) {
	val := ctx.Value(accountKey)
	if val == nil {
		return Account{}, false
	}
	acct, ok := val.(Account)
	return acct, ok && acct.ID != ""
}
