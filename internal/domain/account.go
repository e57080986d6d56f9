package domain

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Account represents one independently authenticated identity.
// An account is authenticated only when both its credential record and its
// browser profile exist.
type Account struct {
	// Name is the human-chosen unique key for the account
	Name string

	// HasCredential indicates a stored OAuth token record exists
	HasCredential bool

	// HasProfile indicates a browser profile directory exists
	HasProfile bool
}

// Authenticated reports whether both account artifacts exist.
func (a Account) Authenticated() bool {
	return a.HasCredential && a.HasProfile
}

// CredentialRecord is the persisted OAuth token bundle for one account.
// Expiry is stored as epoch milliseconds under expiry_date.
type CredentialRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type,omitempty"`

	// ExpiryDate is the access token expiry in unix milliseconds (0 = unknown)
	ExpiryDate int64 `json:"expiry_date,omitempty"`
}

// Token converts the record into an oauth2 token usable by an HTTP client.
func (r CredentialRecord) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
	}
	if r.ExpiryDate > 0 {
		tok.Expiry = time.UnixMilli(r.ExpiryDate)
	}
	return tok
}

// CredentialFromToken builds a record from a freshly exchanged oauth2 token.
func CredentialFromToken(tok *oauth2.Token) CredentialRecord {
	rec := CredentialRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		rec.Scope = scope
	}
	if !tok.Expiry.IsZero() {
		rec.ExpiryDate = tok.Expiry.UnixMilli()
	}
	return rec
}

// ValidateAccountName rejects names that cannot be used as store keys.
func ValidateAccountName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidAccountName)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: name cannot contain '..'", ErrInvalidAccountName)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: name cannot contain '/' or '\\'", ErrInvalidAccountName)
	}
	return nil
}

// CredentialStore defines persistence for per-account credential records
type CredentialStore interface {
	// List returns account names with a stored record, sorted
	List() ([]string, error)

	// Load returns the record for an account or ErrAccountNotFound
	Load(account string) (CredentialRecord, error)

	// Save creates or overwrites the record for an account
	Save(account string, record CredentialRecord) error
}

// ProfileStore defines persistence for per-account browser profiles
type ProfileStore interface {
	// Ensure creates the profile directory if absent and returns its path
	Ensure(account string) (string, error)

	// Exists reports whether a profile directory exists for the account
	Exists(account string) (bool, error)

	// List returns account names with an existing profile, sorted
	List() ([]string, error)
}
