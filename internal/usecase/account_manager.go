package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"yt_multi_account/internal/domain"
	"yt_multi_account/internal/infrastructure/browser"
	"yt_multi_account/internal/logger"
)

// Authorizer runs the OAuth consent-code flow
type Authorizer interface {
	AuthURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (domain.CredentialRecord, error)
}

// AccountManager manages the credential record and browser profile of
// each account
type AccountManager struct {
	creds      domain.CredentialStore
	profiles   domain.ProfileStore
	authorizer Authorizer

	newBrowser    browser.Factory
	signInTimeout time.Duration
}

// NewAccountManager creates a new account manager. newBrowser may be nil
// when browser sign-in is not offered.
func NewAccountManager(
	creds domain.CredentialStore,
	profiles domain.ProfileStore,
	authorizer Authorizer,
	newBrowser browser.Factory,
	signInTimeout time.Duration,
) *AccountManager {
	return &AccountManager{
		creds:         creds,
		profiles:      profiles,
		authorizer:    authorizer,
		newBrowser:    newBrowser,
		signInTimeout: signInTimeout,
	}
}

// Accounts returns every name known to either store, sorted
func (m *AccountManager) Accounts() ([]domain.Account, error) {
	withCred, err := m.creds.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	withProfile, err := m.profiles.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	byName := make(map[string]*domain.Account)
	get := func(name string) *domain.Account {
		acc, ok := byName[name]
		if !ok {
			acc = &domain.Account{Name: name}
			byName[name] = acc
		}
		return acc
	}
	for _, name := range withCred {
		get(name).HasCredential = true
	}
	for _, name := range withProfile {
		get(name).HasProfile = true
	}

	accounts := make([]domain.Account, 0, len(byName))
	for _, acc := range byName {
		accounts = append(accounts, *acc)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

// Authenticated returns the names of accounts with both a credential and a profile
func (m *AccountManager) Authenticated() ([]string, error) {
	accounts, err := m.Accounts()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		if acc.Authenticated() {
			names = append(names, acc.Name)
		}
	}
	return names, nil
}

// AuthURL returns the consent page the operator opens to authorize name
func (m *AccountManager) AuthURL(name string) (string, error) {
	if err := domain.ValidateAccountName(name); err != nil {
		return "", err
	}
	return m.authorizer.AuthURL(uuid.NewString())
}

// Authorize exchanges code and stores both artifacts for name. The profile
// directory is created first so a stored credential always has a profile
// beside it.
func (m *AccountManager) Authorize(ctx context.Context, name, code string) (domain.Account, error) {
	if err := domain.ValidateAccountName(name); err != nil {
		return domain.Account{}, err
	}
	if code == "" {
		return domain.Account{}, fmt.Errorf("authorization code is required")
	}

	record, err := m.authorizer.Exchange(ctx, code)
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to exchange code for %s: %w", name, err)
	}
	if record.RefreshToken == "" {
		logger.Error().Printf("account %s: no refresh token returned; the credential will stop working when it expires", name)
	}

	if _, err := m.profiles.Ensure(name); err != nil {
		return domain.Account{}, fmt.Errorf("failed to create profile for %s: %w", name, err)
	}
	if err := m.creds.Save(name, record); err != nil {
		return domain.Account{}, fmt.Errorf("failed to save credential for %s: %w", name, err)
	}

	logger.Info().Printf("account %s authorized", name)
	return domain.Account{Name: name, HasCredential: true, HasProfile: true}, nil
}

// LinkBrowserSession opens a visible browser on the profile of name at the
// sign-in page and waits for the operator to finish signing in.
func (m *AccountManager) LinkBrowserSession(ctx context.Context, name string) error {
	if m.newBrowser == nil {
		return fmt.Errorf("browser sign-in is not available")
	}
	profile, err := m.profiles.Ensure(name)
	if err != nil {
		return fmt.Errorf("failed to create profile for %s: %w", name, err)
	}

	b := m.newBrowser()
	defer func() {
		if cerr := b.Close(); cerr != nil {
			logger.Error().Printf("close sign-in browser for %s: %v", name, cerr)
		}
	}()

	if err := b.Launch(ctx, browser.LaunchOptions{ProfileDir: profile, Visible: true}); err != nil {
		return fmt.Errorf("failed to launch browser for %s: %w", name, err)
	}
	if err := b.Goto(ctx, browser.SignInURL, m.signInTimeout); err != nil {
		return fmt.Errorf("failed to open sign-in page: %w", err)
	}

	logger.Info().Printf("account %s: waiting up to %s for sign-in", name, m.signInTimeout)
	if err := b.WaitFor(ctx, browser.SignedInIndicator, m.signInTimeout); err != nil {
		return fmt.Errorf("sign-in for %s not completed: %w", name, err)
	}

	logger.Info().Printf("account %s: browser session linked", name)
	return nil
}
