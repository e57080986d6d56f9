// Package cli is the interactive operator menu.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"yt_multi_account/internal/domain"
	"yt_multi_account/internal/usecase"
)

// Accounts is the account surface the menu drives
type Accounts interface {
	Accounts() ([]domain.Account, error)
	AuthURL(name string) (string, error)
	Authorize(ctx context.Context, name, code string) (domain.Account, error)
	LinkBrowserSession(ctx context.Context, name string) error
}

// Menu loops over the operator choices until exit or end of input
type Menu struct {
	in       *bufio.Reader
	out      io.Writer
	accounts Accounts
	batches  *usecase.BatchService
}

// NewMenu creates a menu reading from in and writing to out
func NewMenu(in io.Reader, out io.Writer, accounts Accounts, batches *usecase.BatchService) *Menu {
	return &Menu{
		in:       bufio.NewReader(in),
		out:      out,
		accounts: accounts,
		batches:  batches,
	}
}

const menuText = `
1) Authorize account
2) Post comment
3) Like comment
4) List accounts
5) Exit
`

// Run shows the menu until the operator exits. End of input exits cleanly.
func (m *Menu) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		fmt.Fprint(m.out, menuText)
		choice, err := m.prompt("Choose an option")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch choice {
		case "1":
			err = m.authorize(ctx)
		case "2":
			err = m.comment(ctx)
		case "3":
			err = m.like(ctx)
		case "4":
			err = m.listAccounts()
		case "5", "q", "exit":
			fmt.Fprintln(m.out, "Bye.")
			return nil
		default:
			fmt.Fprintf(m.out, "Unknown option %q\n", choice)
			continue
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(m.out, "Error: %v\n", err)
		}
	}
	return ctx.Err()
}

func (m *Menu) prompt(label string) (string, error) {
	fmt.Fprintf(m.out, "%s: ", label)
	line, err := m.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (m *Menu) authorize(ctx context.Context) error {
	name, err := m.prompt("Account name")
	if err != nil {
		return err
	}
	url, err := m.accounts.AuthURL(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Open this URL, approve access, and paste the code:\n%s\n", url)

	code, err := m.prompt("Authorization code")
	if err != nil {
		return err
	}
	if _, err := m.accounts.Authorize(ctx, name, code); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Account %s authorized.\n", name)

	answer, err := m.prompt("Sign in the browser profile now? [y/N]")
	if err != nil {
		return err
	}
	if strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes") {
		if err := m.accounts.LinkBrowserSession(ctx, name); err != nil {
			return err
		}
		fmt.Fprintf(m.out, "Browser session for %s saved.\n", name)
	}
	return nil
}

func (m *Menu) comment(ctx context.Context) error {
	accounts, err := m.promptAccounts()
	if err != nil {
		return err
	}
	video, err := m.prompt("Video URL or ID")
	if err != nil {
		return err
	}
	text, err := m.prompt("Comment text")
	if err != nil {
		return err
	}
	batches, err := m.promptPacing()
	if err != nil {
		return err
	}

	run, err := batches.CommentBatch(ctx, accounts, video, text)
	m.report(run)
	return err
}

func (m *Menu) like(ctx context.Context) error {
	accounts, err := m.promptAccounts()
	if err != nil {
		return err
	}
	url, err := m.prompt("Comment URL (with lc=)")
	if err != nil {
		return err
	}
	batches, err := m.promptPacing()
	if err != nil {
		return err
	}

	run, err := batches.LikeBatch(ctx, accounts, url)
	m.report(run)
	return err
}

func (m *Menu) promptAccounts() ([]string, error) {
	line, err := m.prompt("Accounts (comma separated, blank for all)")
	if err != nil {
		return nil, err
	}
	if line == "" {
		return nil, nil
	}
	return strings.Split(line, ","), nil
}

func (m *Menu) promptPacing() (*usecase.BatchService, error) {
	current := m.batches.Pacing()
	line, err := m.prompt(fmt.Sprintf("Delay between accounts [%s]", current.Delay))
	if err != nil {
		return nil, err
	}
	if line == "" {
		return m.batches, nil
	}
	if !strings.ContainsAny(line, "hms") {
		line += "s"
	}
	delay, err := time.ParseDuration(line)
	if err != nil || delay < 0 {
		return nil, fmt.Errorf("invalid delay %q", line)
	}
	current.Delay = delay
	return m.batches.WithPacing(current), nil
}

func (m *Menu) report(run *domain.Run) {
	if run == nil {
		return
	}
	for _, res := range run.Results {
		fmt.Fprintln(m.out, res.String())
	}
	fmt.Fprintf(m.out, "%d/%d succeeded.\n", run.Succeeded(), len(run.Results))
}

func (m *Menu) listAccounts() error {
	accounts, err := m.accounts.Accounts()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Fprintln(m.out, "No accounts yet.")
		return nil
	}
	for _, acc := range accounts {
		status := "ready"
		switch {
		case !acc.HasCredential:
			status = "missing credential"
		case !acc.HasProfile:
			status = "missing browser profile"
		}
		fmt.Fprintf(m.out, "- %s (%s)\n", acc.Name, status)
	}
	return nil
}
