package usecase

import (
	"context"
	"fmt"
	"strings"

	"yt_multi_account/internal/domain"
	"yt_multi_account/internal/identifier"
)

// Executor runs a prepared batch
type Executor interface {
	Execute(ctx context.Context, reqs []domain.ActionRequest, pacing domain.PacingPolicy) (*domain.Run, error)
}

// AccountLister returns the names of authenticated accounts
type AccountLister interface {
	Authenticated() ([]string, error)
}

// BatchService turns operator input into a batch and runs it
type BatchService struct {
	executor Executor
	accounts AccountLister
	pacing   domain.PacingPolicy
}

// NewBatchService creates a BatchService that paces with pacing by default
func NewBatchService(executor Executor, accounts AccountLister, pacing domain.PacingPolicy) *BatchService {
	return &BatchService{
		executor: executor,
		accounts: accounts,
		pacing:   pacing,
	}
}

// WithPacing returns a copy of the service using pacing
func (s *BatchService) WithPacing(pacing domain.PacingPolicy) *BatchService {
	cp := *s
	cp.pacing = pacing
	return &cp
}

// Pacing returns the policy batches run with
func (s *BatchService) Pacing() domain.PacingPolicy {
	return s.pacing
}

// CommentBatch posts text on the video from every listed account. An empty
// account list selects all authenticated accounts.
func (s *BatchService) CommentBatch(ctx context.Context, accounts []string, rawVideo, text string) (*domain.Run, error) {
	video, err := identifier.NormalizeVideoID(rawVideo)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("comment text is required")
	}
	accounts, err = s.selectAccounts(accounts)
	if err != nil {
		return nil, err
	}

	reqs := make([]domain.ActionRequest, 0, len(accounts))
	for _, name := range accounts {
		reqs = append(reqs, domain.ActionRequest{
			Account: name,
			Kind:    domain.ActionComment,
			VideoID: video,
			Text:    text,
		})
	}
	return s.executor.Execute(ctx, reqs, s.pacing)
}

// LikeBatch likes the comment at rawURL from every listed account. An empty
// account list selects all authenticated accounts.
func (s *BatchService) LikeBatch(ctx context.Context, accounts []string, rawURL string) (*domain.Run, error) {
	id, err := identifier.NormalizeCommentID(rawURL)
	if err != nil {
		return nil, err
	}
	target := identifier.CanonicalCommentURL(rawURL, id)
	accounts, err = s.selectAccounts(accounts)
	if err != nil {
		return nil, err
	}

	reqs := make([]domain.ActionRequest, 0, len(accounts))
	for _, name := range accounts {
		reqs = append(reqs, domain.ActionRequest{
			Account:    name,
			Kind:       domain.ActionLike,
			CommentURL: target,
			CommentID:  id,
		})
	}
	return s.executor.Execute(ctx, reqs, s.pacing)
}

func (s *BatchService) selectAccounts(accounts []string) ([]string, error) {
	selected := make([]string, 0, len(accounts))
	for _, name := range accounts {
		if name = strings.TrimSpace(name); name != "" {
			selected = append(selected, name)
		}
	}
	if len(selected) > 0 {
		return selected, nil
	}

	all, err := s.accounts.Authenticated()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: no authenticated accounts", domain.ErrAccountNotFound)
	}
	return all, nil
}
