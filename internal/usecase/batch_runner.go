package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"yt_multi_account/internal/domain"
	"yt_multi_account/internal/identifier"
	"yt_multi_account/internal/logger"
	"yt_multi_account/internal/metrics"
)

// CommentPoster creates a top-level comment with the given credential
type CommentPoster interface {
	PostComment(ctx context.Context, record domain.CredentialRecord, video domain.VideoID, text string) (domain.CommentID, error)
}

// CommentLiker likes a comment using the given browser profile
type CommentLiker interface {
	LikeComment(ctx context.Context, profile, commentURL string, id domain.CommentID) (alreadyLiked bool, err error)
}

// BatchRunner executes action requests one account at a time.
// A failing account never stops the queue; only an unreadable store does.
// Concurrent Execute calls queue behind each other so no two batches drive
// the same browser profile at once.
type BatchRunner struct {
	creds    domain.CredentialStore
	profiles domain.ProfileStore
	poster   CommentPoster
	liker    CommentLiker

	journal domain.RunRepository
	metrics *metrics.Recorder
	retry   RetryPolicy

	sleep  SleepFunc
	now    func() time.Time
	jitter func(max time.Duration) time.Duration

	slot chan struct{}
}

// RunnerOption customises a BatchRunner
type RunnerOption func(*BatchRunner)

// WithJournal records every finished batch in repo
func WithJournal(repo domain.RunRepository) RunnerOption {
	return func(r *BatchRunner) { r.journal = repo }
}

// WithMetrics reports outcomes to rec
func WithMetrics(rec *metrics.Recorder) RunnerOption {
	return func(r *BatchRunner) { r.metrics = rec }
}

// WithRetry enables re-dispatch of transient browser failures
func WithRetry(p RetryPolicy) RunnerOption {
	return func(r *BatchRunner) { r.retry = p }
}

// WithSleep replaces the wait primitive used for pacing and backoff
func WithSleep(fn SleepFunc) RunnerOption {
	return func(r *BatchRunner) { r.sleep = fn }
}

// WithClock replaces the time source for result timestamps
func WithClock(now func() time.Time) RunnerOption {
	return func(r *BatchRunner) { r.now = now }
}

// WithJitter replaces the random source for pacing jitter
func WithJitter(fn func(max time.Duration) time.Duration) RunnerOption {
	return func(r *BatchRunner) { r.jitter = fn }
}

// NewBatchRunner creates a BatchRunner
func NewBatchRunner(
	creds domain.CredentialStore,
	profiles domain.ProfileStore,
	poster CommentPoster,
	liker CommentLiker,
	opts ...RunnerOption,
) *BatchRunner {
	r := &BatchRunner{
		creds:    creds,
		profiles: profiles,
		poster:   poster,
		liker:    liker,
		sleep:    sleepCtx,
		now:      time.Now,
		jitter:   uniformJitter,
		slot:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}

// Run executes reqs in order and returns one result per request.
func (r *BatchRunner) Run(ctx context.Context, reqs []domain.ActionRequest, pacing domain.PacingPolicy) ([]domain.ActionResult, error) {
	run, err := r.Execute(ctx, reqs, pacing)
	if run == nil {
		return nil, err
	}
	return run.Results, err
}

// Execute is Run returning the journal entry for the batch. On a fatal
// store error the run holds the results collected so far.
func (r *BatchRunner) Execute(ctx context.Context, reqs []domain.ActionRequest, pacing domain.PacingPolicy) (*domain.Run, error) {
	run := &domain.Run{
		ID:      uuid.NewString(),
		Results: make([]domain.ActionResult, 0, len(reqs)),
	}
	if len(reqs) > 0 {
		run.Kind = reqs[0].Kind
	}

	// A caller cancelled while queued gets every request back as skipped
	select {
	case r.slot <- struct{}{}:
		defer func() { <-r.slot }()
	case <-ctx.Done():
		logger.Info().Printf("batch %s cancelled while waiting for the running batch", run.ID)
	}
	run.StartedAt = r.now()
	logger.Info().Printf("batch %s started: %d %s action(s)", run.ID, len(reqs), run.Kind)

	var fatal error
	for i, req := range reqs {
		if i > 0 && ctx.Err() == nil {
			wait := pacing.Delay + r.jitter(pacing.Jitter)
			if wait > 0 {
				logger.Info().Printf("batch %s: waiting %s before %s", run.ID, wait.Round(time.Millisecond), req.Account)
				_ = r.sleep(ctx, wait)
			}
		}

		if ctx.Err() != nil {
			for _, rest := range reqs[i:] {
				res := r.resolved(rest, domain.OutcomeSkipped, fmt.Sprintf("batch cancelled: %v", ctx.Err()), r.now())
				res.Attempts = 0
				run.Results = append(run.Results, res)
			}
			break
		}

		res, err := r.dispatchWithRetry(ctx, req)
		if err != nil {
			fatal = fmt.Errorf("batch %s aborted at account %s: %w", run.ID, req.Account, err)
			break
		}
		run.Results = append(run.Results, res)
	}
	run.FinishedAt = r.now()

	r.finish(run)
	return run, fatal
}

func (r *BatchRunner) dispatchWithRetry(ctx context.Context, req domain.ActionRequest) (domain.ActionResult, error) {
	started := r.now()
	attempt := 1
	for {
		res, err := r.dispatch(ctx, req)
		if err != nil {
			return res, err
		}
		res.Attempts = attempt
		res.StartedAt = started

		if res.Succeeded || !retryable(res.Outcome) || attempt > r.retry.MaxRetries || ctx.Err() != nil {
			return res, nil
		}

		wait := r.retry.backoff(attempt)
		logger.Info().Printf("account %s: %s, retrying in %s", req.Account, res.Outcome, wait)
		if err := r.sleep(ctx, wait); err != nil {
			return res, nil
		}
		attempt++
	}
}

// dispatch resolves one request. The error return is reserved for store
// failures that make the rest of the batch meaningless.
func (r *BatchRunner) dispatch(ctx context.Context, req domain.ActionRequest) (domain.ActionResult, error) {
	start := r.now()
	switch req.Kind {
	case domain.ActionComment:
		return r.comment(ctx, req, start)
	case domain.ActionLike:
		return r.like(ctx, req, start)
	default:
		return r.resolved(req, domain.OutcomeInvalidIdentifier, fmt.Sprintf("unknown action %q", req.Kind), start), nil
	}
}

func (r *BatchRunner) comment(ctx context.Context, req domain.ActionRequest, start time.Time) (domain.ActionResult, error) {
	video, err := identifier.NormalizeVideoID(string(req.VideoID))
	if err != nil {
		return r.resolved(req, domain.OutcomeInvalidIdentifier, err.Error(), start), nil
	}
	req.VideoID = video
	if strings.TrimSpace(req.Text) == "" {
		return r.resolved(req, domain.OutcomeInvalidInput, "comment text is empty", start), nil
	}

	record, err := r.creds.Load(req.Account)
	if res, fatal, done := r.accountError(req, err, start); done {
		return res, fatal
	}

	id, err := r.poster.PostComment(ctx, record, video, req.Text)
	if err != nil {
		return r.resolved(req, domain.OutcomeAPIError, err.Error(), start), nil
	}

	res := r.resolved(req, domain.OutcomeSuccess, string(id), start)
	res.Succeeded = true
	return res, nil
}

func (r *BatchRunner) like(ctx context.Context, req domain.ActionRequest, start time.Time) (domain.ActionResult, error) {
	if req.CommentURL == "" || req.CommentID == "" {
		return r.resolved(req, domain.OutcomeInvalidIdentifier, "comment URL is required", start), nil
	}
	id, err := identifier.NormalizeCommentID(req.CommentURL)
	if err != nil {
		return r.resolved(req, domain.OutcomeInvalidIdentifier, err.Error(), start), nil
	}
	if id != req.CommentID {
		return r.resolved(req, domain.OutcomeInvalidIdentifier,
			fmt.Sprintf("comment URL targets %s, not %s", id, req.CommentID), start), nil
	}

	_, err = r.creds.Load(req.Account)
	if res, fatal, done := r.accountError(req, err, start); done {
		return res, fatal
	}
	exists, err := r.profiles.Exists(req.Account)
	if res, fatal, done := r.accountError(req, err, start); done {
		return res, fatal
	}
	if !exists {
		return r.resolved(req, domain.OutcomeAccountNotFound, "no browser profile; sign in first", start), nil
	}
	profile, err := r.profiles.Ensure(req.Account)
	if err != nil {
		return domain.ActionResult{}, fmt.Errorf("profile for %s: %w", req.Account, err)
	}

	already, err := r.liker.LikeComment(ctx, profile, req.CommentURL, req.CommentID)
	if err != nil {
		var likeErr *LikeError
		if errors.As(err, &likeErr) {
			detail := string(likeErr.Outcome)
			if likeErr.Err != nil {
				detail = likeErr.Err.Error()
			}
			return r.resolved(req, likeErr.Outcome, detail, start), nil
		}
		return r.resolved(req, domain.OutcomeUnconfirmed, err.Error(), start), nil
	}

	detail := "liked"
	if already {
		detail = "already liked"
	}
	res := r.resolved(req, domain.OutcomeSuccess, detail, start)
	res.Succeeded = true
	return res, nil
}

// accountError converts a store lookup error. done is false when err is nil;
// fatal is set for errors other than a missing, misnamed or undecodable
// account record.
func (r *BatchRunner) accountError(req domain.ActionRequest, err error, start time.Time) (res domain.ActionResult, fatal error, done bool) {
	switch {
	case err == nil:
		return domain.ActionResult{}, nil, false
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrInvalidAccountName),
		errors.Is(err, domain.ErrCorruptCredential):
		return r.resolved(req, domain.OutcomeAccountNotFound, err.Error(), start), nil, true
	default:
		return domain.ActionResult{}, fmt.Errorf("account store: %w", err), true
	}
}

func (r *BatchRunner) resolved(req domain.ActionRequest, outcome domain.Outcome, detail string, start time.Time) domain.ActionResult {
	return domain.ActionResult{
		Account:    req.Account,
		Kind:       req.Kind,
		Target:     req.Target(),
		Outcome:    outcome,
		Detail:     detail,
		Attempts:   1,
		StartedAt:  start,
		FinishedAt: r.now(),
	}
}

// finish logs, measures and journals a completed run. None of it can fail
// the batch.
func (r *BatchRunner) finish(run *domain.Run) {
	for _, res := range run.Results {
		logger.Result(res)
		if r.metrics != nil {
			r.metrics.ObserveResult(res)
		}
	}
	if r.metrics != nil {
		r.metrics.ObserveBatch(run.Kind, run.FinishedAt.Sub(run.StartedAt))
	}
	if r.journal != nil {
		if err := r.journal.Save(run); err != nil {
			logger.Error().Printf("journal batch %s: %v", run.ID, err)
		}
	}
	logger.Info().Printf("batch %s finished: %d/%d succeeded", run.ID, run.Succeeded(), len(run.Results))
}
