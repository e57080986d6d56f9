package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt_multi_account/internal/domain"
	"yt_multi_account/internal/identifier"
	"yt_multi_account/internal/metrics"
	"yt_multi_account/internal/repository/filestore"
	"yt_multi_account/internal/repository/memory"
)

type fakeCredentials struct {
	records map[string]domain.CredentialRecord
	loadErr error
	saved   []string
}

func newFakeCredentials(names ...string) *fakeCredentials {
	f := &fakeCredentials{records: map[string]domain.CredentialRecord{}}
	for _, n := range names {
		f.records[n] = domain.CredentialRecord{AccessToken: "token-" + n}
	}
	return f
}

func (f *fakeCredentials) List() ([]string, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	names := make([]string, 0, len(f.records))
	for n := range f.records {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeCredentials) Load(account string) (domain.CredentialRecord, error) {
	if f.loadErr != nil {
		return domain.CredentialRecord{}, f.loadErr
	}
	rec, ok := f.records[account]
	if !ok {
		return domain.CredentialRecord{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, account)
	}
	return rec, nil
}

func (f *fakeCredentials) Save(account string, record domain.CredentialRecord) error {
	f.records[account] = record
	f.saved = append(f.saved, account)
	return nil
}

type fakeProfiles struct {
	dirs    map[string]bool
	ensured []string
}

func newFakeProfiles(names ...string) *fakeProfiles {
	f := &fakeProfiles{dirs: map[string]bool{}}
	for _, n := range names {
		f.dirs[n] = true
	}
	return f
}

func (f *fakeProfiles) Ensure(account string) (string, error) {
	f.dirs[account] = true
	f.ensured = append(f.ensured, account)
	return "/profiles/" + account, nil
}

func (f *fakeProfiles) Exists(account string) (bool, error) {
	return f.dirs[account], nil
}

func (f *fakeProfiles) List() ([]string, error) {
	names := make([]string, 0, len(f.dirs))
	for n := range f.dirs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

type fakePoster struct {
	fail  map[string]error
	calls []string
	texts []string
}

func (f *fakePoster) PostComment(_ context.Context, record domain.CredentialRecord, video domain.VideoID, text string) (domain.CommentID, error) {
	f.calls = append(f.calls, record.AccessToken)
	f.texts = append(f.texts, text)
	if err := f.fail[record.AccessToken]; err != nil {
		return "", err
	}
	return domain.CommentID("Ugz-" + string(video)), nil
}

type fakeLiker struct {
	// results maps profile path to a queue of errors, one per call
	results map[string][]error
	already map[string]bool
	calls   []string
}

func (f *fakeLiker) LikeComment(_ context.Context, profile, _ string, _ domain.CommentID) (bool, error) {
	f.calls = append(f.calls, profile)
	if q := f.results[profile]; len(q) > 0 {
		f.results[profile] = q[1:]
		if q[0] != nil {
			return false, q[0]
		}
	}
	return f.already[profile], nil
}

type recordingSleeper struct {
	mu     sync.Mutex
	waits  []time.Duration
	onCall func(n int)
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	n := len(s.waits)
	s.mu.Unlock()
	if s.onCall != nil {
		s.onCall(n)
	}
	return ctx.Err()
}

func fixedClock() func() time.Time {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var n int
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func commentRequests(text string, accounts ...string) []domain.ActionRequest {
	reqs := make([]domain.ActionRequest, 0, len(accounts))
	for _, a := range accounts {
		reqs = append(reqs, domain.ActionRequest{
			Account: a,
			Kind:    domain.ActionComment,
			VideoID: "dQw4w9WgXcQ",
			Text:    text,
		})
	}
	return reqs
}

func likeRequests(accounts ...string) []domain.ActionRequest {
	url := identifier.CommentURL("dQw4w9WgXcQ", testComment)
	reqs := make([]domain.ActionRequest, 0, len(accounts))
	for _, a := range accounts {
		reqs = append(reqs, domain.ActionRequest{
			Account:    a,
			Kind:       domain.ActionLike,
			CommentURL: url,
			CommentID:  testComment,
		})
	}
	return reqs
}

func newTestRunner(creds *fakeCredentials, profiles *fakeProfiles, poster CommentPoster, liker CommentLiker, sleeper *recordingSleeper, opts ...RunnerOption) *BatchRunner {
	base := []RunnerOption{
		WithSleep(sleeper.sleep),
		WithClock(fixedClock()),
		WithJitter(func(time.Duration) time.Duration { return 0 }),
	}
	return NewBatchRunner(creds, profiles, poster, liker, append(base, opts...)...)
}

func TestRunCommentsOneResultPerRequestInOrder(t *testing.T) {
	creds := newFakeCredentials("alice", "carol")
	poster := &fakePoster{}
	sleeper := &recordingSleeper{}
	runner := newTestRunner(creds, newFakeProfiles(), poster, &fakeLiker{}, sleeper)

	results, err := runner.Run(context.Background(), commentRequests("hello", "alice", "bob", "carol"), domain.PacingPolicy{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "alice", results[0].Account)
	assert.True(t, results[0].Succeeded)
	assert.Equal(t, "Ugz-dQw4w9WgXcQ", results[0].Detail)

	assert.Equal(t, "bob", results[1].Account)
	assert.False(t, results[1].Succeeded)
	assert.Equal(t, domain.OutcomeAccountNotFound, results[1].Outcome)

	assert.Equal(t, "carol", results[2].Account)
	assert.True(t, results[2].Succeeded)

	assert.Equal(t, []string{"token-alice", "token-carol"}, poster.calls)
	for _, res := range results {
		assert.Equal(t, 1, res.Attempts)
		assert.Equal(t, "dQw4w9WgXcQ", res.Target)
	}
}

func TestRunCommentAPIErrorDoesNotStopBatch(t *testing.T) {
	creds := newFakeCredentials("alice", "bob")
	poster := &fakePoster{fail: map[string]error{
		"token-alice": &domain.APIError{StatusCode: 403, Reason: "quotaExceeded", Message: "quota"},
	}}
	runner := newTestRunner(creds, newFakeProfiles(), poster, &fakeLiker{}, &recordingSleeper{},
		WithRetry(RetryPolicy{MaxRetries: 3, InitialWait: time.Second}))

	results, err := runner.Run(context.Background(), commentRequests("hi", "alice", "bob"), domain.PacingPolicy{})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeAPIError, results[0].Outcome)
	assert.Contains(t, results[0].Detail, "quotaExceeded")
	assert.Equal(t, 1, results[0].Attempts, "API errors are never retried")
	assert.True(t, results[1].Succeeded)
}

func TestRunRejectsInvalidIdentifiersBeforeDispatch(t *testing.T) {
	creds := newFakeCredentials("alice")
	poster := &fakePoster{}
	liker := &fakeLiker{}
	runner := newTestRunner(creds, newFakeProfiles("alice"), poster, liker, &recordingSleeper{})

	reqs := []domain.ActionRequest{
		{Account: "alice", Kind: domain.ActionComment, VideoID: "short", Text: "x"},
		{Account: "alice", Kind: domain.ActionLike, CommentURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", CommentID: testComment},
	}
	results, err := runner.Run(context.Background(), reqs, domain.PacingPolicy{})
	require.NoError(t, err)

	for _, res := range results {
		assert.Equal(t, domain.OutcomeInvalidIdentifier, res.Outcome)
	}
	assert.Empty(t, poster.calls)
	assert.Empty(t, liker.calls)
}

func TestRunPacingWaitsBetweenAccounts(t *testing.T) {
	creds := newFakeCredentials("a", "b", "c")
	sleeper := &recordingSleeper{}
	runner := newTestRunner(creds, newFakeProfiles(), &fakePoster{}, &fakeLiker{}, sleeper,
		WithJitter(func(max time.Duration) time.Duration { return max / 2 }))

	_, err := runner.Run(context.Background(), commentRequests("x", "a", "b", "c"),
		domain.PacingPolicy{Delay: 10 * time.Second, Jitter: 4 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{12 * time.Second, 12 * time.Second}, sleeper.waits)
}

func TestRunCancellationSkipsRemaining(t *testing.T) {
	creds := newFakeCredentials("a", "b", "c")
	poster := &fakePoster{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := &recordingSleeper{onCall: func(int) { cancel() }}
	runner := newTestRunner(creds, newFakeProfiles(), poster, &fakeLiker{}, sleeper)

	results, err := runner.Run(ctx, commentRequests("x", "a", "b", "c"), domain.PacingPolicy{Delay: time.Minute})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Succeeded)
	assert.Equal(t, domain.OutcomeSkipped, results[1].Outcome)
	assert.Equal(t, domain.OutcomeSkipped, results[2].Outcome)
	assert.Equal(t, 0, results[2].Attempts)
	assert.Len(t, poster.calls, 1)
}

func TestRunLikesRequireProfile(t *testing.T) {
	creds := newFakeCredentials("alice", "bob")
	profiles := newFakeProfiles("alice")
	liker := &fakeLiker{already: map[string]bool{"/profiles/alice": true}}
	runner := newTestRunner(creds, profiles, &fakePoster{}, liker, &recordingSleeper{})

	results, err := runner.Run(context.Background(), likeRequests("alice", "bob"), domain.PacingPolicy{})
	require.NoError(t, err)

	assert.True(t, results[0].Succeeded)
	assert.Equal(t, "already liked", results[0].Detail)
	assert.Equal(t, string(testComment), results[0].Target)

	assert.Equal(t, domain.OutcomeAccountNotFound, results[1].Outcome)
	assert.Equal(t, []string{"/profiles/alice"}, liker.calls)
	assert.NotContains(t, profiles.dirs, "bob", "a missing profile is never created by a like")
}

func TestRunRetriesOnlyBrowserStartupFailures(t *testing.T) {
	creds := newFakeCredentials("alice", "bob")
	liker := &fakeLiker{results: map[string][]error{
		"/profiles/alice": {
			&LikeError{Outcome: domain.OutcomeLaunchFailed, Err: errors.New("crash")},
			&LikeError{Outcome: domain.OutcomeNavigationTimeout, Err: errors.New("slow")},
		},
		"/profiles/bob": {
			&LikeError{Outcome: domain.OutcomeUnconfirmed, Err: errors.New("no signal")},
		},
	}}
	sleeper := &recordingSleeper{}
	runner := newTestRunner(creds, newFakeProfiles("alice", "bob"), &fakePoster{}, liker, sleeper,
		WithRetry(RetryPolicy{MaxRetries: 2, InitialWait: time.Second, Multiplier: 2}))

	results, err := runner.Run(context.Background(), likeRequests("alice", "bob"), domain.PacingPolicy{})
	require.NoError(t, err)

	assert.True(t, results[0].Succeeded)
	assert.Equal(t, 3, results[0].Attempts)

	assert.Equal(t, domain.OutcomeUnconfirmed, results[1].Outcome)
	assert.Equal(t, 1, results[1].Attempts)
	assert.Equal(t, "no signal", results[1].Detail)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.waits)
}

func TestRunRetryGivesUpAfterMaxRetries(t *testing.T) {
	creds := newFakeCredentials("alice")
	launch := &LikeError{Outcome: domain.OutcomeLaunchFailed, Err: errors.New("crash")}
	liker := &fakeLiker{results: map[string][]error{"/profiles/alice": {launch, launch, launch}}}
	runner := newTestRunner(creds, newFakeProfiles("alice"), &fakePoster{}, liker, &recordingSleeper{},
		WithRetry(RetryPolicy{MaxRetries: 1, InitialWait: time.Second}))

	results, err := runner.Run(context.Background(), likeRequests("alice"), domain.PacingPolicy{})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeLaunchFailed, results[0].Outcome)
	assert.Equal(t, 2, results[0].Attempts)
	assert.Len(t, liker.calls, 2)
}

func TestRunStoreFailureAbortsWithPartialResults(t *testing.T) {
	creds := newFakeCredentials("alice")
	runner := newTestRunner(creds, newFakeProfiles(), &fakePoster{}, &fakeLiker{}, &recordingSleeper{})

	ioErr := errors.New("disk unreadable")
	calls := 0
	poster := &scriptedPoster{after: func() {
		calls++
		creds.loadErr = ioErr
	}}
	runner.poster = poster

	results, err := runner.Run(context.Background(), commentRequests("x", "alice", "bob", "carol"), domain.PacingPolicy{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ioErr)
	require.Len(t, results, 1)
	assert.True(t, results[0].Succeeded)
	assert.Equal(t, 1, calls)
}

type scriptedPoster struct {
	after func()
}

func (p *scriptedPoster) PostComment(context.Context, domain.CredentialRecord, domain.VideoID, string) (domain.CommentID, error) {
	p.after()
	return "Ugz1", nil
}

func TestExecuteJournalsAndMeasures(t *testing.T) {
	creds := newFakeCredentials("alice")
	journal := memory.NewRunRepository()
	rec := metrics.NewRecorder()
	runner := newTestRunner(creds, newFakeProfiles(), &fakePoster{}, &fakeLiker{}, &recordingSleeper{},
		WithJournal(journal), WithMetrics(rec))

	run, err := runner.Execute(context.Background(), commentRequests("x", "alice", "bob"), domain.PacingPolicy{})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, domain.ActionComment, run.Kind)
	assert.Equal(t, 1, run.Succeeded())
	assert.True(t, run.FinishedAt.After(run.StartedAt))

	stored, err := journal.GetByID(run.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Results, 2)

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `ytmulti_actions_total{kind="comment",outcome="success"} 1`)
	assert.Contains(t, w.Body.String(), `ytmulti_actions_total{kind="comment",outcome="account_not_found"} 1`)
}

func TestRunEmptyBatch(t *testing.T) {
	runner := newTestRunner(newFakeCredentials(), newFakeProfiles(), &fakePoster{}, &fakeLiker{}, &recordingSleeper{})
	results, err := runner.Run(context.Background(), nil, domain.PacingPolicy{Delay: time.Second})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunEmptyCommentTextIsInvalidInput(t *testing.T) {
	creds := newFakeCredentials("alice")
	poster := &fakePoster{}
	runner := newTestRunner(creds, newFakeProfiles(), poster, &fakeLiker{}, &recordingSleeper{})

	results, err := runner.Run(context.Background(), commentRequests("   ", "alice"), domain.PacingPolicy{})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeInvalidInput, results[0].Outcome)
	assert.Empty(t, poster.calls)
}

func TestRunCorruptCredentialFailsOnlyThatAccount(t *testing.T) {
	store, err := filestore.NewCredentialStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save("a", domain.CredentialRecord{AccessToken: "token-a"}))
	require.NoError(t, store.Save("c", domain.CredentialRecord{AccessToken: "token-c"}))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "b.json"), []byte("not json"), 0600))

	poster := &fakePoster{}
	sleeper := &recordingSleeper{}
	runner := NewBatchRunner(store, newFakeProfiles(), poster, &fakeLiker{},
		WithSleep(sleeper.sleep), WithClock(fixedClock()))

	results, err := runner.Run(context.Background(), commentRequests("hi", "a", "b", "c"), domain.PacingPolicy{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Succeeded)
	assert.Equal(t, domain.OutcomeAccountNotFound, results[1].Outcome)
	assert.Contains(t, results[1].Detail, "corrupt credential")
	assert.True(t, results[2].Succeeded)
	assert.Equal(t, []string{"token-a", "token-c"}, poster.calls)
}

// overlapLiker records the highest number of LikeComment calls in flight.
type overlapLiker struct {
	active atomic.Int32
	peak   atomic.Int32
	calls  atomic.Int32
}

func (l *overlapLiker) LikeComment(context.Context, string, string, domain.CommentID) (bool, error) {
	n := l.active.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	l.active.Add(-1)
	l.calls.Add(1)
	return false, nil
}

func TestExecuteSerializesConcurrentBatches(t *testing.T) {
	creds := newFakeCredentials("alice", "bob")
	liker := &overlapLiker{}
	runner := newTestRunner(creds, newFakeProfiles("alice", "bob"), &fakePoster{}, liker, &recordingSleeper{},
		WithClock(time.Now))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := runner.Execute(context.Background(), likeRequests("alice", "bob"), domain.PacingPolicy{})
			assert.NoError(t, err)
			assert.Equal(t, 2, run.Succeeded())
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 6, liker.calls.Load())
	assert.EqualValues(t, 1, liker.peak.Load(), "batches must not overlap")
}

func TestExecuteCancelledWhileQueuedSkipsEverything(t *testing.T) {
	creds := newFakeCredentials("alice", "bob")
	poster := &fakePoster{}
	runner := newTestRunner(creds, newFakeProfiles(), poster, &fakeLiker{}, &recordingSleeper{})
	runner.slot <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err := runner.Execute(ctx, commentRequests("x", "alice", "bob"), domain.PacingPolicy{})
	require.NoError(t, err)
	require.Len(t, run.Results, 2)
	for _, res := range run.Results {
		assert.Equal(t, domain.OutcomeSkipped, res.Outcome)
		assert.Equal(t, 0, res.Attempts)
	}
	assert.Empty(t, poster.calls)

	<-runner.slot
	run, err = runner.Execute(context.Background(), commentRequests("x", "alice"), domain.PacingPolicy{})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Succeeded())
}

func TestRunLikeCancelledMidActionIsSkipped(t *testing.T) {
	creds := newFakeCredentials("alice")
	liker := &fakeLiker{results: map[string][]error{
		"/profiles/alice": {&LikeError{Outcome: domain.OutcomeSkipped, Err: context.Canceled}},
	}}
	runner := newTestRunner(creds, newFakeProfiles("alice"), &fakePoster{}, liker, &recordingSleeper{},
		WithRetry(RetryPolicy{MaxRetries: 3, InitialWait: time.Second}))

	results, err := runner.Run(context.Background(), likeRequests("alice"), domain.PacingPolicy{})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, results[0].Outcome)
	assert.Equal(t, 1, results[0].Attempts)
}
