package youtube

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"yt_multi_account/internal/domain"
	httpclient "yt_multi_account/internal/infrastructure/http"
)

// Service posts comments through the YouTube Data API.
// It holds no per-account state: every call builds its client from the
// credential record it is given.
type Service struct {
	oauth    *oauth2.Config
	client   *httpclient.HTTPClient
	endpoint string
}

// Option customises a Service
type Option func(*Service)

// WithEndpoint overrides the API base URL, e.g. for a test server
func WithEndpoint(endpoint string) Option {
	return func(s *Service) {
		s.endpoint = endpoint
	}
}

// NewService creates a new YouTube service. oauthCfg is used only to refresh
// expired access tokens.
func NewService(oauthCfg *oauth2.Config, httpClient *httpclient.HTTPClient, opts ...Option) *Service {
	s := &Service{
		oauth:  oauthCfg,
		client: httpClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PostComment creates a top-level comment on video and returns its ID.
// Failures are returned as *domain.APIError.
func (s *Service) PostComment(ctx context.Context, record domain.CredentialRecord, video domain.VideoID, text string) (domain.CommentID, error) {
	if record.AccessToken == "" && record.RefreshToken == "" {
		return "", &domain.APIError{Auth: true, Message: "credential record has no token"}
	}

	service, err := s.newYouTube(ctx, record)
	if err != nil {
		return "", &domain.APIError{Message: "create youtube client", Err: err}
	}

	thread := &youtube.CommentThread{
		Snippet: &youtube.CommentThreadSnippet{
			VideoId: string(video),
			TopLevelComment: &youtube.Comment{
				Snippet: &youtube.CommentSnippet{
					TextOriginal: text,
				},
			},
		},
	}

	created, err := service.CommentThreads.Insert([]string{"snippet"}, thread).Context(ctx).Do()
	if err != nil {
		return "", toAPIError(err)
	}
	if created.Id == "" {
		return "", &domain.APIError{StatusCode: created.HTTPStatusCode, Message: "response carried no comment id"}
	}
	return domain.CommentID(created.Id), nil
}

func (s *Service) newYouTube(ctx context.Context, record domain.CredentialRecord) (*youtube.Service, error) {
	if s.client != nil {
		ctx = s.client.Context(ctx)
	}

	var ts oauth2.TokenSource
	if s.oauth != nil {
		ts = s.oauth.TokenSource(ctx, record.Token())
	} else {
		ts = oauth2.StaticTokenSource(record.Token())
	}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	return youtube.NewService(ctx, opts...)
}

// toAPIError maps client library errors to the domain error type.
func toAPIError(err error) *domain.APIError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		apiErr := &domain.APIError{
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Err:        err,
		}
		if len(gerr.Errors) > 0 {
			apiErr.Reason = gerr.Errors[0].Reason
			if apiErr.Message == "" {
				apiErr.Message = gerr.Errors[0].Message
			}
		}
		return apiErr
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		apiErr := &domain.APIError{
			Reason:  rerr.ErrorCode,
			Message: fmt.Sprintf("token refresh failed: %s", rerr.ErrorDescription),
			Auth:    true,
			Err:     err,
		}
		if rerr.Response != nil {
			apiErr.StatusCode = rerr.Response.StatusCode
		}
		return apiErr
	}

	return &domain.APIError{Message: err.Error(), Err: err}
}
