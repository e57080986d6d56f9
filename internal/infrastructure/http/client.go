package infrastructure

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"yt_multi_account/config"
)

// HTTPClient is the shared transport for Google API and OAuth calls
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates a pooled HTTP client from the performance settings
func NewHTTPClient(cfg *config.Config) *HTTPClient {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2: true,
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.HTTPClientTimeout,
		},
	}
}

// GetClient returns the underlying HTTP client
func (c *HTTPClient) GetClient() *http.Client {
	return c.client
}

// Context returns ctx carrying the client for golang.org/x/oauth2, which
// uses it for token exchange, refresh and as the base of authorized clients.
func (c *HTTPClient) Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.client)
}
