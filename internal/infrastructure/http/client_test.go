package infrastructure

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"yt_multi_account/config"
)

func TestNewHTTPClientUsesPerformanceSettings(t *testing.T) {
	cfg := config.Default()
	cfg.HTTPClientTimeout = 12 * time.Second
	cfg.MaxIdleConns = 7
	cfg.MaxConnsPerHost = 3

	c := NewHTTPClient(cfg)
	assert.Equal(t, 12*time.Second, c.GetClient().Timeout)

	transport, ok := c.GetClient().Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 7, transport.MaxIdleConns)
	assert.Equal(t, 3, transport.MaxConnsPerHost)
}

func TestContextCarriesClientForOAuth(t *testing.T) {
	c := NewHTTPClient(config.Default())

	ctx := c.Context(context.Background())
	got, ok := ctx.Value(oauth2.HTTPClient).(*http.Client)
	require.True(t, ok)
	assert.Same(t, c.GetClient(), got)
}
