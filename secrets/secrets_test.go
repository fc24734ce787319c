package secrets

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvProviderNamingConvention(t *testing.T) {
	t.Setenv("DSP_SCIM_TOKEN_URL", "https://auth.example.com/oauth/token")

	value, err := EnvProvider{}.GetPassword(context.Background(), "dsp-scim-token-url")
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/oauth/token", value)
}

func TestEnvProviderMissingVariable(t *testing.T) {
	_, err := EnvProvider{}.GetPassword(context.Background(), "dsp-scim-no-such-secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSP_SCIM_NO_SUCH_SECRET")
}

type countingProvider struct {
	calls atomic.Int64
	fail  bool
}

func (p *countingProvider) GetPassword(_ context.Context, name string) (string, error) {
	p.calls.Add(1)
	if p.fail {
		return "", fmt.Errorf("secret %q not found", name)
	}
	return "value-of-" + name, nil
}

func TestResolverCachesUntilRefresh(t *testing.T) {
	provider := &countingProvider{}
	resolver := NewResolver(provider)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		value, err := resolver.GetPassword(ctx, "dsp-scim-client-id")
		require.NoError(t, err)
		assert.Equal(t, "value-of-dsp-scim-client-id", value)
	}
	assert.EqualValues(t, 1, provider.calls.Load())

	resolver.Refresh()
	_, err := resolver.GetPassword(ctx, "dsp-scim-client-id")
	require.NoError(t, err)
	assert.EqualValues(t, 2, provider.calls.Load())
}

func TestResolverDoesNotCacheFailures(t *testing.T) {
	provider := &countingProvider{fail: true}
	resolver := NewResolver(provider)
	ctx := context.Background()

	_, err := resolver.GetPassword(ctx, "dsp-scim-client-id")
	require.Error(t, err)
	_, err = resolver.GetPassword(ctx, "dsp-scim-client-id")
	require.Error(t, err)
	assert.EqualValues(t, 2, provider.calls.Load())
}

func TestSCIMConfig(t *testing.T) {
	t.Setenv("DSP_SCIM_TOKEN_URL", "https://auth.example.com/oauth/token")
	t.Setenv("DSP_SCIM_BASE_URL", "https://dsp.example.com///")
	t.Setenv("DSP_SCIM_CLIENT_ID", "client-id")
	t.Setenv("DSP_SCIM_CLIENT_SECRET", "client-secret")

	cfg, err := NewResolver(EnvProvider{}).SCIMConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/oauth/token", cfg.TokenURL)
	assert.Equal(t, "https://dsp.example.com", cfg.APIBaseURL)
	assert.Equal(t, "client-id", cfg.ClientID)
	assert.Equal(t, "client-secret", cfg.ClientSecret)
}

func TestSCIMConfigMissingSecretFails(t *testing.T) {
	t.Setenv("DSP_SCIM_TOKEN_URL", "https://auth.example.com/oauth/token")
	t.Setenv("DSP_SCIM_BASE_URL", "https://dsp.example.com")
	t.Setenv("DSP_SCIM_CLIENT_ID", "client-id")
	// client secret intentionally unset

	_, err := NewResolver(EnvProvider{}).SCIMConfig(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSP_SCIM_CLIENT_SECRET")
}
