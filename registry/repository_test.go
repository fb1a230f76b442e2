package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2/registry/remote/auth"
)

func testClock() time.Time {
	return time.Date(2024, 5, 6, 7, 8, 10, 0, time.UTC)
}

func TestNewRepository(t *testing.T) {
	t.Parallel()

	repo, tag, err := NewRepository("localhost:5000/team/app:v1.2", WithPlainHTTP(true))
	require.NoError(t, err)
	assert.Equal(t, "v1.2", tag)
	assert.True(t, repo.PlainHTTP)
	assert.Equal(t, "localhost:5000", repo.Reference.Registry)
	assert.Equal(t, "team/app", repo.Reference.Repository)

	client, ok := repo.Client.(*auth.Client)
	require.True(t, ok)
	assert.Equal(t, defaultUserAgent, client.Header.Get("User-Agent"))
}

func TestNewRepository_Credentials(t *testing.T) {
	t.Parallel()

	repo, _, err := NewRepository("registry.example.com/app:v1",
		WithStaticCredentials("registry.example.com", "user", "pass"),
		WithUserAgent("custom/2"),
	)
	require.NoError(t, err)

	client, ok := repo.Client.(*auth.Client)
	require.True(t, ok)
	assert.Equal(t, "custom/2", client.Header.Get("User-Agent"))

	cred, err := client.Credential(context.Background(), "registry.example.com")
	require.NoError(t, err)
	assert.Equal(t, "user", cred.Username)

	cred, err = client.Credential(context.Background(), "other.example.com")
	require.NoError(t, err)
	assert.Equal(t, auth.EmptyCredential, cred)
}

func TestNewRepository_InvalidReference(t *testing.T) {
	t.Parallel()

	for _, ref := range []string{
		"",
		"not a reference",
		"registry.example.com/app",
		"registry.example.com/app@sha256:0000000000000000000000000000000000000000000000000000000000000000",
	} {
		_, _, err := NewRepository(ref)
		require.ErrorIs(t, err, ErrInvalidReference, "ref %q", ref)
	}
}

func TestStaticCredentials(t *testing.T) {
	t.Parallel()

	store := StaticCredentials("https://docker.io/", "u", "p")
	ctx := context.Background()

	cred, err := store.Get(ctx, "registry-1.docker.io")
	require.NoError(t, err)
	assert.Equal(t, "u", cred.Username)

	cred, err = store.Get(ctx, "ghcr.io")
	require.NoError(t, err)
	assert.Equal(t, auth.EmptyCredential, cred)

	require.Error(t, store.Put(ctx, "docker.io", auth.Credential{}))
	require.Error(t, store.Delete(ctx, "docker.io"))
}

func TestNormalizeServerAddress(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://index.docker.io/v1/": "index.docker.io",
		"http://localhost:5000":       "localhost:5000",
		"ghcr.io":                     "ghcr.io",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeServerAddress(in), in)
	}
	assert.True(t, isDockerHubHost("docker.io:443"))
	assert.False(t, isDockerHubHost("[::1]:5000"))
}
