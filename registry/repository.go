package registry

import (
	"context"
	"fmt"
	"net/http"

	orasregistry "oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const defaultUserAgent = "zipstream/1.0"

// RepositoryOption configures NewRepository.
type RepositoryOption func(*repoConfig)

type repoConfig struct {
	plainHTTP bool
	userAgent string
	credStore credentials.Store
	docker    bool
}

// WithPlainHTTP uses HTTP instead of HTTPS for registry requests.
func WithPlainHTTP(plain bool) RepositoryOption {
	return func(c *repoConfig) {
		c.plainHTTP = plain
	}
}

// WithUserAgent sets the User-Agent header on registry requests.
func WithUserAgent(ua string) RepositoryOption {
	return func(c *repoConfig) {
		c.userAgent = ua
	}
}

// WithCredentials sets the credential store used for authentication.
func WithCredentials(store credentials.Store) RepositoryOption {
	return func(c *repoConfig) {
		c.credStore = store
	}
}

// WithDockerConfig reads credentials from the Docker configuration
// (~/.docker/config.json) and its credential helpers.
func WithDockerConfig() RepositoryOption {
	return func(c *repoConfig) {
		c.docker = true
	}
}

// WithStaticCredentials authenticates to host with a username and password.
func WithStaticCredentials(host, username, password string) RepositoryOption {
	return WithCredentials(StaticCredentials(host, username, password))
}

// NewRepository returns an authenticated repository for ref and the tag
// parsed from it. ref has the form "host/repository:tag".
func NewRepository(ref string, opts ...RepositoryOption) (*remote.Repository, string, error) {
	cfg := repoConfig{userAgent: defaultUserAgent}
	for _, opt := range opts {
		opt(&cfg)
	}

	parsed, err := orasregistry.ParseReference(ref)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	if err := parsed.ValidateReferenceAsTag(); err != nil {
		return nil, "", fmt.Errorf("%w: %q must include a tag", ErrInvalidReference, ref)
	}

	store := cfg.credStore
	if store == nil && cfg.docker {
		store, err = DockerCredentials()
		if err != nil {
			return nil, "", fmt.Errorf("load docker credentials: %w", err)
		}
	}

	repo, err := remote.NewRepository(parsed.Registry + "/" + parsed.Repository)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	repo.PlainHTTP = cfg.plainHTTP
	repo.Client = &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: func(ctx context.Context, hostport string) (auth.Credential, error) {
			if store == nil {
				return auth.EmptyCredential, nil
			}
			return store.Get(ctx, hostport)
		},
		Header: http.Header{
			"User-Agent": []string{cfg.userAgent},
		},
	}
	return repo, parsed.Reference, nil
}
