package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CloudPlatformScope is the OAuth scope the Route Optimization API requires
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// LoadCredentialsJSON returns service account JSON from base64 or a file path.
// Base64 wins when both are set, matching how cloud deployments inject secrets.
// Returns nil when neither is configured.
func LoadCredentialsJSON(credentialsBase64, credentialsFile string) ([]byte, error) {
	if credentialsBase64 != "" {
		b, err := base64.StdEncoding.DecodeString(credentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
		}
		return b, nil
	}
	if credentialsFile != "" {
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("error reading credentials file: %w", err)
		}
		return b, nil
	}
	return nil, nil
}

// tokenFetchTimeout bounds a single OAuth token exchange
const tokenFetchTimeout = 15 * time.Second

// NewServiceAccountTokenSource builds a cached token source from service
// account JSON. Tokens are fetched lazily on first use.
func NewServiceAccountTokenSource(ctx context.Context, credentialsJSON []byte) (oauth2.TokenSource, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: tokenFetchTimeout})
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("error parsing service account credentials: %w", err)
	}
	return oauth2.ReuseTokenSource(nil, creds.TokenSource), nil
}

// SolverCredentials says where the Route Optimization credential comes from
type SolverCredentials struct {
	ProjectID         string
	APIKey            string
	CredentialsBase64 string
	CredentialsFile   string
}

// brokenCredential stands in for a service account that could not be loaded
type brokenCredential struct {
	err error
}

func (b brokenCredential) Token() (*oauth2.Token, error) {
	return nil, b.err
}

// NewRouteOptimizationFromCredentials builds the solver adapter. A service
// account wins over an API key. A service account that cannot be read or
// parsed is logged and every call then fails with an authentication failure,
// as it does when no credential is configured at all.
func NewRouteOptimizationFromCredentials(ctx context.Context, c SolverCredentials, logger *zap.Logger) *RouteOptimizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := RouteOptimizationConfig{
		ProjectID: c.ProjectID,
		APIKey:    c.APIKey,
		Logger:    logger,
	}

	creds, err := LoadCredentialsJSON(c.CredentialsBase64, c.CredentialsFile)
	if err == nil && creds != nil {
		cfg.Tokens, err = NewServiceAccountTokenSource(ctx, creds)
	}
	if err != nil {
		logger.Error("route optimization service account unusable, optimization runs will fail", zap.Error(err))
		cfg.Tokens = brokenCredential{err: err}
	}
	return NewRouteOptimizationService(cfg)
}

// HasCredential reports whether any solver credential is configured
func (c SolverCredentials) HasCredential() bool {
	return c.APIKey != "" || c.CredentialsBase64 != "" || c.CredentialsFile != ""
}
