package earthengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scope is the OAuth2 scope required by the Earth Engine API.
const Scope = "https://www.googleapis.com/auth/earthengine"

// ErrUnauthenticated is returned by NewHTTPClient when no credentials are available.
var ErrUnauthenticated = errors.New("earth engine credentials not configured")

// NewHTTPClient returns an HTTP client that authenticates as the service
// account in keyJSON, or with application default credentials when keyJSON
// is empty.
func NewHTTPClient(ctx context.Context, keyJSON string, timeout time.Duration) (*http.Client, error) {
	var (
		creds *google.Credentials
		err   error
	)
	if keyJSON != "" {
		creds, err = google.CredentialsFromJSON(ctx, []byte(keyJSON), Scope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, Scope)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = timeout
	return client, nil
}
