package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	appLog "spousedetails/internal/log"
	"spousedetails/internal/model"
)

// RemoteVerifier asks the hosted auth service who a token belongs to
// (GET {service}/auth/v1/user).
type RemoteVerifier struct {
	client *resty.Client
}

type remoteUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRemoteVerifier builds a verifier for the service at baseURL using
// apiKey as the project key.
func NewRemoteVerifier(baseURL, apiKey string) *RemoteVerifier {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetHeader("apikey", apiKey).
		SetHeader("Accept", "application/json")
	return &RemoteVerifier{client: c}
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (model.Identity, error) {
	var u remoteUser
	resp, err := v.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&u).
		Get("/auth/v1/user")
	if err != nil {
		appLog.Error("auth service request failed", err)
		return model.Identity{}, fmt.Errorf("auth service: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusForbidden:
		return model.Identity{}, &Error{Reason: "token rejected by auth service"}
	case resp.IsError():
		return model.Identity{}, fmt.Errorf("auth service: unexpected status %d", resp.StatusCode())
	}
	if u.ID == "" {
		return model.Identity{}, &Error{Reason: "auth service returned no user"}
	}
	return model.Identity{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}, nil
}
