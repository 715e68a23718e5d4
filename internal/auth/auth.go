// Package auth turns a bearer token into an authenticated identity.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"spousedetails/internal/model"
)

// ErrUnauthorized is the sentinel every authentication failure matches.
var ErrUnauthorized = errors.New("unauthorized")

// Error carries the reason a request was rejected.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "auth: " + e.Reason + ": " + e.Err.Error()
	}
	return "auth: " + e.Reason
}

func (e *Error) Is(target error) bool { return target == ErrUnauthorized }

func (e *Error) Unwrap() error { return e.Err }

// Verifier resolves a raw bearer token to the user it was issued for.
type Verifier interface {
	Verify(ctx context.Context, token string) (model.Identity, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", &Error{Reason: "missing authorization header"}
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", &Error{Reason: "authorization header is not a bearer token"}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", &Error{Reason: "empty bearer token"}
	}
	return token, nil
}

// Authenticate checks the request's bearer token against v.
func Authenticate(r *http.Request, v Verifier) (model.Identity, error) {
	token, err := BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return model.Identity{}, err
	}
	id, err := v.Verify(r.Context(), token)
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			return model.Identity{}, err
		}
		return model.Identity{}, &Error{Reason: "token rejected", Err: err}
	}
	if id.ID == "" {
		return model.Identity{}, &Error{Reason: "token has no subject"}
	}
	return id, nil
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by the middleware.
func FromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(model.Identity)
	return id, ok
}

// Middleware rejects requests that do not authenticate. onFail writes the
// rejection; authenticated requests continue with the identity in context.
func Middleware(v Verifier, onFail func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := Authenticate(r, v)
			if err != nil {
				onFail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
