package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spousedetails/internal/model"
)

type stubVerifier struct {
	id  model.Identity
	err error
}

func (s stubVerifier) Verify(context.Context, string) (model.Identity, error) {
	return s.id, s.err
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	tok, err = BearerToken("bearer   xyz ")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	for _, bad := range []string{"", "Basic dXNlcjpwYXNz", "Bearer", "Bearer   "} {
		_, err := BearerToken(bad)
		assert.ErrorIs(t, err, ErrUnauthorized, bad)
	}
}

func TestAuthenticate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set("Authorization", "Bearer t")

	id, err := Authenticate(req, stubVerifier{id: model.Identity{ID: "u1"}})
	require.NoError(t, err)
	assert.Equal(t, "u1", id.ID)

	_, err = Authenticate(req, stubVerifier{err: errors.New("boom")})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = Authenticate(req, stubVerifier{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestMiddleware(t *testing.T) {
	var seen model.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	onFail := func(w http.ResponseWriter, _ *http.Request, err error) {
		http.Error(w, err.Error(), http.StatusUnauthorized)
	}
	h := Middleware(stubVerifier{id: model.Identity{ID: "u1", Email: "a@b.c"}}, onFail)(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "a@b.c", seen.Email)
}

func TestJWTVerifier(t *testing.T) {
	v, err := NewJWTVerifier("top-secret", "https://proj.example/auth/v1", "authenticated")
	require.NoError(t, err)

	tok, err := v.Sign(model.Identity{ID: "user-1", Email: "me@example.com"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.ID)
	assert.Equal(t, "me@example.com", id.Email)

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := NewJWTVerifier("other", "https://proj.example/auth/v1", "authenticated")
		_, err := other.Verify(context.Background(), tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		v.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { v.now = time.Now }()
		_, err := v.Verify(context.Background(), tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("wrong audience", func(t *testing.T) {
		strict, _ := NewJWTVerifier("top-secret", "", "service_role")
		_, err := strict.Verify(context.Background(), tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify(context.Background(), "not-a-jwt")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestNewJWTVerifier_EmptySecret(t *testing.T) {
	_, err := NewJWTVerifier("", "", "")
	assert.Error(t, err)
}

func TestRemoteVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "anon-key" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"u-42","email":"x@y.z","created_at":"2024-01-02T03:04:05Z"}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v := NewRemoteVerifier(srv.URL+"/", "anon-key")

	id, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "u-42", id.ID)
	assert.Equal(t, "x@y.z", id.Email)
	assert.Equal(t, 2024, id.CreatedAt.Year())

	_, err = v.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify(context.Background(), "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}
