package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventlytics/go-auth-client/api"
	"github.com/eventlytics/go-auth-client/identity"
)

func TestLoginDecodesTokenPair(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, api.LoginPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"aaa","refresh_token":"rrr","token_type":"bearer","expires_in":1800}`)) //nolint:errcheck
	}))
	defer backend.Close()

	client := api.NewClient(backend.URL)
	tokens, err := client.Login(context.Background(), "admin@x.com", "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, "aaa", tokens.AccessToken)
	assert.Equal(t, "rrr", tokens.RefreshToken)
	assert.Equal(t, int64(1800), tokens.ExpiresIn)
}

func TestErrorDetailExtracted(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Invalid credentials"}`)) //nolint:errcheck
	}))
	defer backend.Close()

	client := api.NewClient(backend.URL)
	_, err := client.Login(context.Background(), "admin@x.com", "nope")
	require.Error(t, err)

	assert.Equal(t, "Invalid credentials", api.Detail(err))

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsUnauthorized())
}

func TestValidationErrorListDetail(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address","type":"value_error.email"}]}`)) //nolint:errcheck
	}))
	defer backend.Close()

	client := api.NewClient(backend.URL)
	_, err := client.Login(context.Background(), "not-an-email", "x")
	require.Error(t, err)
	assert.Equal(t, "value is not a valid email address", api.Detail(err))
}

func TestDetailFallsBackToGenericMessage(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded")) //nolint:errcheck
	}))
	defer backend.Close()

	client := api.NewClient(backend.URL)
	_, err := client.Login(context.Background(), "a@x.com", "x")
	require.Error(t, err)
	assert.Equal(t, api.GenericFailureMessage, api.Detail(err))
}

func TestRefreshSendsTokenInBodyOnly(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new","token_type":"bearer","expires_in":1800}`)) //nolint:errcheck
	}))
	defer backend.Close()

	client := api.NewClient(backend.URL)
	tokens, err := client.Refresh(context.Background(), "refresh-value")
	require.NoError(t, err)
	assert.Equal(t, "new", tokens.AccessToken)
}

func TestMeSendsBearer(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1,"email":"admin@x.com","full_name":"Admin","role":"admin","is_active":true,"is_verified":true,"created_at":"2024-06-01T12:00:00Z"}`)) //nolint:errcheck
	}))
	defer backend.Close()

	client := api.NewClient(backend.URL)
	user, err := client.Me(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "admin@x.com", user.Email)
	assert.Equal(t, identity.RoleAdmin, user.Role)
}

func TestRegisterValidatesBeforeNetwork(t *testing.T) {
	var called bool
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer backend.Close()

	client := api.NewClient(backend.URL)
	_, err := client.Register(context.Background(), api.RegisterRequest{
		Email:    "a@x.com",
		FullName: "A",
		Password: "alllowercase1!",
	})
	require.Error(t, err)
	assert.Contains(t, api.Detail(err), "uppercase")
	assert.False(t, called)
}
