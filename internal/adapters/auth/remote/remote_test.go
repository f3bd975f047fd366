package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIAM(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != verifyPath || r.Header.Get("X-Api-Key") != "k" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var in verifyRequest
		_ = json.NewDecoder(r.Body).Decode(&in)

		switch in.Token {
		case "good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"user_id":" u-1 ","username":"carla","is_staff":true}`))
		case "broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifier(t *testing.T) {
	srv := newIAM(t)
	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second})
	require.NoError(t, err)
	v := NewVerifier(client)
	ctx := context.Background()

	claims, err := v.Verify(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.True(t, claims.IsStaff)

	_, err = v.Verify(ctx, "bad")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = v.Verify(ctx, "broken")
	assert.True(t, errors.Is(err, ErrUpstream))

	_, err = v.Verify(ctx, "")
	assert.True(t, errors.Is(err, ErrTokenEmpty))
}

func TestClient_NotConfigured(t *testing.T) {
	client, err := NewClient(Config{})
	require.NoError(t, err)

	_, err = NewVerifier(client).Verify(context.Background(), "good")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
