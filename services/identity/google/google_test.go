package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/identity"
)

func newTestProvider(t *testing.T, userInfoStatus int) *Provider {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(userInfoStatus)
		_, _ = w.Write([]byte(`{"id":"g-123","email":"jane@test.cd","name":"Jane Doe","picture":"https://pics.test/jane.png"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	conf := core.NewTestConfig()
	conf.Google.ClientID = "client"
	conf.Google.ClientSecret = "secret"
	p := NewProvider(conf)
	p.oauth.Endpoint.AuthURL = srv.URL + "/auth"
	p.oauth.Endpoint.TokenURL = srv.URL + "/token"
	p.userInfoURL = srv.URL + "/userinfo"
	return p
}

func TestProvider_AuthCodeURL(t *testing.T) {
	p := NewProvider(core.NewTestConfig())
	u, err := url.Parse(p.AuthCodeURL("st4te"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "st4te", u.Query().Get("state"))
	assert.Equal(t, "code", u.Query().Get("response_type"))
}

func TestProvider_Exchange(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		p := newTestProvider(t, http.StatusOK)
		id, err := p.Exchange(ctx, "good-code")
		require.NoError(t, err)
		assert.Equal(t, identity.Identity{
			UserID:   "g-123",
			Name:     "Jane Doe",
			Email:    "jane@test.cd",
			PhotoURL: "https://pics.test/jane.png",
		}, id)
	})

	tests := []struct {
		name   string
		code   string
		status int
	}{
		{name: "empty code", code: "", status: http.StatusOK},
		{name: "bad code", code: "bad-code", status: http.StatusOK},
		{name: "user info failure", code: "good-code", status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.status)
			_, err := p.Exchange(ctx, tt.code)
			assert.Equal(t, identity.ErrExchangeFailed, errors.Cause(err))
		})
	}
}
