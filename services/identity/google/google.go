// Package google signs users in with their Google account (OAuth2 authorization code flow).
package google

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/identity"
)

const userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var scopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

type (
	Provider struct {
		oauth       *oauth2.Config
		userInfoURL string
	}

	userInfo struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
)

var _ identity.Provider = (*Provider)(nil)

func NewProvider(conf *core.Config) *Provider {
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     conf.Google.ClientID,
			ClientSecret: conf.Google.ClientSecret,
			RedirectURL:  conf.Google.RedirectURL,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		},
		userInfoURL: userInfoURL,
	}
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades code for a token, then reads the user's profile with it.
func (p *Provider) Exchange(ctx context.Context, code string) (identity.Identity, error) {
	if code == "" {
		return identity.Identity{}, identity.ErrExchangeFailed
	}
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			return identity.Identity{}, errors.Wrap(identity.ErrExchangeFailed, rErr.Error())
		}
		return identity.Identity{}, core.Unavailable(err, "exchanging code")
	}

	info := new(userInfo)
	resp, err := resty.NewWithClient(p.oauth.Client(ctx, tok)).R().
		SetContext(ctx).
		SetResult(info).
		Get(p.userInfoURL)
	if err != nil {
		return identity.Identity{}, core.Unavailable(err, "fetching user info")
	}
	if resp.StatusCode() != http.StatusOK {
		return identity.Identity{}, errors.Wrapf(identity.ErrExchangeFailed, "user info: %s", resp.Status())
	}
	if info.ID == "" {
		return identity.Identity{}, errors.Wrap(identity.ErrExchangeFailed, "user info: missing id")
	}

	return identity.Identity{
		UserID:   info.ID,
		Name:     info.Name,
		Email:    info.Email,
		PhotoURL: info.Picture,
	}, nil
}
