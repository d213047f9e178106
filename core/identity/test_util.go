package identity

import (
	"context"
	"net/url"
)

// ProviderMock signs everyone in as Identity, unless Err is set.
type ProviderMock struct {
	Identity Identity
	Err      error
}

var _ Provider = (*ProviderMock)(nil)

func (p *ProviderMock) AuthCodeURL(state string) string {
	return "https://accounts.test/auth?state=" + url.QueryEscape(state)
}

func (p *ProviderMock) Exchange(_ context.Context, code string) (Identity, error) {
	if p.Err != nil {
		return Identity{}, p.Err
	}
	if code == "" {
		return Identity{}, ErrExchangeFailed
	}
	return p.Identity, nil
}
