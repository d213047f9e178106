package identity

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrExchangeFailed  = errors.New("authentication failed")
)

type (
	// Session identifies the user on whose behalf an operation runs. The zero Session is anonymous.
	Session struct {
		UserID   string
		Name     string
		Email    string
		PhotoURL string
	}

	// Identity is what an identity provider knows about a signed-in user.
	Identity struct {
		UserID   string `json:"uid"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		PhotoURL string `json:"photo_url"`
	}

	// Provider signs users in through a third-party (OAuth2) flow.
	Provider interface {
		// AuthCodeURL returns the URL of the provider's consent page.
		AuthCodeURL(state string) string
		// Exchange trades the code received by the callback for the user's Identity.
		Exchange(ctx context.Context, code string) (Identity, error)
	}
)

func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// Require fails with ErrUnauthenticated for anonymous sessions.
func Require(s Session) error {
	if !s.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

func (id Identity) Session() Session {
	return Session{UserID: id.UserID, Name: id.Name, Email: id.Email, PhotoURL: id.PhotoURL}
}
