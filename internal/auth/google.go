package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

var ErrProviderRejected = errors.New("provider rejected token")

// Profile is the subset of the provider's userinfo document we keep.
type Profile struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type ProfileFetcher interface {
	FetchProfile(ctx context.Context, accessToken string) (Profile, error)
}

// GoogleFetcher exchanges an OAuth access token for the user's profile.
type GoogleFetcher struct {
	URL    string
	Client *http.Client
}

func NewGoogleFetcher(url string) *GoogleFetcher {
	if url == "" {
		url = DefaultUserInfoURL
	}
	return &GoogleFetcher{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (g *GoogleFetcher) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	if accessToken == "" {
		return Profile{}, ErrProviderRejected
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.Client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Profile{}, ErrProviderRejected
	case resp.StatusCode != http.StatusOK:
		return Profile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if p.Email == "" {
		return Profile{}, fmt.Errorf("%w: profile has no email", ErrProviderRejected)
	}
	return p, nil
}
