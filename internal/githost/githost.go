// Package githost lists a GitHub account's repositories.
package githost

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v75/github"

	"github.com/joescharf/portfolio-sync/internal/models"
)

const perPage = 100

// Client lists the public (and, with a token, private) repositories of one user.
type Client struct {
	gh   *github.Client
	user string
}

// New creates a Client for user. token and apiURL are optional; apiURL
// replaces https://api.github.com/ (useful for tests and GitHub Enterprise).
func New(user, token, apiURL string) (*Client, error) {
	gh := github.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		u, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("parse github api url: %w", err)
		}
		gh.BaseURL = u
	}
	return &Client{gh: gh, user: user}, nil
}

// ListRepos returns every repository of the user, most recently updated
// first, following pagination.
func (c *Client) ListRepos(ctx context.Context) ([]models.Repository, error) {
	opts := &github.RepositoryListByUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var out []models.Repository
	for {
		repos, resp, err := c.gh.Repositories.ListByUser(ctx, c.user, opts)
		if err != nil {
			return nil, fmt.Errorf("list repos for %s: %w", c.user, err)
		}
		for _, r := range repos {
			out = append(out, models.Repository{
				Name:        r.GetName(),
				Description: r.GetDescription(),
				HTMLURL:     r.GetHTMLURL(),
				Homepage:    r.GetHomepage(),
				Topics:      r.Topics,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}
