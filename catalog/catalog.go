// Package catalog resolves human readable service names against the global
// catalog.
package catalog

import (
	"context"
	"net/url"
	"strings"

	"github.com/MarcoABCardoso/ibmid-login/cache"
	"github.com/MarcoABCardoso/ibmid-login/upstream"
)

const (
	searchPath  = "/api/v1"
	KindService = "service"
)

// Entry is a catalog record. Only one level of Children is searched.
type Entry struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Children []Entry `json:"children,omitempty"`
}

type searchPage struct {
	Resources []Entry `json:"resources"`
}

type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
}

type Client struct {
	http         *upstream.Client
	baseURL      string
	clientID     string
	clientSecret string
	searches     *cache.Cache[[]Entry]
}

func New(httpClient *upstream.Client, opts Options, searches *cache.Cache[[]Entry]) *Client {
	return &Client{
		http:         httpClient,
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		searches:     searches,
	}
}

// ResolveResourceType finds the service entry whose name is exactly name.
// Absence is reported through the boolean, not as an error.
func (c *Client) ResolveResourceType(ctx context.Context, name string) (Entry, bool, error) {
	entries, err := c.search(ctx, name)
	if err != nil {
		return Entry{}, false, err
	}
	entry, ok := FindService(entries, name)
	return entry, ok, nil
}

func (c *Client) search(ctx context.Context, q string) ([]Entry, error) {
	return c.searches.GetOrLoad(ctx, q, func(ctx context.Context) ([]Entry, error) {
		var page searchPage
		err := c.http.JSON(ctx, upstream.Request{
			URL:      c.baseURL + searchPath,
			Query:    url.Values{"include": {"*"}, "q": {q}},
			Username: c.clientID,
			Password: c.clientSecret,
		}, &page)
		if err != nil {
			return nil, err
		}
		return page.Resources, nil
	})
}

// FindService returns the first entry, top level entries before their
// children, with kind "service" and exactly the given name.
func FindService(entries []Entry, name string) (Entry, bool) {
	candidates := make([]Entry, 0, len(entries))
	candidates = append(candidates, entries...)
	for _, e := range entries {
		candidates = append(candidates, e.Children...)
	}
	for _, e := range candidates {
		if e.Kind == KindService && e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}
