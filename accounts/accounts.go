// Package accounts lists the billing accounts a token can reach.
package accounts

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/MarcoABCardoso/ibmid-login/upstream"
)

const accountsPath = "/v1/accounts"

type Metadata struct {
	GUID      string `json:"guid"`
	URL       string `json:"url,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type Account struct {
	Metadata Metadata        `json:"metadata"`
	Entity   json.RawMessage `json:"entity,omitempty"`
}

func (a Account) GUID() string {
	return a.Metadata.GUID
}

type Page struct {
	TotalResults int       `json:"total_results"`
	Resources    []Account `json:"resources"`
}

// AllowList is a set of account guids. A nil AllowList is not configured
// and admits every account; an empty one admits none.
type AllowList []string

func (l AllowList) Configured() bool {
	return l != nil
}

func (l AllowList) Allows(guid string) bool {
	if l == nil {
		return true
	}
	for _, allowed := range l {
		if allowed == guid {
			return true
		}
	}
	return false
}

// Filter keeps the accounts l admits, preserving order.
func (l AllowList) Filter(accounts []Account) []Account {
	if l == nil {
		return accounts
	}
	kept := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		if l.Allows(a.GUID()) {
			kept = append(kept, a)
		}
	}
	return kept
}

type Client struct {
	http    *upstream.Client
	baseURL string
	allow   AllowList
}

func New(httpClient *upstream.Client, baseURL string, allow AllowList) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		allow:   allow,
	}
}

// ListAccounts returns the accounts reachable with token that the allow-list
// admits. Upstream failures are returned as *upstream.StatusError.
func (c *Client) ListAccounts(ctx context.Context, token string) (Page, error) {
	var page Page
	if err := c.http.JSON(ctx, upstream.Request{URL: c.baseURL + accountsPath, Bearer: token}, &page); err != nil {
		return Page{}, err
	}
	if page.Resources == nil {
		page.Resources = []Account{}
	}
	if c.allow.Configured() {
		page.Resources = c.allow.Filter(page.Resources)
		page.TotalResults = len(page.Resources)
	}
	return page, nil
}
