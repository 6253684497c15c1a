// Package resources reads the resource controller: instance listings,
// single instances, their keys, and raw management calls.
package resources

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MarcoABCardoso/ibmid-login/api"
	"github.com/MarcoABCardoso/ibmid-login/cache"
	"github.com/MarcoABCardoso/ibmid-login/upstream"
)

const instancesPath = "/v2/resource_instances"

type Client struct {
	http     *upstream.Client
	baseURL  string
	listings *cache.Cache[List]
}

func New(httpClient *upstream.Client, baseURL string, listings *cache.Cache[List]) *Client {
	return &Client{
		http:     httpClient,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		listings: listings,
	}
}

// ListAllResources follows next_url until it runs out or a page reports no
// rows, optionally restricted to one service type. Listings are cached per
// token and type.
func (c *Client) ListAllResources(ctx context.Context, token, resourceTypeID string) (List, error) {
	return c.listings.GetOrLoad(ctx, token+"|"+resourceTypeID, func(ctx context.Context) (List, error) {
		return c.listAll(ctx, token, resourceTypeID)
	})
}

func (c *Client) listAll(ctx context.Context, token, resourceTypeID string) (List, error) {
	all := []Instance{}
	current := page{NextURL: instancesPath, RowsCount: 1}
	pages := 0
	for current.NextURL != "" && current.RowsCount > 0 {
		all = append(all, current.Resources...)
		next, err := c.nextURL(current.NextURL, resourceTypeID)
		if err != nil {
			return List{}, err
		}
		current = page{}
		if err := c.http.JSON(ctx, upstream.Request{URL: next, Bearer: token}, &current); err != nil {
			return List{}, err
		}
		pages++
	}
	all = append(all, current.Resources...)

	zerolog.Ctx(ctx).Debug().Int("pages", pages).Int("rows", len(all)).Str("resource_id", resourceTypeID).Msg("Listed resource instances")
	return List{Resources: all, RowsCount: len(all)}, nil
}

// nextURL resolves a cursor against the controller and adds the type filter
// unless the cursor already carries it.
func (c *Client) nextURL(cursor, resourceTypeID string) (string, error) {
	u, err := url.Parse(cursor)
	if err != nil {
		return "", err
	}
	if resourceTypeID != "" {
		q := u.Query()
		if q.Get("resource_id") == "" {
			q.Set("resource_id", resourceTypeID)
			u.RawQuery = q.Encode()
		}
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	return c.baseURL + u.String(), nil
}

func (c *Client) instanceURL(id string) string {
	return c.baseURL + instancesPath + "/" + url.PathEscape(id)
}

// GetResource fetches one instance. A 404, or a body reporting an error
// status, is a normal "not found" outcome.
func (c *Client) GetResource(ctx context.Context, token, id string) (Instance, bool, error) {
	var instance Instance
	err := c.http.JSON(ctx, upstream.Request{URL: c.instanceURL(id), Bearer: token}, &instance)
	if upstream.IsStatus(err, http.StatusNotFound) {
		return Instance{}, false, nil
	}
	if err != nil {
		return Instance{}, false, err
	}
	if instance.StatusCode >= http.StatusBadRequest {
		return Instance{}, false, nil
	}
	return instance, true, nil
}

func (c *Client) ListResourceKeys(ctx context.Context, token, id string) (KeyList, error) {
	var keys KeyList
	if err := c.http.JSON(ctx, upstream.Request{URL: c.instanceURL(id) + "/resource_keys", Bearer: token}, &keys); err != nil {
		return KeyList{}, err
	}
	return keys, nil
}

// ManageRequest is a raw call against one instance.
type ManageRequest struct {
	Path   string
	Method string
	Params url.Values
	Header http.Header
	Body   []byte
}

// Manage forwards a call to the instance's management API and returns the
// controller's status, headers and body unchanged.
func (c *Client) Manage(ctx context.Context, token, id string, req ManageRequest) (api.Response, error) {
	header := http.Header{}
	for _, name := range []string{"Content-Type", "Accept", "If-Match"} {
		if v := req.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}
	resp, err := c.http.Do(ctx, upstream.Request{
		Method: req.Method,
		URL:    c.instanceURL(id) + req.Path,
		Query:  req.Params,
		Header: header,
		Bearer: token,
		Body:   req.Body,
	})
	if err != nil {
		return api.Response{}, err
	}
	return api.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}
