// Package proxy maps a resource identifier and request path to a backend
// URL, then forwards the request there with the right credentials.
package proxy

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/MarcoABCardoso/ibmid-login/internal/errors"
	"github.com/MarcoABCardoso/ibmid-login/internal/metrics"
	"github.com/MarcoABCardoso/ibmid-login/resources"
	"github.com/MarcoABCardoso/ibmid-login/upstream"
)

const (
	// EndpointHeader selects an entry of an endpoints document, as a colon
	// separated key path such as "service-endpoints:regional:us-south:public".
	EndpointHeader = "X-Endpoint-Id"
	// EndpointsPath lists the endpoints document itself.
	EndpointsPath = "/endpoints"

	DataPlatformAlias = "watson_data"
)

var (
	systemRegionPattern     = regexp.MustCompile(`functions:([^:]+):a`)
	namespaceSegmentPattern = regexp.MustCompile(`([^:]+)::`)
)

// ResourceDirectory is what the resolver needs from the resource controller.
type ResourceDirectory interface {
	GetResource(ctx context.Context, token, id string) (resources.Instance, bool, error)
	ListResourceKeys(ctx context.Context, token, id string) (resources.KeyList, error)
}

type Options struct {
	DataPlatformURL string
	// Aliases maps extra well known identifiers to base URLs.
	Aliases map[string]string
	Metrics *metrics.Metrics
}

type Resolver struct {
	directory ResourceDirectory
	http      *upstream.Client
	aliases   map[string]string
	dataURL   string
	metrics   *metrics.Metrics
}

// NewResolver builds a resolver. httpClient fetches endpoints documents.
func NewResolver(directory ResourceDirectory, httpClient *upstream.Client, opts Options) *Resolver {
	dataURL := strings.TrimSuffix(opts.DataPlatformURL, "/")
	aliases := map[string]string{DataPlatformAlias: dataURL}
	for k, v := range opts.Aliases {
		aliases[k] = strings.TrimSuffix(v, "/")
	}
	return &Resolver{
		directory: directory,
		http:      httpClient,
		aliases:   aliases,
		dataURL:   dataURL,
		metrics:   opts.Metrics,
	}
}

// Request is what resolution looks at.
type Request struct {
	ResourceID string
	Path       string
	// EndpointID is the value of the X-Endpoint-Id header.
	EndpointID string
}

// ResolveTarget returns errors.ErrNotFound when the resource does not exist
// and errors.ErrNoEndpoint when it exists but offers no usable URL. Other
// errors are upstream failures.
func (r *Resolver) ResolveTarget(ctx context.Context, token string, req Request) (Target, error) {
	kind, target, err := r.resolve(ctx, token, req)
	outcome := "ok"
	switch {
	case errors.Is(err, errors.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, errors.ErrNoEndpoint):
		outcome = "no_endpoint"
	case err != nil:
		outcome = "error"
	}
	r.metrics.ObserveResolution(kind.String(), outcome)
	zerolog.Ctx(ctx).Debug().Stringer("kind", kind).Str("outcome", outcome).Msg("Resolved proxy target")
	return target, err
}

func (r *Resolver) resolve(ctx context.Context, token string, req Request) (Kind, Target, error) {
	if kind, ok := r.identifierKind(req.ResourceID); ok {
		target, err := r.fromIdentifier(kind, req)
		return kind, target, err
	}

	instance, found, err := r.directory.GetResource(ctx, token, req.ResourceID)
	if err != nil {
		return KindKeyed, Target{}, err
	}
	if !found {
		return KindKeyed, Target{}, errors.ErrNotFound
	}

	kind := instanceKind(instance)
	switch kind {
	case KindServerless:
		namespace := namespaceSegment(instance.GUID)
		if strings.HasPrefix(req.Path, "/web/") {
			return kind, newTarget(serverlessURL(instance.RegionID, "web", namespace), strings.TrimPrefix(req.Path, "/web")), nil
		}
		return kind, newTarget(serverlessURL(instance.RegionID, "namespaces", namespace), req.Path), nil
	case KindDataPlatform:
		return kind, newTarget(r.dataURL, req.Path), nil
	case KindAssistant:
		return kind, newTarget(fmt.Sprintf("https://api.%s.assistant.watson.cloud.ibm.com/instances/%s", instance.RegionID, instance.GUID), req.Path), nil
	case KindSpeechToText:
		return kind, newTarget(fmt.Sprintf("https://api.%s.speech-to-text.watson.cloud.ibm.com/instances/%s", instance.RegionID, instance.GUID), req.Path), nil
	default:
		target, err := r.fromKeys(ctx, token, req)
		return kind, target, err
	}
}

func (r *Resolver) fromIdentifier(kind Kind, req Request) (Target, error) {
	switch kind {
	case KindSystemNamespace:
		id := req.ResourceID
		if decoded, err := url.PathUnescape(id); err == nil {
			id = decoded
		}
		region := systemRegionPattern.FindStringSubmatch(id)
		namespace := namespaceSegmentPattern.FindStringSubmatch(id)
		if region == nil || namespace == nil {
			return Target{}, errors.ErrNotFound
		}
		return newTarget(serverlessURL(region[1], "namespaces", namespace[1]), req.Path), nil
	case KindAlias:
		return newTarget(r.aliases[req.ResourceID], req.Path), nil
	default:
		return Target{}, errors.ErrNotFound
	}
}

func serverlessURL(region, variant, namespace string) string {
	return fmt.Sprintf("https://%s.functions.cloud.ibm.com/api/v1/%s/%s", region, variant, url.PathEscape(namespace))
}

// namespaceSegment is the part of a guid before its trailing "::", decoded.
func namespaceSegment(guid string) string {
	segment := guid
	if m := namespaceSegmentPattern.FindStringSubmatch(guid); m != nil {
		segment = m[1]
	}
	if decoded, err := url.PathUnescape(segment); err == nil {
		return decoded
	}
	return segment
}

// Key roles in order of preference.
var rolePrecedence = [][]string{
	{"Manager"},
	{"Writer", "Editor"},
	{"Reader"},
}

// BestKey picks the key with the strongest role. ok is false when no key has
// a recognised role.
func BestKey(keys []resources.Key) (resources.Key, bool) {
	for _, roles := range rolePrecedence {
		for _, key := range keys {
			for _, role := range roles {
				if key.HasRole(role) {
					return key, true
				}
			}
		}
	}
	return resources.Key{}, false
}

func (r *Resolver) fromKeys(ctx context.Context, token string, req Request) (Target, error) {
	keys, err := r.directory.ListResourceKeys(ctx, token, req.ResourceID)
	if err != nil {
		return Target{}, err
	}
	key, ok := BestKey(keys.Resources)
	if !ok {
		return Target{}, errors.ErrNoEndpoint
	}
	creds := key.Credentials

	switch {
	case creds.URL != "":
		return newTarget(creds.URL, req.Path), nil
	case creds.APIEndpointURL != "":
		base, err := embedClientCredentials(creds.APIEndpointURL, creds.ClientID, creds.ClientSecret)
		if err != nil {
			return Target{}, errors.Wrapf(errors.ErrNoEndpoint, "api_endpoint_url: %v", err)
		}
		return newTarget(base, req.Path), nil
	case creds.Endpoints != "":
		return r.fromEndpointsDocument(ctx, creds.Endpoints, req)
	default:
		return Target{}, errors.ErrNoEndpoint
	}
}

// embedClientCredentials puts the client id and secret into the URL as basic
// auth and removes the dashboard path segment.
func embedClientCredentials(rawURL, clientID, clientSecret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if clientID != "" {
		u.User = url.UserPassword(clientID, clientSecret)
	}
	segments := strings.Split(u.Path, "/")
	kept := segments[:0]
	for _, s := range segments {
		if s != dashboardSegment {
			kept = append(kept, s)
		}
	}
	u.Path = strings.TrimSuffix(strings.Join(kept, "/"), "/")
	u.RawPath = ""
	return u.String(), nil
}

func (r *Resolver) fromEndpointsDocument(ctx context.Context, documentURL string, req Request) (Target, error) {
	if req.Path == EndpointsPath {
		if base, ok := strings.CutSuffix(strings.TrimSuffix(documentURL, "/"), EndpointsPath); ok {
			return newTarget(base, EndpointsPath), nil
		}
		return newTarget(documentURL, ""), nil
	}
	if req.EndpointID == "" {
		return Target{}, errors.ErrNoEndpoint
	}

	resp, err := r.http.Do(ctx, upstream.Request{URL: documentURL})
	if err != nil {
		return Target{}, err
	}
	if !resp.OK() || !gjson.ValidBytes(resp.Body) {
		return Target{}, errors.Wrapf(errors.ErrNoEndpoint, "endpoints document %s returned %d", documentURL, resp.StatusCode)
	}
	endpoint := gjson.GetBytes(resp.Body, endpointPath(req.EndpointID))
	if endpoint.Type != gjson.String || endpoint.Str == "" {
		return Target{}, errors.Wrapf(errors.ErrNoEndpoint, "endpoint %q not in document", req.EndpointID)
	}
	host := endpoint.Str
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return newTarget(host, req.Path), nil
}

// endpointPath turns a colon separated selector into a gjson path of literal
// object keys.
func endpointPath(selector string) string {
	steps := strings.Split(selector, ":")
	for i, step := range steps {
		steps[i] = gjsonEscaper.Replace(step)
	}
	return strings.Join(steps, ".")
}

var gjsonEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
	`!`, `\!`,
	`=`, `\=`,
	`<`, `\<`,
	`>`, `\>`,
	`%`, `\%`,
)
