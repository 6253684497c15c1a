// Package fakecloud is an in-process stand-in for the identity provider,
// accounts service, global catalog and resource controller, for tests.
package fakecloud

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	KeyID     = "fake-key-1"
	ExpiresIn = 3600
)

// User is an identity known to the fake provider.
type User struct {
	Email    string
	Accounts []string
}

// Server serves every upstream API on one listener. Populate the exported
// maps before issuing requests; they are read under the server lock.
type Server struct {
	*httptest.Server

	Passcodes map[string]User
	APIKeys   map[string]User
	// RejectRefreshFor makes refresh exchanges targeting these accounts fail.
	RejectRefreshFor map[string]bool

	Catalog       []map[string]any
	ResourcePages [][]map[string]any
	Instances     map[string]map[string]any
	Keys          map[string][]map[string]any
	Endpoints     map[string]any
	// SigningMethod signs access tokens and names the published key's alg.
	SigningMethod jwt.SigningMethod

	key     *rsa.PrivateKey
	mu      sync.Mutex
	refresh map[string]User
	calls   map[string]int
	queries map[string][]string
	seq     int
}

func New() *Server {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("fakecloud: generate key: %v", err))
	}
	s := &Server{
		Passcodes:        map[string]User{},
		APIKeys:          map[string]User{},
		RejectRefreshFor: map[string]bool{},
		Instances:        map[string]map[string]any{},
		Keys:             map[string][]map[string]any{},
		Endpoints:        map[string]any{},
		SigningMethod:    jwt.SigningMethodRS256,
		key:              key,
		refresh:          map[string]User{},
		calls:            map[string]int{},
		queries:          map[string][]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /identity/token", s.token)
	mux.HandleFunc("GET /identity/.well-known/openid-configuration", s.discovery)
	mux.HandleFunc("GET /identity/keys", s.jwks)
	mux.HandleFunc("GET /v1/accounts", s.accounts)
	mux.HandleFunc("GET /api/v1", s.catalog)
	mux.HandleFunc("GET /v2/resource_instances", s.listInstances)
	mux.HandleFunc("GET /v2/resource_instances/{id}", s.getInstance)
	mux.HandleFunc("GET /v2/resource_instances/{id}/resource_keys", s.listKeys)
	mux.HandleFunc("/v2/resource_instances/{id}/{rest...}", s.echo)
	mux.HandleFunc("PATCH /v2/resource_instances/{id}", s.echo)
	mux.HandleFunc("GET /endpoints/{name}", s.endpoints)
	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// Issuer is the iss claim of every token minted here.
func (s *Server) Issuer() string {
	return s.URL + "/identity"
}

// Calls reports how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls reports how many requests the server has handled.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Queries returns the raw query strings received for path, in order.
func (s *Server) Queries(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries[path]...)
}

// AccessToken mints a token for email scoped to account, expiring after ttl.
func (s *Server) AccessToken(email, account string, ttl time.Duration) string {
	return s.sign(s.key, email, account, ttl)
}

// ForeignToken is well formed but signed by a key the provider never published.
func (s *Server) ForeignToken(email, account string) string {
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("fakecloud: generate key: %v", err))
	}
	return s.sign(other, email, account, time.Hour)
}

// IssueRefreshToken registers a refresh token for user.
func (s *Server) IssueRefreshToken(user User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newRefreshLocked(user)
}

func (s *Server) sign(key *rsa.PrivateKey, email, account string, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":     s.Issuer(),
		"sub":     "IBMid-" + email,
		"email":   email,
		"account": map[string]any{"bss": account, "valid": true},
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(s.SigningMethod, claims)
	token.Header["kid"] = KeyID
	signed, err := token.SignedString(key)
	if err != nil {
		panic(fmt.Sprintf("fakecloud: sign token: %v", err))
	}
	return signed
}

func (s *Server) newRefreshLocked(user User) string {
	s.seq++
	rt := "rt-" + strconv.Itoa(s.seq)
	s.refresh[rt] = user
	return rt
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.queries[r.URL.Path] = append(s.queries[r.URL.Path], r.URL.RawQuery)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func iamError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"errorCode": code, "errorMessage": message})
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := r.BasicAuth(); !ok {
		iamError(w, http.StatusUnauthorized, "BXNIM0308E", "No authorization header found")
		return
	}
	if err := r.ParseForm(); err != nil {
		iamError(w, http.StatusBadRequest, "BXNIM0109E", "Invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var user User
	var account string
	switch r.PostForm.Get("grant_type") {
	case "urn:ibm:params:oauth:grant-type:passcode":
		u, ok := s.Passcodes[r.PostForm.Get("passcode")]
		if !ok {
			iamError(w, http.StatusBadRequest, "BXNIM0415E", "Provided passcode is invalid")
			return
		}
		user = u
	case "urn:ibm:params:oauth:grant-type:apikey":
		u, ok := s.APIKeys[r.PostForm.Get("apikey")]
		if !ok {
			iamError(w, http.StatusBadRequest, "BXNIM0415E", "Provided API key could not be found")
			return
		}
		user = u
		if len(u.Accounts) > 0 {
			account = u.Accounts[0]
		}
	case "refresh_token":
		u, ok := s.refresh[r.PostForm.Get("refresh_token")]
		if !ok {
			iamError(w, http.StatusBadRequest, "BXNIM0407E", "Provided refresh token is invalid")
			return
		}
		account = r.PostForm.Get("account")
		if account != "" && (s.RejectRefreshFor[account] || !contains(u.Accounts, account)) {
			iamError(w, http.StatusBadRequest, "BXNIM0440E", "Account "+account+" is not accessible")
			return
		}
		user = u
	default:
		iamError(w, http.StatusBadRequest, "BXNIM0109E", "Unsupported grant type")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  s.sign(s.key, user.Email, account, ExpiresIn*time.Second),
		"refresh_token": s.newRefreshLocked(user),
		"token_type":    "Bearer",
		"expires_in":    ExpiresIn,
		"expiration":    time.Now().Add(ExpiresIn * time.Second).Unix(),
	})
}

func (s *Server) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                 s.Issuer(),
		"authorization_endpoint": s.URL + "/identity/authorize",
		"token_endpoint":         s.URL + "/identity/token",
		"passcode_endpoint":      s.URL + "/identity/passcode",
		"jwks_uri":               s.URL + "/identity/keys",
	})
}

func (s *Server) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := s.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": KeyID,
			"use": "sig",
			"alg": s.SigningMethod.Alg(),
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (s *Server) bearerUser(r *http.Request) (string, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return &s.key.PublicKey, nil
	}, jwt.WithValidMethods([]string{s.SigningMethod.Alg()}))
	if err != nil {
		return "", false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	email, _ := claims["email"].(string)
	return email, email != ""
}

func (s *Server) userByEmail(email string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, users := range []map[string]User{s.Passcodes, s.APIKeys, s.refresh} {
		for _, u := range users {
			if u.Email == email {
				return u, true
			}
		}
	}
	return User{}, false
}

func (s *Server) accounts(w http.ResponseWriter, r *http.Request) {
	email, ok := s.bearerUser(r)
	if !ok {
		iamError(w, http.StatusUnauthorized, "BXNIM0407E", "Token is invalid")
		return
	}
	user, _ := s.userByEmail(email)
	resources := make([]map[string]any, 0, len(user.Accounts))
	for _, guid := range user.Accounts {
		resources = append(resources, map[string]any{
			"metadata": map[string]any{"guid": guid},
			"entity":   map[string]any{"name": "Account " + guid},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_results": len(resources),
		"resources":     resources,
	})
}

func (s *Server) catalog(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"resources": s.Catalog})
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := s.bearerUser(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status_code": 401, "message": "Unauthorized"})
		return false
	}
	return true
}

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if page >= len(s.ResourcePages) {
		writeJSON(w, http.StatusOK, map[string]any{"rows_count": 0, "next_url": nil, "resources": []any{}})
		return
	}
	rows := s.ResourcePages[page]
	var next any
	if page+1 < len(s.ResourcePages) {
		next = "/v2/resource_instances?page=" + strconv.Itoa(page+1)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows_count": len(rows), "next_url": next, "resources": rows})
}

func (s *Server) getInstance(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.mu.Lock()
	instance, ok := s.Instances[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"status_code": 404, "message": "Instance not found"})
		return
	}
	writeJSON(w, http.StatusOK, instance)
}

func (s *Server) listKeys(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.mu.Lock()
	keys := s.Keys[r.PathValue("id")]
	s.mu.Unlock()
	if keys == nil {
		keys = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows_count": len(keys), "resources": keys})
}

// echo answers any other resource instance call with what it received.
func (s *Server) echo(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	var body any
	_ = json.NewDecoder(r.Body).Decode(&body)
	w.Header().Set("X-Fake-Echo", "1")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"query":  r.URL.RawQuery,
		"body":   body,
	})
}

func (s *Server) endpoints(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	doc, ok := s.Endpoints[r.PathValue("name")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
