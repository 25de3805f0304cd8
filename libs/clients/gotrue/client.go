// Package gotrue is a client of the hosted identity provider auth api.
package gotrue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/folioshop/storefront/libs/clients"
	"github.com/folioshop/storefront/libs/middleware"
)

const basePath = "/auth/v1"

// EventType is the kind of an auth state change.
type EventType string

const (
	SignedIn       EventType = "SIGNED_IN"
	SignedOut      EventType = "SIGNED_OUT"
	TokenRefreshed EventType = "TOKEN_REFRESHED"
	UserUpdated    EventType = "USER_UPDATED"
)

// Event is pushed to listeners on every auth state change.
// Session is nil on SignedOut. User is set on UserUpdated.
type Event struct {
	Type    EventType
	Session *Session
	User    *User
}

// Listener receives auth state changes.
type Listener func(Event)

// Client abstracts over the underlying client
type Client interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error)
	SignOut(ctx context.Context, accessToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (*User, error)
	UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) (*User, error)
	AuthorizeURL(provider, redirectTo string) (string, error)
	OnAuthStateChange(fn Listener) (unsubscribe func())
}

// UserMetadata is the profile data kept on a user.
type UserMetadata struct {
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// User is an identity record.
type User struct {
	ID                 string       `json:"id"`
	Email              string       `json:"email"`
	UserMetadata       UserMetadata `json:"user_metadata"`
	EmailConfirmedAt   *time.Time   `json:"email_confirmed_at,omitempty"`
	ConfirmationSentAt *time.Time   `json:"confirmation_sent_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

// Session is a token record.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// SignUpRequest creates an account.
type SignUpRequest struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Data     UserMetadata `json:"data"`
}

// SignUpResult carries a session only when the account needs no email confirmation.
type SignUpResult struct {
	User    *User
	Session *Session
}

// UserAttributes updates the signed in user. Empty fields are left unchanged.
type UserAttributes struct {
	Password string        `json:"password,omitempty"`
	Data     *UserMetadata `json:"data,omitempty"`
}

// APIError is an error response of the auth api.
type APIError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return fmt.Sprintf("gotrue: status %d", e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

type tokenOptions struct {
	GrantType string `url:"grant_type"`
}

// GenerateQueryString - implement the QueryStringBody interface
func (o *tokenOptions) GenerateQueryString() (url.Values, error) {
	return query.Values(o)
}

type authorizeOptions struct {
	Provider   string `url:"provider"`
	RedirectTo string `url:"redirect_to,omitempty"`
}

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

// HTTPClient wraps http.Client for interacting with the auth api
type HTTPClient struct {
	client *clients.SimpleHTTPClient
	apiKey string

	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

// New returns an instrumented client of the auth api at baseURL
func New(baseURL, apiKey string) (Client, error) {
	hc := &http.Client{
		Timeout:   clients.DefaultTimeout,
		Transport: middleware.InstrumentRoundTripper(http.DefaultTransport, "gotrue"),
	}

	cl, err := NewWithHTTPClient(baseURL, apiKey, hc)
	if err != nil {
		return nil, err
	}

	return NewClientWithPrometheus(cl, "gotrue_client"), nil
}

// NewWithHTTPClient returns a client using hc for transport
func NewWithHTTPClient(baseURL, apiKey string, hc *http.Client) (*HTTPClient, error) {
	client, err := clients.NewWithHTTPClient(baseURL, apiKey, hc)
	if err != nil {
		return nil, err
	}

	result := &HTTPClient{
		client:    client,
		apiKey:    apiKey,
		listeners: make(map[int]Listener),
	}

	return result, nil
}

// SignInWithPassword exchanges credentials for a session
func (c *HTTPClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/token", "", passwordGrant{Email: email, Password: password}, &tokenOptions{GrantType: "password"})
	if err != nil {
		return nil, err
	}

	var resp Session
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}

	c.emit(Event{Type: SignedIn, Session: &resp})

	return &resp, nil
}

// SignUp creates an account
func (c *HTTPClient) SignUp(ctx context.Context, sr SignUpRequest) (*SignUpResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/signup", "", sr, nil)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.do(ctx, req, &raw); err != nil {
		return nil, err
	}

	result, err := parseSignUp(raw)
	if err != nil {
		return nil, err
	}

	if result.Session != nil {
		c.emit(Event{Type: SignedIn, Session: result.Session})
	}

	return result, nil
}

// SignOut revokes the session of accessToken. Listeners are told even when revocation fails.
func (c *HTTPClient) SignOut(ctx context.Context, accessToken string) error {
	defer c.emit(Event{Type: SignedOut})

	req, err := c.newRequest(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
	if err != nil {
		return err
	}

	return c.do(ctx, req, nil)
}

// RefreshSession exchanges a refresh token for a new session
func (c *HTTPClient) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/token", "", refreshGrant{RefreshToken: refreshToken}, &tokenOptions{GrantType: "refresh_token"})
	if err != nil {
		return nil, err
	}

	var resp Session
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}

	c.emit(Event{Type: TokenRefreshed, Session: &resp})

	return &resp, nil
}

// GetUser returns the user of accessToken
func (c *HTTPClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/user", accessToken, nil, nil)
	if err != nil {
		return nil, err
	}

	var resp User
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// UpdateUser updates the user of accessToken
func (c *HTTPClient) UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodPut, "/user", accessToken, attrs, nil)
	if err != nil {
		return nil, err
	}

	var resp User
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}

	c.emit(Event{Type: UserUpdated, User: &resp})

	return &resp, nil
}

// AuthorizeURL returns the url a browser is sent to for signing in with provider
func (c *HTTPClient) AuthorizeURL(provider, redirectTo string) (string, error) {
	if provider == "" {
		return "", errors.New("gotrue: provider is required")
	}

	v, err := query.Values(authorizeOptions{Provider: provider, RedirectTo: redirectTo})
	if err != nil {
		return "", fmt.Errorf("failed to generate query string: %w", err)
	}

	result := c.client.BaseURL.ResolveReference(&url.URL{
		Path:     basePath + "/authorize",
		RawQuery: v.Encode(),
	})

	return result.String(), nil
}

// OnAuthStateChange registers fn for auth state changes until unsubscribe is called
func (c *HTTPClient) OnAuthStateChange(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	var once sync.Once

	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// ListenerCount returns the number of registered listeners
func (c *HTTPClient) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.listeners)
}

// emit calls listeners in registration order outside the lock
func (c *HTTPClient) emit(ev Event) {
	c.mu.Lock()

	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}

	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path, accessToken string, body interface{}, qsb clients.QueryStringBody) (*http.Request, error) {
	req, err := c.client.NewRequest(ctx, method, basePath+path, body, qsb)
	if err != nil {
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	if accessToken != "" {
		req.Header.Set("authorization", "Bearer "+accessToken)
	}

	return req, nil
}

func (c *HTTPClient) do(ctx context.Context, req *http.Request, v interface{}) error {
	if _, err := c.client.Do(ctx, req, v); err != nil {
		return apiErrorOf(err)
	}

	return nil
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func apiErrorOf(err error) error {
	state, ok := clients.HTTPStateOf(err)
	if !ok {
		return err
	}

	result := &APIError{Status: state.Status, Cause: err}

	body, ok := clients.ResponseBodyOf(err)
	if !ok {
		return result
	}

	var resp errorResponse
	if jerr := json.Unmarshal([]byte(body), &resp); jerr != nil {
		return result
	}

	result.Code = firstNonEmpty(resp.ErrorCode, resp.Error)
	result.Message = firstNonEmpty(resp.ErrorDescription, resp.Msg, resp.Message, resp.Error)

	return result
}

// parseSignUp reads either a session or a bare user, depending on whether confirmation is required.
func parseSignUp(raw []byte) (*SignUpResult, error) {
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode sign up response: %w", err)
	}

	if sess.AccessToken != "" {
		return &SignUpResult{User: sess.User, Session: &sess}, nil
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode sign up response: %w", err)
	}

	if user.ID == "" && sess.User != nil {
		user = *sess.User
	}

	return &SignUpResult{User: &user}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}
