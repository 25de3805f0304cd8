// Package account keeps the signed in identity of a storefront customer and manages their profile.
package account

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/asaskevich/govalidator"

	"github.com/folioshop/storefront/libs/clients/gotrue"
	errorutils "github.com/folioshop/storefront/libs/errors"
	"github.com/folioshop/storefront/libs/logging"
)

const (
	msgInvalidEmail       = "Please enter a valid email address."
	msgPasswordRequired   = "Password cannot be empty."
	msgPasswordMismatch   = "Passwords do not match"
	msgSignInFailed       = "Sign in failed. Please check your credentials."
	msgSignUpFailed       = "Sign up failed. Please try again."
	msgUnsupportedOAuth   = "Unsupported sign in provider"
	msgUnexpectedError    = "An unexpected error occurred"
	msgSessionStartFailed = "Could not restore the previous session"
)

const (
	// MsgConfirmEmail is shown after a sign up that needs email confirmation.
	MsgConfirmEmail = "Account created! Please check your email and confirm your account before signing in."
	// MsgSignedUp is shown after a sign up that signed the user in.
	MsgSignedUp = "Account created! You are now signed in."
)

var (
	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("account: session context already started")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("account: session context closed")
	// ErrNotSignedIn is returned by operations that need a signed in user.
	ErrNotSignedIn = errorutils.NewFault(errorutils.ErrInvalidArgument, "You must be signed in", nil)
)

// OAuthProviders are the social sign in providers offered.
var OAuthProviders = []string{"github", "google"}

// Snapshot is a consistent view of the session state.
type Snapshot struct {
	User    *gotrue.User
	Session *gotrue.Session
}

// IsLoggedIn reports whether the snapshot has a user.
func (s Snapshot) IsLoggedIn() bool {
	return s.User != nil
}

// SignUpRequest creates an account.
type SignUpRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	FullName        string
}

// SignUpResult is the outcome of a successful sign up.
type SignUpResult struct {
	User              *gotrue.User
	NeedsConfirmation bool
	Message           string
}

// SessionContext holds the current user and session and keeps them in sync with
// the identity provider's auth state changes.
type SessionContext struct {
	provider gotrue.Client

	mu      sync.RWMutex
	user    *gotrue.User
	session *gotrue.Session
	started bool
	closed  bool
	detach  func()

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func(Snapshot)
}

// NewSessionContext returns a signed out session context backed by provider.
func NewSessionContext(provider gotrue.Client) *SessionContext {
	return &SessionContext{
		provider: provider,
		subs:     make(map[int]func(Snapshot)),
	}
}

// Start restores the session of refreshToken and begins listening for auth state changes.
// A failed restore leaves the context signed out and listening, and the error is returned.
func (c *SessionContext) Start(ctx context.Context, refreshToken string) error {
	logger := logging.Logger(ctx, "account.SessionContext.Start")

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}

	c.started = true
	c.mu.Unlock()

	var (
		sess *gotrue.Session
		err  error
	)

	if refreshToken != "" {
		sess, err = c.provider.RefreshSession(ctx, refreshToken)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to restore session")
			err = errorutils.NewFault(errorutils.ErrUpstream, msgSessionStartFailed+": "+errorutils.MessageOf(err), err)
			sess = nil
		}
	}

	detach := c.provider.OnAuthStateChange(c.handle)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		detach()
		return ErrClosed
	}

	c.detach = detach
	c.setLocked(sess)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)

	return err
}

// Close stops listening for auth state changes. It is safe to call more than once.
func (c *SessionContext) Close() error {
	c.mu.Lock()
	detach := c.detach
	c.detach = nil
	c.closed = true
	c.mu.Unlock()

	if detach != nil {
		detach()
	}

	return nil
}

// User returns the signed in user or nil.
func (c *SessionContext) User() *gotrue.User {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.user
}

// Session returns the current session or nil.
func (c *SessionContext) Session() *gotrue.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.session
}

// IsLoggedIn reports whether a user is signed in.
func (c *SessionContext) IsLoggedIn() bool {
	return c.User() != nil
}

// Snapshot returns the user and session read together.
func (c *SessionContext) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.snapshotLocked()
}

// Subscribe calls fn with a snapshot after every state change until unsubscribe is called.
func (c *SessionContext) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	var once sync.Once

	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

// SignIn signs in with email and password.
func (c *SessionContext) SignIn(ctx context.Context, email, password string) (*gotrue.User, error) {
	email = strings.TrimSpace(email)

	if !govalidator.IsEmail(email) {
		return nil, errorutils.NewFault(errorutils.ErrInvalidArgument, msgInvalidEmail, nil)
	}

	if password == "" {
		return nil, errorutils.NewFault(errorutils.ErrInvalidArgument, msgPasswordRequired, nil)
	}

	sess, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, providerFault(err)
	}

	if sess == nil || sess.User == nil {
		return nil, errorutils.NewFault(errorutils.ErrUpstream, msgSignInFailed, nil)
	}

	return sess.User, nil
}

// SignUp creates an account. An account that needs email confirmation stays signed out.
func (c *SessionContext) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	email := strings.TrimSpace(req.Email)

	if req.Password != req.ConfirmPassword {
		return nil, errorutils.NewFault(errorutils.ErrInvalidArgument, msgPasswordMismatch, nil)
	}

	if !govalidator.IsEmail(email) {
		return nil, errorutils.NewFault(errorutils.ErrInvalidArgument, msgInvalidEmail, nil)
	}

	if req.Password == "" {
		return nil, errorutils.NewFault(errorutils.ErrInvalidArgument, msgPasswordRequired, nil)
	}

	resp, err := c.provider.SignUp(ctx, gotrue.SignUpRequest{
		Email:    email,
		Password: req.Password,
		Data:     gotrue.UserMetadata{FullName: strings.TrimSpace(req.FullName)},
	})
	if err != nil {
		return nil, providerFault(err)
	}

	if resp == nil || resp.User == nil {
		return nil, errorutils.NewFault(errorutils.ErrUpstream, msgSignUpFailed, nil)
	}

	if resp.User.EmailConfirmedAt == nil {
		return &SignUpResult{User: resp.User, NeedsConfirmation: true, Message: MsgConfirmEmail}, nil
	}

	return &SignUpResult{User: resp.User, Message: MsgSignedUp}, nil
}

// SignOut revokes the current session. Being signed out already is not an error.
func (c *SessionContext) SignOut(ctx context.Context) error {
	sess := c.Session()
	if sess == nil {
		return nil
	}

	if err := c.provider.SignOut(ctx, sess.AccessToken); err != nil {
		logging.Logger(ctx, "account.SessionContext.SignOut").Warn().Err(err).Msg("failed to revoke session")
		return providerFault(err)
	}

	return nil
}

// OAuthURL returns the url a browser is sent to for signing in with provider.
func (c *SessionContext) OAuthURL(provider, redirectTo string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))

	i := sort.SearchStrings(OAuthProviders, provider)
	if i == len(OAuthProviders) || OAuthProviders[i] != provider {
		return "", errorutils.NewFault(errorutils.ErrInvalidArgument, msgUnsupportedOAuth, nil).WithData(OAuthProviders)
	}

	u, err := c.provider.AuthorizeURL(provider, redirectTo)
	if err != nil {
		return "", errorutils.NewFault(errorutils.ErrUpstream, msgUnexpectedError, err)
	}

	return u, nil
}

func (c *SessionContext) handle(ev gotrue.Event) {
	c.mu.Lock()

	switch ev.Type {
	case gotrue.SignedIn, gotrue.TokenRefreshed:
		c.setLocked(ev.Session)
	case gotrue.SignedOut:
		c.setLocked(nil)
	case gotrue.UserUpdated:
		if ev.User == nil {
			c.mu.Unlock()
			return
		}

		c.user = ev.User
		if c.session != nil {
			sess := *c.session
			sess.User = ev.User
			c.session = &sess
		}
	default:
		c.mu.Unlock()
		return
	}

	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

func (c *SessionContext) setLocked(sess *gotrue.Session) {
	c.session = sess
	c.user = nil
	if sess != nil {
		c.user = sess.User
	}
}

func (c *SessionContext) snapshotLocked() Snapshot {
	return Snapshot{User: c.user, Session: c.session}
}

// notify calls subscribers in subscription order outside the state lock
func (c *SessionContext) notify(snap Snapshot) {
	c.subMu.Lock()

	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}

	c.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// providerFault keeps the provider's message for display
func providerFault(err error) error {
	var apiErr *gotrue.APIError
	if errors.As(err, &apiErr) {
		kind := errorutils.ErrUpstream
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			kind = errorutils.ErrInvalidArgument
		}

		return errorutils.NewFault(kind, apiErr.Error(), err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errorutils.NewFault(errorutils.ErrUpstream, "Request timed out", err)
	}

	return errorutils.NewFault(errorutils.ErrUpstream, msgUnexpectedError, err)
}
