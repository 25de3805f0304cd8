package gotrue

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientWithPrometheus implements Client interface with all methods wrapped
// with Prometheus metrics
type ClientWithPrometheus struct {
	base         Client
	instanceName string
}

var clientDurationSummaryVec = promauto.NewSummaryVec(
	prometheus.SummaryOpts{
		Name:       "gotrue_client_duration_seconds",
		Help:       "client runtime duration and result",
		MaxAge:     time.Minute,
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	},
	[]string{"instance_name", "method", "result"})

// NewClientWithPrometheus returns an instance of the Client decorated with prometheus summary metric
func NewClientWithPrometheus(base Client, instanceName string) ClientWithPrometheus {
	return ClientWithPrometheus{
		base:         base,
		instanceName: instanceName,
	}
}

func (_d ClientWithPrometheus) observe(method string, since time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	clientDurationSummaryVec.WithLabelValues(_d.instanceName, method, result).Observe(time.Since(since).Seconds())
}

// SignInWithPassword implements Client
func (_d ClientWithPrometheus) SignInWithPassword(ctx context.Context, email, password string) (sp1 *Session, err error) {
	defer func(_since time.Time) { _d.observe("SignInWithPassword", _since, err) }(time.Now())
	return _d.base.SignInWithPassword(ctx, email, password)
}

// SignUp implements Client
func (_d ClientWithPrometheus) SignUp(ctx context.Context, req SignUpRequest) (sp1 *SignUpResult, err error) {
	defer func(_since time.Time) { _d.observe("SignUp", _since, err) }(time.Now())
	return _d.base.SignUp(ctx, req)
}

// SignOut implements Client
func (_d ClientWithPrometheus) SignOut(ctx context.Context, accessToken string) (err error) {
	defer func(_since time.Time) { _d.observe("SignOut", _since, err) }(time.Now())
	return _d.base.SignOut(ctx, accessToken)
}

// RefreshSession implements Client
func (_d ClientWithPrometheus) RefreshSession(ctx context.Context, refreshToken string) (sp1 *Session, err error) {
	defer func(_since time.Time) { _d.observe("RefreshSession", _since, err) }(time.Now())
	return _d.base.RefreshSession(ctx, refreshToken)
}

// GetUser implements Client
func (_d ClientWithPrometheus) GetUser(ctx context.Context, accessToken string) (up1 *User, err error) {
	defer func(_since time.Time) { _d.observe("GetUser", _since, err) }(time.Now())
	return _d.base.GetUser(ctx, accessToken)
}

// UpdateUser implements Client
func (_d ClientWithPrometheus) UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) (up1 *User, err error) {
	defer func(_since time.Time) { _d.observe("UpdateUser", _since, err) }(time.Now())
	return _d.base.UpdateUser(ctx, accessToken, attrs)
}

// AuthorizeURL implements Client
func (_d ClientWithPrometheus) AuthorizeURL(provider, redirectTo string) (string, error) {
	return _d.base.AuthorizeURL(provider, redirectTo)
}

// OnAuthStateChange implements Client
func (_d ClientWithPrometheus) OnAuthStateChange(fn Listener) func() {
	return _d.base.OnAuthStateChange(fn)
}
