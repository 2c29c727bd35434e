// pkg/messaging/manager.go
//
// Messaging channel manager. Outbound messages go to a webhook; sends are
// rate limited per minute and guarded by a circuit breaker so a dead
// endpoint fails fast instead of stalling the automation timers.

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/httpclient"
	cerr "github.com/cockroachdb/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNoChannel means no webhook is configured.
var ErrNoChannel = cerr.New("no messaging channel configured")

// Message is one outbound message.
type Message struct {
	Branch   string `json:"branch"`
	To       string `json:"to,omitempty"`
	Template string `json:"template,omitempty"`
	Body     string `json:"body"`
}

type Manager struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewManager builds a manager for webhookURL allowing perMinute sends.
func NewManager(webhookURL string, perMinute int, log *zap.Logger) (*Manager, error) {
	if webhookURL == "" {
		return nil, ErrNoChannel
	}
	if perMinute <= 0 {
		perMinute = 30
	}
	if log == nil {
		log = zap.NewNop()
	}

	m := &Manager{
		url:     webhookURL,
		client:  httpclient.New(15 * time.Second),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		log:     log,
	}
	m.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "messaging",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 3 },
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Messaging circuit changed state", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return m, nil
}

// Send delivers msg, waiting for a rate-limit token first.
func (m *Manager) Send(ctx context.Context, msg Message) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return cerr.Wrap(err, "rate limit")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return cerr.Wrap(err, "encode message")
	}

	_, err = m.breaker.Execute(func() (interface{}, error) {
		return nil, m.post(ctx, body)
	})
	if err != nil {
		m.log.Warn("Message not delivered", zap.String("template", msg.Template), zap.Error(err))
		return err
	}
	m.log.Debug("Message delivered", zap.String("template", msg.Template))
	return nil
}

func (m *Manager) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return cerr.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return cerr.Wrap(err, "post message")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return cerr.Newf("webhook returned %s", resp.Status)
	}
	return nil
}

// State reports the circuit state: closed, half-open or open.
func (m *Manager) State() string {
	return m.breaker.State().String()
}
