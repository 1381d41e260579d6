// Package alerts notifies exhibit staff when a safety-critical policy rule
// fires. Notification is best-effort and must never block or fail the
// visitor-facing request.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier delivers crisis notifications to operators.
type Notifier interface {
	NotifyCrisis(ctx context.Context, sessionID, category, matchedTerm string)
}

// Opts holds configuration options for the Twilio SMS notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
}

// Option defines a configuration option for the Twilio SMS notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the sending phone number.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// WithTo sets the operator phone number receiving alerts.
func WithTo(to string) Option {
	return func(o *Opts) { o.To = to }
}

// TwilioNotifier sends operator alerts over SMS.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
	to     string
}

// NewTwilioNotifier creates an SMS notifier, falling back to TWILIO_*
// environment variables for unset options.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.To == "" {
		cfg.To = os.Getenv("ANIMA_ALERT_NUMBER")
	}

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("alert from and to numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioNotifier{client: client, from: cfg.From, to: cfg.To}, nil
}

// NotifyCrisis sends the alert on a background goroutine. Errors are logged
// and dropped.
func (n *TwilioNotifier) NotifyCrisis(ctx context.Context, sessionID, category, matchedTerm string) {
	body := fmt.Sprintf("Anima alert: %s rule matched %q in session %s. A staff check-in may be needed.", category, matchedTerm, sessionID)
	go func() {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(n.to)
		params.SetFrom(n.from)
		params.SetBody(body)

		if _, err := n.client.Api.CreateMessage(params); err != nil {
			slog.Error("Twilio crisis alert failed", "session", sessionID, "category", category, "error", err)
			return
		}
		slog.Info("Twilio crisis alert sent", "session", sessionID, "category", category)
	}()
}

// NoopNotifier is used when no alert channel is configured.
type NoopNotifier struct{}

// NotifyCrisis logs the event and does nothing else.
func (NoopNotifier) NotifyCrisis(ctx context.Context, sessionID, category, matchedTerm string) {
	slog.Warn("crisis policy hit with no alert channel configured", "session", sessionID, "category", category)
}
