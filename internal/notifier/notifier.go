package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-resty/resty/v2"

	"github.com/avmarkin/ledgersvc/internal/httpclient"
)

var ErrSendFailed = errors.New("mail gateway rejected the message")

// Notifier delivers outbound messages. Delivery is fire-and-forget from the
// caller's point of view; failures are logged, not surfaced to users.
type Notifier interface {
	Send(ctx context.Context, recipient, subject string, templateData map[string]string) error
}

type message struct {
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject"`
	TemplateData map[string]string `json:"template_data"`
}

// MailGateway posts messages to an HTTP mail gateway.
type MailGateway struct {
	log    *slog.Logger
	client *resty.Client
}

var _ Notifier = (*MailGateway)(nil)

type Option func(m *MailGateway)

func WithLogger(logger *slog.Logger) Option {
	return func(m *MailGateway) {
		m.log = logger
	}
}

func WithClient(client *resty.Client) Option {
	return func(m *MailGateway) {
		m.client = client
	}
}

func NewMailGateway(opts ...Option) *MailGateway {
	gateway := &MailGateway{
		log:    slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		client: httpclient.New(),
	}

	for _, opt := range opts {
		opt(gateway)
	}

	return gateway
}

func (m *MailGateway) Send(ctx context.Context, recipient, subject string, templateData map[string]string) error {
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(message{
			Recipient:    recipient,
			Subject:      subject,
			TemplateData: templateData,
		}).
		Post("/api/messages")
	if err != nil {
		return fmt.Errorf("client.R: %w", err)
	}

	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode())
	}

	return nil
}

// LogNotifier writes messages to the log instead of delivering them. Used
// when no mail gateway is configured.
type LogNotifier struct {
	log *slog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) Send(_ context.Context, recipient, subject string, _ map[string]string) error {
	n.log.Info("Mail gateway is not configured, dropping message",
		slog.String("recipient", recipient),
		slog.String("subject", subject),
	)

	return nil
}
