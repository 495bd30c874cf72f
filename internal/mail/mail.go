// Package mail delivers outgoing email. Request handlers hand messages to a
// Sender and never wait on network delivery.
package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/Kyz7/microblog/internal/logging"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers synchronously through an SMTP relay, upgrading to
// STARTTLS when the server offers it.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
}

// NewSMTPSender uses PLAIN auth only when username is set.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		timeout:  15 * time.Second,
	}
}

func (s *SMTPSender) newMessage(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return m, nil
}

func (s *SMTPSender) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(s.timeout),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}
	return gomail.NewClient(s.host, opts...)
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.newMessage(msg)
	if err != nil {
		return err
	}

	client, err := s.client()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// AsyncSender hands each message to next on its own goroutine. Delivery
// errors are logged, never returned.
type AsyncSender struct {
	next Sender
	log  logging.Logger
	wg   sync.WaitGroup
}

func NewAsyncSender(next Sender, log logging.Logger) *AsyncSender {
	if log == nil {
		log = logging.Discard()
	}
	return &AsyncSender{next: next, log: log.With("component", "mail")}
}

func (a *AsyncSender) Send(ctx context.Context, msg Message) error {
	ctx = context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.next.Send(ctx, msg); err != nil {
			a.log.Error(ctx, "mail delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
		}
	}()
	return nil
}

// Close waits for in-flight deliveries.
func (a *AsyncSender) Close() {
	a.wg.Wait()
}
