package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const implicitTLSPort = 465

// Endpoint is an SMTP server address.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

var services = map[string]Endpoint{
	"gmail":   {Host: "smtp.gmail.com", Port: 587},
	"outlook": {Host: "smtp.office365.com", Port: 587},
	"yahoo":   {Host: "smtp.mail.yahoo.com", Port: 465},
	"icloud":  {Host: "smtp.mail.me.com", Port: 587},
}

// ResolveService returns the endpoint for a well-known mail service. An
// explicit host wins over the service name; a zero port defaults to 587.
func ResolveService(service, host string, port int) (Endpoint, error) {
	if host != "" {
		if port == 0 {
			port = 587
		}
		return Endpoint{Host: host, Port: port}, nil
	}

	ep, ok := services[strings.ToLower(strings.TrimSpace(service))]
	if !ok {
		return Endpoint{}, fmt.Errorf("unknown mail service %q", service)
	}

	if port != 0 {
		ep.Port = port
	}

	return ep, nil
}

type SMTPConfig struct {
	Endpoint
	// ImplicitTLS dials TLS directly; forced on for port 465.
	ImplicitTLS bool
	Username    string
	Password    string
	DialTimeout time.Duration
	// TLSConfig overrides the client TLS settings, mostly for tests.
	TLSConfig *tls.Config
}

// SMTPSender delivers one message per SMTP session. It is safe for
// concurrent use.
type SMTPSender struct {
	cfg   SMTPConfig
	nowFn func() time.Time
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	return &SMTPSender{cfg: cfg, nowFn: time.Now}
}

func (s *SMTPSender) tlsConfig() *tls.Config {
	if s.cfg.TLSConfig != nil {
		return s.cfg.TLSConfig.Clone()
	}

	return &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
}

func (s *SMTPSender) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}
	if s.cfg.ImplicitTLS || s.cfg.Port == implicitTLSPort {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: s.tlsConfig()}
		conn, err := tlsDialer.DialContext(ctx, "tcp", s.cfg.Addr())
		if err != nil {
			return nil, fmt.Errorf("dial smtps %s: %w", s.cfg.Addr(), err)
		}
		return conn, nil
	}

	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial smtp %s: %w", s.cfg.Addr(), err)
	}

	return conn, nil
}

// Send runs one SMTP session bounded by ctx: STARTTLS when offered, PLAIN
// auth when a username is set, then MAIL, RCPT and DATA.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	raw, err := Compose(msg, s.nowFn())
	if err != nil {
		return err
	}

	rcpts, err := parseAddresses(msg.To)
	if err != nil {
		return err
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp.NewClient: %w", err)
	}
	defer client.Close()

	if _, isTLS := conn.(*tls.Conn); !isTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err = client.StartTLS(s.tlsConfig()); err != nil {
				return fmt.Errorf("smtp.Client.StartTLS: %w", err)
			}
		}
	}

	if s.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return fmt.Errorf("smtp server %s does not offer AUTH", s.cfg.Host)
		}
		if err = client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp.Client.Auth: %w", err)
		}
	}

	from, err := parseAddresses([]string{msg.From})
	if err != nil {
		return err
	}

	if err = client.Mail(from[0].Address); err != nil {
		return fmt.Errorf("smtp.Client.Mail: %w", err)
	}

	for _, rcpt := range rcpts {
		if err = client.Rcpt(rcpt.Address); err != nil {
			return fmt.Errorf("smtp.Client.Rcpt %s: %w", rcpt.Address, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp.Client.Data: %w", err)
	}

	if _, err = w.Write(raw); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	if err = client.Quit(); err != nil {
		return fmt.Errorf("smtp.Client.Quit: %w", err)
	}

	return nil
}
