// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/config"
)

var tracer = otel.Tracer("codeanalyzer.notify")

// DefaultSMTPTimeout bounds one SMTP conversation.
const DefaultSMTPTimeout = 30 * time.Second

// EmailOptions configures an Email notifier.
type EmailOptions struct {
	Sender   string
	Password *config.Secret
	Server   string
	Port     int

	Timeout time.Duration
	Logger  *slog.Logger
}

// Email sends notifications as HTML mail over SMTP.
//
// # Description
//
// Each message opens its own connection, upgrades it with STARTTLS when the
// server offers it and authenticates with PLAIN auth as the sender.
//
// # Thread Safety
//
// Safe for concurrent use.
type Email struct {
	sender   string
	password *config.Secret
	server   string
	port     int
	timeout  time.Duration
	logger   *slog.Logger

	// now is swapped in tests.
	now func() time.Time
}

// NewEmail creates an Email notifier.
//
// # Outputs
//
//   - *Email: Ready notifier.
//   - error: Wraps config.ErrNotConfigured when sender or password is missing.
func NewEmail(opts EmailOptions) (*Email, error) {
	if opts.Sender == "" || !opts.Password.Present() {
		return nil, fmt.Errorf("email sender and password: %w", config.ErrNotConfigured)
	}
	if opts.Server == "" {
		return nil, fmt.Errorf("smtp server: %w", config.ErrNotConfigured)
	}
	if opts.Port <= 0 {
		opts.Port = 587
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSMTPTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Email{
		sender:   opts.Sender,
		password: opts.Password,
		server:   opts.Server,
		port:     opts.Port,
		timeout:  opts.Timeout,
		logger:   opts.Logger.With(slog.String("component", "notify")),
		now:      time.Now,
	}, nil
}

// NewEmailFromConfig builds an Email notifier from the email section.
func NewEmailFromConfig(cfg config.EmailConfig, logger *slog.Logger) (*Email, error) {
	return NewEmail(EmailOptions{
		Sender:   cfg.Sender,
		Password: cfg.Password,
		Server:   cfg.SMTPServer,
		Port:     cfg.SMTPPort,
		Logger:   logger,
	})
}

// Notify renders n and mails it to n.Recipient.
func (e *Email) Notify(ctx context.Context, n Notification) (err error) {
	ctx, span := tracer.Start(ctx, "Email.Notify")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.String("notify.folder", n.Folder),
		attribute.Int("notify.files", len(n.Files)),
	)

	if n.Recipient == "" {
		return ErrNoRecipient
	}

	body, err := RenderHTML(n)
	if err != nil {
		return err
	}
	msg, err := e.compose(n.Recipient, n.Subject(), body)
	if err != nil {
		return err
	}

	if err := e.deliver(ctx, n.Recipient, msg); err != nil {
		e.logger.Error("email delivery failed",
			slog.String("recipient", n.Recipient),
			slog.String("folder", n.Folder),
			slog.String("error", err.Error()))
		return err
	}

	e.logger.Info("email sent", slog.String("recipient", n.Recipient), slog.String("folder", n.Folder))
	return nil
}

// Check opens a session and authenticates without sending mail.
func (e *Email) Check(ctx context.Context) error {
	return e.session(ctx, func(*smtp.Client) error { return nil })
}

func (e *Email) deliver(ctx context.Context, to string, msg []byte) error {
	return e.session(ctx, func(c *smtp.Client) error {
		if err := c.Mail(e.sender); err != nil {
			return fmt.Errorf("smtp MAIL FROM: %w", err)
		}
		if err := c.Rcpt(to); err != nil {
			return fmt.Errorf("smtp RCPT TO: %w", err)
		}
		w, err := c.Data()
		if err != nil {
			return fmt.Errorf("smtp DATA: %w", err)
		}
		if _, err := w.Write(msg); err != nil {
			_ = w.Close()
			return fmt.Errorf("writing message: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("smtp DATA: %w", err)
		}
		return nil
	})
}

// session dials, negotiates TLS and auth, runs fn and quits.
func (e *Email) session(ctx context.Context, fn func(*smtp.Client) error) error {
	addr := net.JoinHostPort(e.server, strconv.Itoa(e.port))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, e.server)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: e.server, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp STARTTLS: %w", err)
		}
	}

	password, err := e.password.Reveal()
	if err != nil {
		return err
	}
	if err := c.Auth(smtp.PlainAuth("", e.sender, password, e.server)); err != nil {
		return fmt.Errorf("smtp authentication failed, check EMAIL_SENDER and EMAIL_PASSWORD: %w", err)
	}

	if err := fn(c); err != nil {
		return err
	}
	return c.Quit()
}

// compose builds a single-part HTML message with quoted-printable body.
func (e *Email) compose(to, subject, html string) ([]byte, error) {
	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }

	header("From", e.sender)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", e.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	header("Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(html)); err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}
	return buf.Bytes(), nil
}
