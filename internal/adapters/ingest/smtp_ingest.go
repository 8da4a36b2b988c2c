package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
)

const snippetLength = 200

// SMTPIngest receives email over SMTP and feeds it into the triage pipeline.
// It is meant to sit behind an MTA (e.g. as a Postfix content filter target);
// each accepted message is classified and stored per recipient mailbox.
type SMTPIngest struct {
	pipeline *core.Pipeline
	logger   *zap.Logger
	cfg      config.IngestConfig
	server   *smtp.Server
}

// NewSMTPIngest creates a new SMTP ingest surface
func NewSMTPIngest(pipeline *core.Pipeline, cfg config.IngestConfig, logger *zap.Logger) *SMTPIngest {
	return &SMTPIngest{
		pipeline: pipeline,
		logger:   logger,
		cfg:      cfg,
	}
}

// IngestEmail runs one email through the triage pipeline
func (i *SMTPIngest) IngestEmail(ctx context.Context, email *core.Email) (*core.Email, error) {
	return i.pipeline.IngestEmail(ctx, email)
}

// Start starts the SMTP server
func (i *SMTPIngest) Start() error {
	i.server = smtp.NewServer(&smtpBackend{ingest: i})

	i.server.Addr = i.cfg.ListenAddress
	i.server.Domain = i.cfg.Domain
	i.server.ReadTimeout = 30 * time.Second
	i.server.WriteTimeout = 30 * time.Second
	i.server.MaxMessageBytes = int64(i.cfg.MaxMessageBytes)
	i.server.MaxRecipients = i.cfg.MaxRecipients
	i.server.AllowInsecureAuth = true

	i.logger.Info("SMTP ingest starting", zap.String("address", i.cfg.ListenAddress))

	go func() {
		if err := i.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				i.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP server
func (i *SMTPIngest) Stop() error {
	if i.server != nil {
		return i.server.Close()
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	ingest *SMTPIngest
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		ingest:     b.ingest,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	ingest     *SMTPIngest
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed here)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data handles the email data. Every recipient is treated as a mailbox
// owner, so a message with multiple recipients is triaged once per mailbox.
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.ingest.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.ingest.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	textContent, err := extractTextFromMessage(msg)
	if err != nil {
		s.ingest.logger.Error("Failed to extract text content", zap.Error(err))
		return err
	}

	from := msg.Header.Get("From")
	if from == "" {
		from = s.sender
	}

	date := time.Now()
	if d, err := msg.Header.Date(); err == nil {
		date = d
	}

	id := strings.Trim(msg.Header.Get("Message-Id"), "<>")
	if id == "" {
		id = fmt.Sprintf("ingest-%d", time.Now().UnixNano())
	}

	threadID := strings.Trim(msg.Header.Get("In-Reply-To"), "<>")
	if refs := strings.Fields(msg.Header.Get("References")); len(refs) > 0 {
		threadID = strings.Trim(refs[0], "<>")
	}

	for _, recipient := range s.recipients {
		email := &core.Email{
			ID:       id,
			Owner:    recipient,
			ThreadID: threadID,
			Subject:  msg.Header.Get("Subject"),
			From:     from,
			Snippet:  makeSnippet(textContent),
			Body:     textContent,
			Date:     date,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		stored, err := s.ingest.IngestEmail(ctx, email)
		cancel()
		if err != nil {
			s.ingest.logger.Error("Failed to ingest email",
				zap.Error(err),
				zap.String("owner", recipient),
				zap.String("from", from))
			return fmt.Errorf("451 temporary ingest failure: %w", err)
		}

		s.ingest.logger.Info("Ingested email",
			zap.String("email_id", stored.ID),
			zap.String("owner", recipient),
			zap.String("from", from),
			zap.String("category", stored.Category),
			zap.Float64("confidence", stored.Classification.Confidence))
	}

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}

func makeSnippet(body string) string {
	snippet := strings.Join(strings.Fields(body), " ")
	if len(snippet) > snippetLength {
		snippet = snippet[:snippetLength]
	}
	return snippet
}
