// Package mail emails call recaps to participants over SMTP.
package mail

import (
	"context"
	"fmt"

	"github.com/dkeye/callrecap/internal/app/recap"
	"github.com/dkeye/callrecap/internal/domain"
	"github.com/rs/zerolog/log"
	gomail "github.com/wneessen/go-mail"
)

type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// sender is satisfied by *gomail.Client.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPMailer implements recap.Mailer.
type SMTPMailer struct {
	from     string
	fromName string
	client   sender
}

func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	name := cfg.FromName
	if name == "" {
		name = "Video Calling App"
	}
	return &SMTPMailer{from: from, fromName: name, client: client}, nil
}

// SendSummary never returns an error; failures are logged and reported as false.
func (m *SMTPMailer) SendSummary(ctx context.Context, to domain.Contributor, summary string, call recap.CallDetails) bool {
	logger := log.With().Str("module", "adapters.mail").Str("room", string(call.RoomID)).Str("user", to.Name).Logger()

	msg, err := m.message(to, summary, call)
	if err != nil {
		logger.Error().Err(err).Msg("build summary email")
		return false
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		logger.Error().Err(err).Str("email", to.Contact).Msg("send summary email")
		return false
	}
	logger.Info().Str("email", to.Contact).Msg("summary sent")
	return true
}

func (m *SMTPMailer) message(to domain.Contributor, summary string, call recap.CallDetails) (*gomail.Msg, error) {
	r, err := RenderSummary(to.Name, summary, call.CallDate)
	if err != nil {
		return nil, err
	}
	msg := gomail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.AddToFormat(to.Name, to.Contact); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	msg.Subject(r.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, r.Text)
	msg.AddAlternativeString(gomail.TypeTextHTML, r.HTML)
	return msg, nil
}
