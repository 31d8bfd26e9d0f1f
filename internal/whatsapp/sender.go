package whatsapp

import (
	"context"
	"strings"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// Sender delivers a text reply to a WhatsApp number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// TwilioSender sends through the Twilio Messages API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
	logger *zap.Logger
}

// NewTwilioSender creates a sender for the given account. from is the
// WhatsApp-enabled Twilio number.
func NewTwilioSender(accountSID, authToken, from string, logger *zap.Logger) *TwilioSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, from: from, logger: logger}
}

func (s *TwilioSender) Send(_ context.Context, to, body string) error {
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(whatsappAddress(to))
	params.SetFrom(whatsappAddress(s.from))
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return apperr.New(apperr.ErrWhatsApp, "twilio send", err)
	}
	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	s.logger.Debug("whatsapp message sent", zap.String("to", to), zap.String("sid", sid))
	return nil
}

func whatsappAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + NormalizePhone(phone)
}

// LogSender writes replies to the log instead of sending them. It is used
// when no Twilio credentials are configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, body string) error {
	s.logger.Info("whatsapp reply (not sent)", zap.String("to", to), zap.String("body", body))
	return nil
}
