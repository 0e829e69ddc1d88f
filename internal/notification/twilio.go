package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier sends SMS through the Twilio Messages API.
type TwilioNotifier struct {
	api    messageCreator
	from   string
	logger *slog.Logger
}

// NewTwilioNotifier builds a notifier authenticated with the account SID and
// auth token, sending from the given Twilio number.
func NewTwilioNotifier(accountSID, authToken, from string, logger *slog.Logger) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{api: client.Api, from: from, logger: logger}
}

// Send delivers message.Body to message.Destination, which must be in E.164 form.
func (n *TwilioNotifier) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(message.Destination)
	params.SetFrom(n.from)
	params.SetBody(message.Body)

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	if n.logger != nil {
		sid := ""
		if resp != nil && resp.Sid != nil {
			sid = *resp.Sid
		}
		n.logger.Info("sms sent", "kind", message.Kind, "destination", message.Destination, "sid", sid)
	}
	return nil
}
