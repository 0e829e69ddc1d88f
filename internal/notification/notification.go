package notification

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// KindOTP indicates a one-time password delivery.
	KindOTP = "otp"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger instead of delivering
// them. It is used when no SMS provider is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// E164 prefixes a national mobile number with countryCode unless it already
// carries a leading '+'.
func E164(mobile, countryCode string) string {
	mobile = strings.TrimSpace(mobile)
	if strings.HasPrefix(mobile, "+") {
		return mobile
	}
	return countryCode + mobile
}
