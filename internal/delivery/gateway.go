package delivery

import (
	"context"

	"github.com/akratov/phoneauth/internal/logger"
)

// Gateway delivers a message to a phone out-of-band (SMS provider, etc).
// Best effort: a failed delivery never invalidates the issued code.
type Gateway interface {
	Send(ctx context.Context, phone string, message string) error
}

// ConsoleGateway writes the message to the log instead of sending it.
// Used in development and as the documented fallback when no provider is configured.
type ConsoleGateway struct {
	Logger logger.Logger
}

func (g ConsoleGateway) Send(_ context.Context, phone string, message string) error {
	g.Logger.Info("sms delivery (console fallback)", "phone", phone, "message", message)
	return nil
}

// GatewayFunc adapts a function to the Gateway interface
type GatewayFunc func(ctx context.Context, phone string, message string) error

func (f GatewayFunc) Send(ctx context.Context, phone string, message string) error {
	return f(ctx, phone, message)
}
