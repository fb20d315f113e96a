package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives dispatched updates. Each update runs in its own
// goroutine; handlers own their error reporting and must not panic.
type Handler interface {
	HandleMessage(ctx context.Context, msg *Message)
	HandleCallback(ctx context.Context, cb *CallbackQuery)
}

// Poller long-polls getUpdates and dispatches each update to the handler.
type Poller struct {
	client  *Client
	handler Handler
	timeout int // long-poll window in seconds
	logger  zerolog.Logger
}

// NewPoller creates a poller.
func NewPoller(client *Client, handler Handler, timeoutSec int, logger zerolog.Logger) *Poller {
	if timeoutSec <= 0 {
		timeoutSec = 30
	}
	return &Poller{
		client:  client,
		handler: handler,
		timeout: timeoutSec,
		logger:  logger.With().Str("component", "poller").Logger(),
	}
}

// Run polls until the context is canceled. Transport errors are logged and
// retried with a short backoff; they never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64

	p.logger.Info().Int("timeout", p.timeout).Msg("Starting update poller")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error().Err(err).Msg("getUpdates failed, backing off")
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			go p.dispatch(ctx, update)
		}
	}
}

// dispatch routes one update. One inbound event, one handling flow.
func (p *Poller) dispatch(ctx context.Context, update Update) {
	switch {
	case update.CallbackQuery != nil:
		p.handler.HandleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		p.handler.HandleMessage(ctx, update.Message)
	default:
		p.logger.Debug().Int64("updateID", update.UpdateID).Msg("Ignoring update without message or callback")
	}
}
