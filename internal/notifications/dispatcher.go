// Package notifications renders and sends order confirmation emails and
// tracks their delivery status.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/sendgrid"
)

const defaultSendTimeout = 15 * time.Second

// Mailer is the transactional email transport. *sendgrid.Client satisfies it.
type Mailer interface {
	Send(ctx context.Context, msg sendgrid.Message) (string, error)
}

type emailRecorder interface {
	IncEmail(outcome string)
}

type Dispatcher struct {
	mailer  Mailer
	logg    *logger.Logger
	metrics emailRecorder
	timeout time.Duration
}

func NewDispatcher(mailer Mailer, logg *logger.Logger, metrics emailRecorder) (*Dispatcher, error) {
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{mailer: mailer, logg: logg, metrics: metrics, timeout: defaultSendTimeout}, nil
}

// SendConfirmation makes one delivery attempt and reduces every failure to
// EmailStatusFailed. It never retries.
func (d *Dispatcher) SendConfirmation(ctx context.Context, order orders.Order) enums.EmailStatus {
	ctx = d.logg.WithOrderID(ctx, order.ID())

	rendered, err := Render(order)
	if err != nil {
		d.logg.Error(ctx, "confirmation.render_failed", err)
		d.record(enums.EmailStatusFailed)
		return enums.EmailStatusFailed
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	messageID, err := d.mailer.Send(sendCtx, sendgrid.Message{
		ToEmail:        order.Shipping.Email,
		ToName:         order.Shipping.FullName(),
		Subject:        rendered.Subject,
		HTML:           rendered.HTML,
		Text:           rendered.Text,
		IdempotencyKey: "order-confirmation-" + order.ID(),
		CustomArgs:     map[string]string{"order_id": order.ID()},
	})
	if err != nil {
		d.logg.WarnErr(ctx, "confirmation.send_failed", err)
		d.record(enums.EmailStatusFailed)
		return enums.EmailStatusFailed
	}

	d.logg.Info(d.logg.WithField(ctx, "message_id", messageID), "confirmation.sent")
	d.record(enums.EmailStatusSent)
	return enums.EmailStatusSent
}

func (d *Dispatcher) record(status enums.EmailStatus) {
	if d.metrics != nil {
		d.metrics.IncEmail(status.String())
	}
}
