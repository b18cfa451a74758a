// Package persistence writes assembled orders through the remote order store
// and mirrors them into the shopper's local cache.
package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// RemoteReceipt is the identity assigned by the order store.
type RemoteReceipt struct {
	ID          string
	OrderNumber string
}

// RemoteWriter performs the authenticated order write.
type RemoteWriter interface {
	WriteOrder(ctx context.Context, sessionToken string, order orders.Order) (RemoteReceipt, error)
}

// Result reports what each channel did. CanonicalID is always set.
type Result struct {
	Order                orders.Order
	CanonicalID          string
	RemoteAttempted      bool
	RemoteWriteSucceeded bool
	LocalWriteSucceeded  bool
}

type persistenceRecorder interface {
	IncPersistence(channel, outcome string)
}

// Coordinator never fails a checkout: by the time it runs the payment has settled.
type Coordinator struct {
	remote  RemoteWriter
	local   LocalCache
	logg    *logger.Logger
	metrics persistenceRecorder
}

func NewCoordinator(remote RemoteWriter, local LocalCache, logg *logger.Logger, metrics persistenceRecorder) (*Coordinator, error) {
	if local == nil {
		return nil, fmt.Errorf("local cache required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Coordinator{remote: remote, local: local, logg: logg, metrics: metrics}, nil
}

// Persist attempts the remote write when a session token is present, then
// appends the order (with whichever id is canonical by then) to the local
// cache. Remote failures fall back silently to the local copy.
func (c *Coordinator) Persist(ctx context.Context, order orders.Order, clientID, sessionToken string) Result {
	ctx = c.logg.WithOrderID(ctx, order.LocalID)
	res := Result{Order: order}

	if token := strings.TrimSpace(sessionToken); token != "" && c.remote != nil {
		res.RemoteAttempted = true
		receipt, err := c.remote.WriteOrder(ctx, token, order)
		switch {
		case err != nil:
			c.logg.Error(ctx, "order.persist.remote_failed", err)
			c.record("remote", "failed")
		case strings.TrimSpace(receipt.ID) == "":
			c.logg.Error(ctx, "order.persist.remote_failed", fmt.Errorf("order store returned no id"))
			c.record("remote", "failed")
		default:
			res.Order = order.Reconciled(receipt.ID, receipt.OrderNumber)
			res.RemoteWriteSucceeded = true
			c.record("remote", "ok")
		}
	} else {
		c.record("remote", "skipped")
	}

	res.CanonicalID = res.Order.ID()

	if err := c.local.Append(ctx, clientID, res.Order); err != nil {
		c.logg.Error(c.logg.WithField(ctx, "canonical_id", res.CanonicalID), "order.persist.local_failed", err)
		c.record("local", "failed")
	} else {
		res.LocalWriteSucceeded = true
		c.record("local", "ok")
	}

	return res
}

func (c *Coordinator) record(channel, outcome string) {
	if c.metrics != nil {
		c.metrics.IncPersistence(channel, outcome)
	}
}
