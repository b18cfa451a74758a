package orderstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/angelmondragon/storefront-checkout/pkg/breaker"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

const ordersPath = "/api/v1/orders"

// ErrUnparsable marks a 2xx response whose body could not be decoded.
var ErrUnparsable = errors.New("order store response unparsable")

// StatusError is a non-2xx response from the order store.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("order store returned %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("order store returned %d", e.StatusCode)
}

// Client posts orders to the order store through a circuit breaker.
type Client struct {
	http    *resty.Client
	breaker *breaker.Breaker
	logg    *logger.Logger
}

func NewClient(cfg config.OrderStoreConfig, rec breaker.StateRecorder, logg *logger.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("order store base url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logg == nil {
		logg = logger.Nop()
	}

	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	cb := breaker.New(breaker.Options{
		Name:      "order-store",
		Timeout:   cfg.BreakerTimeout,
		IsFailure: upstreamFailure,
	}, rec, logg)

	return &Client{
		http:    httpClient,
		breaker: cb,
		logg:    logg,
	}, nil
}

// CreateOrder writes one order on behalf of the bearer of sessionToken.
func (c *Client) CreateOrder(ctx context.Context, sessionToken string, req CreateOrderRequest) (CreateOrderResponse, error) {
	var out CreateOrderResponse
	err := c.breaker.Do(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(sessionToken).
			SetHeader("Idempotency-Key", req.ClientOrderID).
			SetBody(req).
			Post(ordersPath)
		if err != nil {
			return fmt.Errorf("post order: %w", err)
		}

		var env types.Envelope[CreateOrderResponse]
		decodeErr := json.Unmarshal(resp.Body(), &env)

		if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
			se := &StatusError{StatusCode: resp.StatusCode()}
			if decodeErr == nil && env.Error != nil {
				se.Code, se.Message = env.Error.Code, env.Error.Message
			}
			return se
		}
		if decodeErr != nil {
			return fmt.Errorf("%w: %v", ErrUnparsable, decodeErr)
		}
		if env.Data == nil || strings.TrimSpace(env.Data.ID) == "" {
			return fmt.Errorf("%w: missing id", ErrUnparsable)
		}
		out = *env.Data
		return nil
	})
	if err != nil {
		return CreateOrderResponse{}, err
	}

	ctx = c.logg.WithFields(ctx, map[string]any{"order_id": out.ID, "order_number": out.OrderNumber})
	c.logg.Debug(ctx, "order_store.order_created")
	return out, nil
}

// upstreamFailure reports whether err reflects the order store's health.
// Rejections of the caller's own request (4xx) do not trip the breaker.
func upstreamFailure(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return true
	}
	switch se.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return se.StatusCode >= http.StatusInternalServerError
}

// State reports the client's breaker state.
func (c *Client) State() string {
	return c.breaker.State()
}
