// Package sendgrid sends transactional mail through the SendGrid v3 API.
package sendgrid

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/angelmondragon/storefront-checkout/pkg/breaker"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const mailSendPath = "/v3/mail/send"

// Message is one rendered transactional email.
type Message struct {
	ToEmail        string
	ToName         string
	Subject        string
	HTML           string
	Text           string
	IdempotencyKey string
	CustomArgs     map[string]string
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
	CustomArgs       map[string]string `json:"custom_args,omitempty"`
}

type Client struct {
	http    *resty.Client
	breaker *breaker.Breaker
	from    address
}

func NewClient(cfg config.SendgridConfig, rec breaker.StateRecorder, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, fmt.Errorf("sendgrid from email required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.sendgrid.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		breaker: breaker.New(breaker.Options{Name: "sendgrid"}, rec, logg),
		from:    address{Email: cfg.DefaultFrom, Name: cfg.FromName},
	}, nil
}

// Send posts msg and returns the provider message id. Any non-2xx is an error.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	if strings.TrimSpace(msg.ToEmail) == "" {
		return "", fmt.Errorf("recipient email required")
	}

	body := mailRequest{
		Personalizations: []personalization{{To: []address{{Email: msg.ToEmail, Name: msg.ToName}}}},
		From:             c.from,
		Subject:          msg.Subject,
		CustomArgs:       msg.CustomArgs,
	}
	if msg.Text != "" {
		body.Content = append(body.Content, content{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		body.Content = append(body.Content, content{Type: "text/html", Value: msg.HTML})
	}
	if len(body.Content) == 0 {
		return "", fmt.Errorf("message has no content")
	}

	var messageID string
	err := c.breaker.Do(func() error {
		req := c.http.R().SetContext(ctx).SetBody(body)
		if msg.IdempotencyKey != "" {
			req.SetHeader("Idempotency-Key", msg.IdempotencyKey)
		}
		resp, err := req.Post(mailSendPath)
		if err != nil {
			return fmt.Errorf("sendgrid request: %w", err)
		}
		if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
			return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
		}
		messageID = resp.Header().Get("X-Message-Id")
		return nil
	})
	return messageID, err
}
