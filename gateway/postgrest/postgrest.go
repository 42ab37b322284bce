// Package postgrest implements the gateway against a hosted PostgREST
// endpoint, the deployment target in production.
package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/irsalhamdi/edtech-platform/gateway"
	"github.com/irsalhamdi/edtech-platform/rate"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type Config struct {
	URL      string
	APIKey   string
	Timeout  time.Duration
	LimitRPS float64
	Burst    int

	// Tokens supplies the signed-in user's access token. When nil the
	// API key is sent as the bearer, which PostgREST treats as the
	// anonymous role.
	Tokens oauth2.TokenSource

	Log logrus.FieldLogger
}

type Client struct {
	http   *resty.Client
	lim    *rate.Limiter
	tokens oauth2.TokenSource
	log    logrus.FieldLogger
}

func NewClient(cfg Config) *Client {
	httpc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.APIKey).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpc,
		lim:    rate.NewLimiter(cfg.Burst, 10, cfg.LimitRPS),
		tokens: cfg.Tokens,
		log:    cfg.Log,
	}
}

func (c *Client) Select(ctx context.Context, table string, filters ...gateway.Filter) ([]gateway.Record, error) {
	req, err := c.request(ctx, table)
	if err != nil {
		return nil, err
	}

	for _, f := range filters {
		req.SetQueryParam(f.Column, operand(f))
	}

	var rows []gateway.Record
	resp, err := req.SetResult(&rows).Get("/" + table)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", table, err)
	}
	if resp.IsError() {
		return nil, statusError("selecting from", table, resp)
	}

	return rows, nil
}

func (c *Client) Insert(ctx context.Context, table string, rec gateway.Record) error {
	req, err := c.request(ctx, table)
	if err != nil {
		return err
	}

	resp, err := req.
		SetHeader("Prefer", "return=minimal").
		SetBody(rec).
		Post("/" + table)
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	if resp.StatusCode() == http.StatusConflict {
		return fmt.Errorf("inserting into %s: %w", table, gateway.ErrConflict)
	}
	if resp.IsError() {
		return statusError("inserting into", table, resp)
	}

	return nil
}

func (c *Client) Update(ctx context.Context, table string, id string, patch gateway.Record) error {
	req, err := c.request(ctx, table)
	if err != nil {
		return err
	}

	resp, err := req.
		SetHeader("Prefer", "return=minimal").
		SetQueryParam("id", "eq."+id).
		SetBody(patch).
		Patch("/" + table)
	if err != nil {
		return fmt.Errorf("updating %s[%s]: %w", table, id, err)
	}
	if resp.StatusCode() == http.StatusConflict {
		return fmt.Errorf("updating %s[%s]: %w", table, id, gateway.ErrConflict)
	}
	if resp.IsError() {
		return statusError("updating", table, resp)
	}

	return nil
}

func (c *Client) Delete(ctx context.Context, table string, id string) error {
	req, err := c.request(ctx, table)
	if err != nil {
		return err
	}

	resp, err := req.
		SetQueryParam("id", "eq."+id).
		Delete("/" + table)
	if err != nil {
		return fmt.Errorf("deleting %s[%s]: %w", table, id, err)
	}
	if resp.IsError() {
		return statusError("deleting", table, resp)
	}

	return nil
}

// request prepares one throttled, authenticated request. The limiter
// is keyed per table.
func (c *Client) request(ctx context.Context, table string) (*resty.Request, error) {
	if err := c.lim.Wait(ctx, table); err != nil {
		return nil, fmt.Errorf("throttling %s request: %w", table, err)
	}

	c.log.WithFields(logrus.Fields{"table": table}).Debug("calling remote store")

	req := c.http.R().SetContext(ctx)

	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("fetching access token: %w", err)
		}
		req.SetAuthToken(tok.AccessToken)
	}

	return req, nil
}

func operand(f gateway.Filter) string {
	if f.OneOf {
		return "in.(" + strings.Join(f.Values, ",") + ")"
	}
	return "eq." + f.Values[0]
}

func statusError(verb string, table string, resp *resty.Response) error {
	return fmt.Errorf("%s %s: remote responded %d: %s", verb, table, resp.StatusCode(), resp.String())
}
