// Package stripe adapts the Stripe REST API to the domain's CatalogProvider.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meter/config"
	"meter/internal/domain/entity"
	"meter/internal/domain/service"
	"meter/internal/errors"

	"golang.org/x/time/rate"
)

const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 8 * time.Second
	jitterFactor   = 0.2

	maxErrorBody = 64 << 10
)

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: %d %s: %s", e.StatusCode, e.Type, e.Message)
}

// Retryable reports whether repeating the request may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Client is a rate-limited Stripe client for catalog reads.
type Client struct {
	baseURL    string
	secretKey  string
	userAgent  string
	maxRetries int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds the provider from config.
func NewClient(cfg *config.Config, logger *slog.Logger) service.CatalogProvider {
	return newClient(cfg.Stripe, logger, &http.Client{Timeout: cfg.Stripe.Timeout})
}

func newClient(cfg config.StripeConfig, logger *slog.Logger, httpClient *http.Client) *Client {
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
		userAgent:  cfg.AppName,
		maxRetries: cfg.MaxNetworkRetries,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		logger:     logger,
		sleep:      sleepContext,
	}
}

// ListProducts fetches one page of products.
func (c *Client) ListProducts(ctx context.Context, params service.CatalogListParams) (*entity.CatalogPage[entity.CatalogProduct], error) {
	var envelope listEnvelope[productObject]
	if err := c.get(ctx, "/v1/products", listQuery(params), &envelope); err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	page := &entity.CatalogPage[entity.CatalogProduct]{
		Data:    make([]entity.CatalogProduct, 0, len(envelope.Data)),
		HasMore: envelope.HasMore,
	}
	for _, product := range envelope.Data {
		page.Data = append(page.Data, product.toEntity())
	}

	return page, nil
}

// ListPrices fetches one page of prices. Products stay unexpanded; the sync
// resolves them by id.
func (c *Client) ListPrices(ctx context.Context, params service.CatalogListParams) (*entity.CatalogPage[entity.CatalogPrice], error) {
	var envelope listEnvelope[priceObject]
	if err := c.get(ctx, "/v1/prices", listQuery(params), &envelope); err != nil {
		return nil, errors.Wrap(err, "list prices")
	}

	page := &entity.CatalogPage[entity.CatalogPrice]{
		Data:    make([]entity.CatalogPrice, 0, len(envelope.Data)),
		HasMore: envelope.HasMore,
	}
	for _, price := range envelope.Data {
		page.Data = append(page.Data, price.toEntity())
	}

	return page, nil
}

// RetrieveAccount returns the account owning the secret key.
func (c *Client) RetrieveAccount(ctx context.Context) (*entity.ProviderAccount, error) {
	var account accountObject
	if err := c.get(ctx, "/v1/account", nil, &account); err != nil {
		return nil, errors.Wrap(err, "retrieve account")
	}

	return &entity.ProviderAccount{
		ID:       account.ID,
		Livemode: account.Livemode || strings.HasPrefix(c.secretKey, "sk_live_"),
	}, nil
}

func listQuery(params service.CatalogListParams) url.Values {
	query := url.Values{}
	query.Set("active", strconv.FormatBool(params.Active))
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.StartingAfter != "" {
		query.Set("starting_after", params.StartingAfter)
	}

	return query
}

// get performs a GET with retries on network errors, 429 and 5xx.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt - 1)
			c.logger.WarnContext(ctx, "Retrying Stripe request",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return errors.Wrap(err, "wait for retry")
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter")
		}

		err := c.do(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(ctx, err) {
			return err
		}
	}

	return lastErr
}

func (c *Client) do(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}

	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope errorEnvelope
	if json.Unmarshal(body, &envelope) == nil {
		apiErr.Type = envelope.Error.Type
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}

	// Decode failures on a 2xx are not transient.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	return !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr)
}

// retryDelay doubles from retryBaseDelay up to retryMaxDelay with ±20% jitter.
func retryDelay(retry int) time.Duration {
	base := retryBaseDelay << retry
	if base <= 0 || base > retryMaxDelay {
		base = retryMaxDelay
	}
	jitter := (rand.Float64()*2 - 1) * float64(base) * jitterFactor

	return time.Duration(float64(base) + jitter)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
