package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/printops/order-sync-api/pkg/errors"
	"github.com/printops/order-sync-api/pkg/logger"
	"github.com/printops/order-sync-api/pkg/retry"

	"github.com/printops/order-sync-api/internal/config"
	"github.com/printops/order-sync-api/internal/models"
)

// Listing parameters for the fulfillment system. The listing is filtered to
// packed orders and fetched as a single page.
const (
	cin7ListStatus = "PACKED"
	cin7PageSize   = 500
)

// Cin7Client talks to the inventory/fulfillment system (Dear Systems API)
type Cin7Client struct {
	cfg         config.Cin7Config
	httpClient  *http.Client
	logger      logger.Logger
	retryConfig *retry.Config
}

// NewCin7Client creates a new Cin7Client
func NewCin7Client(cfg config.Cin7Config, logger logger.Logger) *Cin7Client {
	return &Cin7Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
		retryConfig: &retry.Config{
			MaxAttempts:     3,
			BackoffStrategy: retry.NewDefaultExponentialBackoff(),
			Logger:          logger,
			RetryableErrors: []error{
				apperrors.ErrTimeout,
				apperrors.ErrUpstream,
				apperrors.ErrRateLimited,
			},
		},
	}
}

type cin7SaleRow struct {
	SaleID        string  `json:"SaleID"`
	OrderNumber   string  `json:"OrderNumber"`
	Customer      string  `json:"Customer"`
	OrderDate     string  `json:"OrderDate"`
	Status        string  `json:"Status"`
	InvoiceDate   string  `json:"InvoiceDate"`
	InvoiceAmount float64 `json:"InvoiceAmount"`
}

type cin7SaleList struct {
	SaleList []cin7SaleRow `json:"SaleList"`
}

type cin7SaleDetail struct {
	Order struct {
		Lines []struct {
			Quantity float64 `json:"Quantity"`
		} `json:"Lines"`
	} `json:"Order"`
}

// checkCredentials returns a ConfigurationError before any network call when
// either credential is absent
func (c *Cin7Client) checkCredentials() error {
	if c.cfg.AccountID == "" || c.cfg.ApplicationKey == "" {
		return apperrors.NewConfigurationError("missing Cin7 API credentials")
	}
	return nil
}

// ListPackedSales fetches the current packed-order listing and normalizes it.
// Listing rows carry no line-item detail, so every order is flagged for a
// later detail fetch.
func (c *Cin7Client) ListPackedSales(ctx context.Context) ([]*models.Order, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("STATUS", cin7ListStatus)
	params.Set("Page", "1")
	params.Set("Limit", fmt.Sprintf("%d", cin7PageSize))

	var listing cin7SaleList
	if err := c.getJSON(ctx, c.cfg.BaseURL+"/saleList?"+params.Encode(), &listing); err != nil {
		return nil, err
	}

	now := models.GetCurrentTime()
	orders := make([]*models.Order, 0, len(listing.SaleList))

	for _, row := range listing.SaleList {
		if row.OrderNumber == "" {
			c.logger.Warn("Skipping Cin7 sale without order number", "saleID", row.SaleID)
			continue
		}

		orders = append(orders, &models.Order{
			OrderNumber:      row.OrderNumber,
			SaleID:           row.SaleID,
			Customer:         row.Customer,
			OrderDate:        parseUpstreamDate(row.OrderDate),
			Status:           row.Status,
			InvoiceAmount:    row.InvoiceAmount,
			IsManual:         false,
			IsActive:         true,
			NeedsDetailFetch: true,
			LastUpdated:      now,
		})
	}

	return orders, nil
}

// GetSaleDetail fetches the per-order detail and returns the total line-item
// quantity. A line without a quantity contributes zero.
func (c *Cin7Client) GetSaleDetail(ctx context.Context, saleID string) (int, error) {
	if err := c.checkCredentials(); err != nil {
		return 0, err
	}

	params := url.Values{}
	params.Set("ID", saleID)

	var detail cin7SaleDetail
	if err := c.getJSON(ctx, c.cfg.BaseURL+"/sale?"+params.Encode(), &detail); err != nil {
		return 0, err
	}

	var total float64
	for _, line := range detail.Order.Lines {
		total += line.Quantity
	}

	return int(total), nil
}

// FindInvoiceDate searches the listing by order number and returns the first
// hit's invoice date, or nil when the order or date is unknown
func (c *Cin7Client) FindInvoiceDate(ctx context.Context, orderNumber string) (*time.Time, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("Search", orderNumber)

	var listing cin7SaleList
	if err := c.getJSON(ctx, c.cfg.BaseURL+"/saleList?"+params.Encode(), &listing); err != nil {
		return nil, err
	}

	if len(listing.SaleList) == 0 || listing.SaleList[0].InvoiceDate == "" {
		return nil, nil
	}

	date := parseUpstreamDate(listing.SaleList[0].InvoiceDate)
	if date.IsZero() {
		return nil, nil
	}

	return &date, nil
}

// getJSON performs a GET with the auth headers, retrying transient failures
func (c *Cin7Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	fn := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)

		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to create request: %v", err))
		}

		req.Header.Set("api-auth-accountid", c.cfg.AccountID)
		req.Header.Set("api-auth-applicationkey", c.cfg.ApplicationKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)

		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return apperrors.NewTimeoutError("Cin7 request timed out")
			}
			return apperrors.NewUpstreamError(fmt.Sprintf("failed to reach Cin7: %v", err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)

		if err != nil {
			return apperrors.NewUpstreamError(fmt.Sprintf("failed to read Cin7 response: %v", err))
		}

		if resp.StatusCode >= 400 {
			if resp.StatusCode == http.StatusTooManyRequests {
				return apperrors.NewAppError(apperrors.ErrRateLimited, "Cin7 rate limit hit", resp.StatusCode, true)
			}
			if resp.StatusCode >= 500 {
				return apperrors.NewUpstreamError(fmt.Sprintf("Cin7 returned %d", resp.StatusCode))
			}
			return apperrors.NewAppError(apperrors.ErrUpstream, fmt.Sprintf("Cin7 returned %d", resp.StatusCode), resp.StatusCode, false)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return apperrors.NewUpstreamError(fmt.Sprintf("failed to parse Cin7 response: %v", err))
		}

		return nil
	}

	return retry.Do(ctx, fn, c.retryConfig)
}

// parseUpstreamDate accepts the date shapes the external systems emit and
// returns a zero time when nothing parses
func parseUpstreamDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}
