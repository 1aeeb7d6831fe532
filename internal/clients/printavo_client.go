package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/printops/order-sync-api/pkg/errors"
	"github.com/printops/order-sync-api/pkg/logger"
	"github.com/printops/order-sync-api/pkg/retry"

	"github.com/printops/order-sync-api/internal/config"
	"github.com/printops/order-sync-api/internal/models"
)

// Status IDs considered "open" in the quoting system: quote issued, in
// production, ready, and the states in between.
var printavoOpenStatusIDs = []string{
	"454197",
	"380072",
	"380073",
	"380068",
	"380069",
	"380070",
	"380071",
}

// The listing query. Quote and Invoice are two node kinds sharing one
// projection; the type tag is kept so callers can tell them apart.
const printavoOpenOrdersQuery = `
query GetOpenOrders($statusIds: [ID!]!) {
  orders(statusIds: $statusIds) {
    nodes {
      __typename
      ... on Quote {
        id
        visualId
        status { id name }
        contact { id email firstName lastName }
        total
        timestamps { createdAt updatedAt }
        customerDueAt
      }
      ... on Invoice {
        id
        visualId
        status { id name }
        contact { id email firstName lastName }
        total
        timestamps { createdAt updatedAt }
        customerDueAt
      }
    }
  }
}`

// PrintavoClient talks to the quoting/invoicing system's GraphQL API
type PrintavoClient struct {
	cfg         config.PrintavoConfig
	httpClient  *http.Client
	logger      logger.Logger
	retryConfig *retry.Config
}

// NewPrintavoClient creates a new PrintavoClient
func NewPrintavoClient(cfg config.PrintavoConfig, logger logger.Logger) *PrintavoClient {
	return &PrintavoClient{
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

type printavoNode struct {
	Typename string      `json:"__typename"`
	ID       string      `json:"id"`
	VisualID json.Number `json:"visualId"`
	Status   struct {
		Name string `json:"name"`
	} `json:"status"`
	Contact struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"contact"`
	Total      float64 `json:"total"`
	Timestamps struct {
		CreatedAt string `json:"createdAt"`
	} `json:"timestamps"`
	CustomerDueAt string `json:"customerDueAt"`
}

type printavoResponse struct {
	Data struct {
		Orders struct {
			Nodes []printavoNode `json:"nodes"`
		} `json:"orders"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ListOpenOrders fetches every order in an open status and normalizes the
// Quote/Invoice union into the canonical order shape
func (c *PrintavoClient) ListOpenOrders(ctx context.Context) ([]*models.Order, error) {
	if c.cfg.Email == "" || c.cfg.Token == "" {
		return nil, apperrors.NewConfigurationError("missing Printavo API credentials")
	}

	payload, err := json.Marshal(map[string]interface{}{
		"query": printavoOpenOrdersQuery,
		"variables": map[string]interface{}{
			"statusIds": printavoOpenStatusIDs,
		},
	})
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to marshal query: %v", err))
	}

	var result printavoResponse

	fn := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))

		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to create request: %v", err))
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("email", c.cfg.Email)
		req.Header.Set("token", c.cfg.Token)

		resp, err := c.httpClient.Do(req)

		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return apperrors.NewTimeoutError("Printavo request timed out")
			}
			return apperrors.NewUpstreamError(fmt.Sprintf("failed to reach Printavo: %v", err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)

		if err != nil {
			return apperrors.NewUpstreamError(fmt.Sprintf("failed to read Printavo response: %v", err))
		}

		if resp.StatusCode >= 400 {
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return apperrors.NewUpstreamError(fmt.Sprintf("Printavo returned %d", resp.StatusCode))
			}
			return apperrors.NewAppError(apperrors.ErrUpstream, fmt.Sprintf("Printavo returned %d", resp.StatusCode), resp.StatusCode, false)
		}

		result = printavoResponse{}
		if err := json.Unmarshal(body, &result); err != nil {
			return apperrors.NewUpstreamError(fmt.Sprintf("failed to parse Printavo response: %v", err))
		}

		return nil
	}

	if err := retry.Do(ctx, fn, c.retryConfig); err != nil {
		return nil, err
	}

	if len(result.Errors) > 0 {
		return nil, apperrors.NewUpstreamError(fmt.Sprintf("Printavo GraphQL errors: %s", result.Errors[0].Message))
	}

	now := models.GetCurrentTime()
	orders := make([]*models.Order, 0, len(result.Data.Orders.Nodes))

	for _, node := range result.Data.Orders.Nodes {
		orders = append(orders, c.normalize(node, now))
	}

	return orders, nil
}

// normalize projects one Quote or Invoice node into the canonical shape. The
// listing already carries totals, so these orders never need a detail fetch.
func (c *PrintavoClient) normalize(node printavoNode, now time.Time) *models.Order {
	customer := strings.TrimSpace(node.Contact.FirstName + " " + node.Contact.LastName)
	if customer == "" {
		customer = "Unknown Customer"
	}

	status := node.Status.Name
	if status == "" {
		status = "Unknown Status"
	}

	// A missing production due date means no scheduling window, not an error
	var rng *models.PrintDateRange
	if due := parseUpstreamDate(node.CustomerDueAt); !due.IsZero() {
		to := due
		rng = &models.PrintDateRange{From: due, To: &to}
	}

	visual := node.VisualID.String()
	if visual == "" {
		visual = node.ID
	}

	return &models.Order{
		OrderNumber:      models.PrintavoPrefix + visual,
		Customer:         customer,
		OrderDate:        parseUpstreamDate(node.Timestamps.CreatedAt),
		Status:           status,
		InvoiceAmount:    node.Total,
		PrintDateRange:   rng,
		IsManual:         false,
		IsActive:         true,
		NeedsDetailFetch: false,
		LastUpdated:      now,
	}
}
