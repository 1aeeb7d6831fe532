package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printops/order-sync-api/internal/config"
	"github.com/printops/order-sync-api/internal/models"
	apperrors "github.com/printops/order-sync-api/pkg/errors"
	"github.com/printops/order-sync-api/pkg/logger"
)

func newPrintavoTestClient(baseURL string) *PrintavoClient {
	return NewPrintavoClient(config.PrintavoConfig{
		BaseURL: baseURL,
		Email:   "ops@example.com",
		Token:   "tok-1",
	}, logger.NewNop())
}

func TestListOpenOrdersMissingCredentialsNoNetworkCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewPrintavoClient(config.PrintavoConfig{BaseURL: srv.URL}, logger.NewNop())

	_, err := c.ListOpenOrders(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.False(t, called)
}

func TestListOpenOrdersNormalizesUnion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "ops@example.com", r.Header.Get("email"))
		assert.Equal(t, "tok-1", r.Header.Get("token"))

		var body struct {
			Query     string `json:"query"`
			Variables struct {
				StatusIDs []string `json:"statusIds"`
			} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.Query, "GetOpenOrders")
		assert.Len(t, body.Variables.StatusIDs, 7)

		w.Write([]byte(`{"data":{"orders":{"nodes":[
			{"__typename":"Quote","id":"Q-abc","visualId":77,"status":{"name":"In Production"},
			 "contact":{"firstName":"Dana","lastName":"Reed"},"total":350.00,
			 "timestamps":{"createdAt":"2026-03-08T09:00:00Z"},"customerDueAt":"2026-03-21T00:00:00Z"},
			{"__typename":"Invoice","id":"I-def","visualId":78,"status":{"name":""},
			 "contact":{"firstName":"","lastName":""},"total":125.00,
			 "timestamps":{"createdAt":"2026-03-09T09:00:00Z"},"customerDueAt":""}
		]}}}`))
	}))
	defer srv.Close()

	c := newPrintavoTestClient(srv.URL)
	orders, err := c.ListOpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)

	quote := orders[0]
	assert.Equal(t, "Printavo-77", quote.OrderNumber)
	assert.Equal(t, "Dana Reed", quote.Customer)
	assert.Equal(t, "In Production", quote.Status)
	assert.Equal(t, 350.00, quote.InvoiceAmount)
	assert.False(t, quote.NeedsDetailFetch)
	require.NotNil(t, quote.PrintDateRange)
	due := time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)
	assert.True(t, quote.PrintDateRange.From.Equal(due))
	require.NotNil(t, quote.PrintDateRange.To)
	assert.True(t, quote.PrintDateRange.To.Equal(due))

	// Missing contact and status fall back to placeholders; a missing due
	// date means no scheduling window at all.
	invoice := orders[1]
	assert.Equal(t, "Printavo-78", invoice.OrderNumber)
	assert.Equal(t, "Unknown Customer", invoice.Customer)
	assert.Equal(t, "Unknown Status", invoice.Status)
	assert.Nil(t, invoice.PrintDateRange)
}

func TestListOpenOrdersGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"status not found"}]}`))
	}))
	defer srv.Close()

	c := newPrintavoTestClient(srv.URL)
	_, err := c.ListOpenOrders(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestListOpenOrdersFallsBackToNodeID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"orders":{"nodes":[
			{"__typename":"Quote","id":"Q-abc","status":{"name":"Pending"},
			 "contact":{"firstName":"Lee","lastName":"Park"},"total":10,
			 "timestamps":{"createdAt":"2026-03-08T09:00:00Z"},"customerDueAt":""}
		]}}}`))
	}))
	defer srv.Close()

	c := newPrintavoTestClient(srv.URL)
	orders, err := c.ListOpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.PrintavoPrefix+"Q-abc", orders[0].OrderNumber)
}

func TestListOpenOrdersRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":{"orders":{"nodes":[]}}}`))
	}))
	defer srv.Close()

	c := newPrintavoTestClient(srv.URL)
	orders, err := c.ListOpenOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, 2, attempts)
}
