package presentation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/printops/order-sync-api/internal/models"
)

func TestGroupKey(t *testing.T) {
	d := NewDecorator("Murdoch")

	cases := []struct {
		name  string
		order *models.Order
		want  string
	}{
		{
			name: "vip customer groups by day",
			order: &models.Order{
				OrderNumber: "1001",
				Customer:    "Murdochs Ranch Supply",
				OrderDate:   time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC),
			},
			want: "Murdochs - 2026-03-10",
		},
		{
			name: "vip match is substring anywhere in the name",
			order: &models.Order{
				OrderNumber: "1002",
				Customer:    "West Murdoch Outfitters",
				OrderDate:   time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
			},
			want: "Murdochs - 2026-03-11",
		},
		{
			name: "vip without an order date",
			order: &models.Order{
				OrderNumber: "1003",
				Customer:    "Murdochs Ranch Supply",
			},
			want: "Murdochs - Unknown Date",
		},
		{
			name: "quoting system orders share one group",
			order: &models.Order{
				OrderNumber: models.PrintavoPrefix + "77",
				Customer:    "Beta Shirts",
				OrderDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			},
			want: "Printavo",
		},
		{
			name: "everything else gets a unique key",
			order: &models.Order{
				OrderNumber: "1004",
				Customer:    "Acme",
				OrderDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			},
			want: "NoGroup-1004",
		},
		{
			name: "manual orders are ungrouped too",
			order: &models.Order{
				OrderNumber: models.ManualPrefix + "8800",
				Customer:    "Walk-in",
				OrderDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			},
			want: "NoGroup-" + models.ManualPrefix + "8800",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, d.GroupKey(tc.order))
		})
	}
}

func TestGroupKeyVIPWinsOverQuotingPrefix(t *testing.T) {
	d := NewDecorator("Murdoch")

	order := &models.Order{
		OrderNumber: models.PrintavoPrefix + "88",
		Customer:    "Murdochs Ranch Supply",
		OrderDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "Murdochs - 2026-03-10", d.GroupKey(order))
}

func TestGroupKeyEmptyVIPMatchDisablesVIPGrouping(t *testing.T) {
	d := NewDecorator("")

	order := &models.Order{
		OrderNumber: "1001",
		Customer:    "Murdochs Ranch Supply",
		OrderDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "NoGroup-1001", d.GroupKey(order))
}

func TestDecorate(t *testing.T) {
	d := NewDecorator("Murdoch")

	orders := []*models.Order{
		{OrderNumber: "1001", Customer: "Acme", OrderDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		{OrderNumber: models.PrintavoPrefix + "77", Customer: "Beta Shirts"},
	}

	records := d.Decorate(orders)
	assert.Len(t, records, 2)
	assert.Equal(t, "NoGroup-1001", records[0].Group)
	assert.Equal(t, "Printavo", records[1].Group)
	assert.Equal(t, "Acme", records[0].Customer)
}
