package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
)

func testService() *Service {
	return NewService(common.NewSilentLogger())
}

func recordSet(provider string, records string) interfaces.ProviderRecordSet {
	return interfaces.ProviderRecordSet{
		Provider: provider,
		Records:  json.RawMessage(records),
	}
}

func TestNormalizeBrokerDirect(t *testing.T) {
	svc := testService()

	sets := []interfaces.ProviderRecordSet{
		recordSet("broker_direct", `[
			{"action":"BUY","symbol":"aapl","currency":"usd","quantity":10,"price":150.0,"fees":1.5,"trade_date":"2024-03-01","account_id":"A1"},
			{"action":"SELL","symbol":"AAPL","currency":"USD","quantity":4,"price":170.0,"fees":1.0,"trade_date":"2024-06-10","account_id":"A1"},
			{"action":"DIVIDEND","symbol":"AAPL","currency":"USD","amount":12.40,"trade_date":"2024-05-15","account_id":"A1"}
		]`),
	}

	res, err := svc.Normalize(sets, Scope{})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 3)
	assert.Equal(t, 0, res.Dropped)

	// Sorted chronologically
	assert.Equal(t, models.SideBuy, res.Transactions[0].Side)
	assert.Equal(t, models.SideDividend, res.Transactions[1].Side)
	assert.Equal(t, models.SideSell, res.Transactions[2].Side)

	buy := res.Transactions[0]
	assert.Equal(t, "AAPL", buy.Symbol)
	assert.Equal(t, "USD", buy.Currency)
	assert.Equal(t, 10.0, buy.Quantity)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), buy.Date)
	assert.NotEmpty(t, buy.ID)
}

func TestNormalizeReinvestedDividendEmitsBothLegs(t *testing.T) {
	svc := testService()

	sets := []interfaces.ProviderRecordSet{
		recordSet("broker_direct", `[
			{"action":"REINVEST_DIVIDEND","symbol":"VTI","currency":"USD","quantity":2,"amount":50.0,"trade_date":"2024-04-01","account_id":"A1"}
		]`),
	}

	res, err := svc.Normalize(sets, Scope{})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)

	div := res.Transactions[0]
	buy := res.Transactions[1]

	assert.Equal(t, models.SideDividend, div.Side)
	assert.Equal(t, 50.0, div.Amount)
	assert.Equal(t, 0.0, div.Quantity)

	assert.Equal(t, models.SideBuy, buy.Side)
	assert.True(t, buy.Reinvested)
	assert.Equal(t, 2.0, buy.Quantity)
	assert.Equal(t, 25.0, buy.Price) // back-derived from the dividend amount
}

func TestNormalizeAggregatorCashMovements(t *testing.T) {
	svc := testService()

	sets := []interfaces.ProviderRecordSet{
		recordSet("aggregator", `[
			{"type":"deposit","currency":"USD","total":5000,"posted_at":"2024-01-05","account":"B2"},
			{"type":"withdrawal","currency":"USD","total":1200,"posted_at":"2024-02-20","account":"B2"},
			{"type":"buy","ticker":"msft","currency":"USD","shares":5,"unit_cost":400,"total":2000,"posted_at":"2024-01-10","account":"B2"}
		]`),
	}

	res, err := svc.Normalize(sets, Scope{})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	require.Len(t, res.CashEvents, 2)

	assert.Equal(t, models.CashExternalFlow, res.CashEvents[0].Kind)
	assert.Equal(t, 5000.0, res.CashEvents[0].Amount)
	assert.Equal(t, -1200.0, res.CashEvents[1].Amount)
	assert.Equal(t, "MSFT", res.Transactions[0].Symbol)
}

func TestNormalizeCustodialStringParsing(t *testing.T) {
	svc := testService()

	sets := []interfaces.ProviderRecordSet{
		recordSet("custodial", `[
			{"txn_type":"Purchase","security":"BHP","currency":"AUD","units":"1,000","unit_price":"$42.50","net_amount":"(42,500.00)","charges":"19.95","trade_date":"15/03/2024","account_no":"C3"},
			{"txn_type":"Sale","security":"BHP","currency":"AUD","units":"not-a-number","unit_price":"44.00","net_amount":"","charges":"","trade_date":"2024-06-01","account_no":"C3"}
		]`),
	}

	res, err := svc.Normalize(sets, Scope{})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, 1, res.Dropped) // unparseable units on a trade side

	buy := res.Transactions[0]
	assert.Equal(t, 1000.0, buy.Quantity)
	assert.Equal(t, 42.50, buy.Price)
	assert.Equal(t, -42500.0, buy.Amount) // accounting parens
	assert.Equal(t, 19.95, buy.Fees)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), buy.Date)
}

func TestNormalizeUnregisteredProviderFails(t *testing.T) {
	svc := testService()

	_, err := svc.Normalize([]interfaces.ProviderRecordSet{
		recordSet("mystery_feed", `[]`),
	}, Scope{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery_feed")
}

func TestNormalizeScopeFilters(t *testing.T) {
	svc := testService()

	sets := []interfaces.ProviderRecordSet{
		recordSet("broker_direct", `[
			{"action":"BUY","symbol":"AAPL","quantity":1,"price":100,"trade_date":"2023-12-31","account_id":"A1"},
			{"action":"BUY","symbol":"AAPL","quantity":2,"price":101,"trade_date":"2024-01-15","account_id":"A1"},
			{"action":"BUY","symbol":"AAPL","quantity":3,"price":102,"trade_date":"2024-01-20","account_id":"OTHER"}
		]`),
		recordSet("aggregator", `[
			{"type":"buy","ticker":"MSFT","shares":1,"unit_cost":400,"posted_at":"2024-01-15","account":"A1"}
		]`),
	}

	scope := Scope{
		WindowStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Providers:   []string{"broker_direct"},
		Accounts:    []string{"A1"},
	}

	res, err := svc.Normalize(sets, scope)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, 2.0, res.Transactions[0].Quantity)
}

func TestNormalizeDeterministicIDs(t *testing.T) {
	svc := testService()

	sets := []interfaces.ProviderRecordSet{
		recordSet("broker_direct", `[
			{"action":"BUY","symbol":"AAPL","quantity":10,"price":150,"trade_date":"2024-03-01","account_id":"A1"},
			{"action":"SELL","symbol":"AAPL","quantity":10,"price":160,"trade_date":"2024-04-01","account_id":"A1"}
		]`),
	}

	first, err := svc.Normalize(sets, Scope{})
	require.NoError(t, err)
	second, err := svc.Normalize(sets, Scope{})
	require.NoError(t, err)

	require.Len(t, second.Transactions, len(first.Transactions))
	for i := range first.Transactions {
		assert.Equal(t, first.Transactions[i].ID, second.Transactions[i].ID)
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"1,234.56", 1234.56, true},
		{"$99.95", 99.95, true},
		{"(500.00)", -500.0, true},
		{"-12.5", -12.5, true},
		{"", 0, false},
		{"garbage", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseMoney(tt.raw)
		assert.Equal(t, tt.ok, ok, "parseMoney(%q)", tt.raw)
		assert.InDelta(t, tt.want, got, 1e-9, "parseMoney(%q)", tt.raw)
	}
}
