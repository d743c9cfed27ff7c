package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cmcBody = `{
  "status": {"error_code": 0, "error_message": null},
  "data": [
    {
      "id": 1,
      "name": "Bitcoin",
      "symbol": "BTC",
      "cmc_rank": 1,
      "circulating_supply": 19600000,
      "quote": {
        "USD": {
          "price": 50000.123456789,
          "volume_24h": 31000000000,
          "percent_change_1h": -0.1,
          "percent_change_24h": 1.5,
          "percent_change_7d": -3.25,
          "market_cap": 1200000000000
        }
      }
    },
    {
      "id": 1027,
      "name": "Ethereum",
      "symbol": "ETH",
      "cmc_rank": 2,
      "quote": {"EUR": {"price": 2800}}
    },
    {
      "id": 74,
      "name": "Dogecoin",
      "symbol": "DOGE",
      "cmc_rank": 8,
      "circulating_supply": null,
      "quote": {"USD": {"price": 0.0812, "market_cap": null}}
    },
    {"id": "x", "name": "Broken", "symbol": "BRK"}
  ]
}`

func TestCoinMarketCapFetch(t *testing.T) {
	var query url.Values
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		apiKey = r.Header.Get("X-CMC_PRO_API_KEY")
		assert.Equal(t, "/v1/cryptocurrency/listings/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(cmcBody))
	}))
	t.Cleanup(srv.Close)

	res := NewCoinMarketCap(testOptions(srv.URL)).Fetch(context.Background())

	assert.Equal(t, "test-key", apiKey)
	assert.Equal(t, "USD", query.Get("convert"))
	assert.Equal(t, "10", query.Get("limit"))
	assert.Equal(t, "market_cap", query.Get("sort"))
	assert.Equal(t, "desc", query.Get("sort_dir"))

	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Drafts, 2)

	btc := res.Drafts[0]
	assert.Equal(t, "BTC", btc.Symbol)
	assert.Equal(t, 1, btc.Rank)
	assert.Equal(t, "https://s2.coinmarketcap.com/static/img/coins/64x64/1.png", btc.IconURL)
	requireDecimal(t, "50000.123456789", btc.Price)
	requireDecimal(t, "1200000000000", btc.MarketCap)
	requireDecimal(t, "31000000000", btc.Volume24h)
	requireDecimal(t, "-0.1", btc.PercentChange1h)
	requireDecimal(t, "1.5", btc.PercentChange24h)
	requireDecimal(t, "-3.25", btc.PercentChange7d)
	requireDecimal(t, "19600000", btc.CirculatingSupply)

	doge := res.Drafts[1]
	assert.Equal(t, "DOGE", doge.Symbol)
	requireDecimal(t, "0.0812", doge.Price)
	assert.False(t, doge.MarketCap.Valid)
	assert.False(t, doge.CirculatingSupply.Valid)
}

func TestCoinMarketCapErrorEnvelope(t *testing.T) {
	srv := serve(t, http.StatusOK, "application/json", `{"status":{"error_code":1002,"error_message":"API key missing."}}`)

	res := NewCoinMarketCap(testOptions(srv.URL)).Fetch(context.Background())

	assert.True(t, res.Empty())
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "API key missing.")
}

func TestCoinMarketCapUnauthorized(t *testing.T) {
	srv := serve(t, http.StatusUnauthorized, "application/json", `{"status":{"error_code":1001}}`)

	res := NewCoinMarketCap(testOptions(srv.URL)).Fetch(context.Background())

	assert.True(t, res.Empty())
	assert.Error(t, res.Err)
}

func TestCoinMarketCapSkipsNegativePrice(t *testing.T) {
	srv := serve(t, http.StatusOK, "application/json", `{"data":[
		{"id":1,"name":"Bitcoin","symbol":"BTC","cmc_rank":1,"quote":{"USD":{"price":50000}}},
		{"id":2,"name":"Broken feed","symbol":"BAD","cmc_rank":2,"quote":{"USD":{"price":"-0.01"}}}
	]}`)

	res := NewCoinMarketCap(testOptions(srv.URL)).Fetch(context.Background())

	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Drafts, 1)
	assert.Equal(t, "BTC", res.Drafts[0].Symbol)
}
