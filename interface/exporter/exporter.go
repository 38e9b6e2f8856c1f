package exporter

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const (
	METRIC_ERROR_COUNT    = "error_count"
	METRIC_BUY_COUNT      = "buy_count"
	METRIC_SELL_COUNT     = "sell_count"
	METRIC_CLAIM_COUNT    = "claim_count"
	METRIC_TRANSFER_COUNT = "transfer_count"
	METRIC_PAYOUT_COUNT   = "payout_count"

	METRIC_TOTAL_SUPPLY  = "total_supply"
	METRIC_TOTAL_RESERVE = "total_reserve"
)

var (
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge

	initOnce sync.Once
)

var counterHelp = map[string]string{
	METRIC_ERROR_COUNT:    "Counts the number of failed operations",
	METRIC_BUY_COUNT:      "Counts the number of successful buys, donor matches included",
	METRIC_SELL_COUNT:     "Counts the number of successful sells",
	METRIC_CLAIM_COUNT:    "Counts the number of successful claims",
	METRIC_TRANSFER_COUNT: "Counts the number of successful transfers",
	METRIC_PAYOUT_COUNT:   "Counts the number of payouts sent",
}

var gaugeHelp = map[string]string{
	METRIC_TOTAL_SUPPLY:  "Bonding token supply in whole tokens",
	METRIC_TOTAL_RESERVE: "Reserve held by the curve in whole tokens",
}

// Init registers the metrics with the default registry. Later calls are no-ops.
func Init() {
	initOnce.Do(func() {
		counters = make(map[string]prometheus.Counter)
		gauges = make(map[string]prometheus.Gauge)

		for name, help := range counterHelp {
			counter := prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "curvebond",
				Subsystem: "ledger",
				Name:      name,
				Help:      help,
			})
			prometheus.MustRegister(counter)
			counters[name] = counter
		}

		for name, help := range gaugeHelp {
			gauge := prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "curvebond",
				Subsystem: "ledger",
				Name:      name,
				Help:      help,
			})
			prometheus.MustRegister(gauge)
			gauges[name] = gauge
		}
	})
}

func GetCounter(name string) prometheus.Counter {
	return counters[name]
}

func GetGauge(name string) prometheus.Gauge {
	return gauges[name]
}

func inc(name string) {
	if c, ok := counters[name]; ok {
		c.Inc()
	}
}

func IncErrorCount() {
	inc(METRIC_ERROR_COUNT)
}

func IncBuyCount() {
	inc(METRIC_BUY_COUNT)
}

func IncSellCount() {
	inc(METRIC_SELL_COUNT)
}

func IncClaimCount() {
	inc(METRIC_CLAIM_COUNT)
}

func IncTransferCount() {
	inc(METRIC_TRANSFER_COUNT)
}

func IncPayoutCount() {
	inc(METRIC_PAYOUT_COUNT)
}

// SetTotals publishes the ledger totals. Float precision is enough for a dashboard.
func SetTotals(supply, reserve decimal.Decimal) {
	if g, ok := gauges[METRIC_TOTAL_SUPPLY]; ok {
		g.Set(supply.InexactFloat64())
	}
	if g, ok := gauges[METRIC_TOTAL_RESERVE]; ok {
		g.Set(reserve.InexactFloat64())
	}
}
