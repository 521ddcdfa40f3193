package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	market "microgrid-market/internal/market/domain"
)

const (
	metricPrefix = "microgrid_"

	resultAccepted = "accepted"
	resultRejected = "rejected"
	resultSuccess  = "success"
	resultError    = "error"
)

var (
	registerOnce sync.Once

	tradeSubmissions *prometheus.CounterVec
	tradesFinished   *prometheus.CounterVec
	tradesExpired    prometheus.Counter
	activeTrades     prometheus.Gauge

	gridLoad      prometheus.Gauge
	gridSupply    prometheus.Gauge
	gridPeakLoad  prometheus.Gauge
	gridStability *prometheus.GaugeVec
	currentPrice  prometheus.Gauge

	marketTicks  prometheus.Counter
	pricingTicks prometheus.Counter

	sheddingRuns     prometheus.Counter
	sheddingAffected prometheus.Counter
	deviceCommands   *prometheus.CounterVec
	simulationSteps  prometheus.Counter
	simulationEvents *prometheus.CounterVec
	exportTotal      *prometheus.CounterVec
	exportLatency    *prometheus.HistogramVec
)

var stabilityLevels = []string{
	market.StabilityExcellent,
	market.StabilityStable,
	market.StabilityWarning,
	market.StabilityCritical,
}

// Init registers the engine metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		tradeSubmissions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "trade_submissions_total",
				Help: "Total trade submissions by result",
			},
			[]string{"result"},
		)
		tradesFinished = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "trades_finished_total",
				Help: "Total trades reaching a terminal status",
			},
			[]string{"status"},
		)
		tradesExpired = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "trades_expired_total",
				Help: "Total trades evicted by the expiry sweeper",
			},
		)
		activeTrades = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_trades",
				Help: "Current size of the active-trade set",
			},
		)

		gridLoad = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "grid_load_kw",
				Help: "Aggregate load of online households in kW",
			},
		)
		gridSupply = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "grid_supply_kw",
				Help: "Aggregate supply of online households in kW",
			},
		)
		gridPeakLoad = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "grid_peak_load_kw",
				Help: "Peak load high-water mark in kW",
			},
		)
		gridStability = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "grid_stability",
				Help: "Current stability classification (1 for the active level)",
			},
			[]string{"level"},
		)
		currentPrice = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "current_price_kwh",
				Help: "Published price per kWh",
			},
		)

		marketTicks = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "market_ticks_total",
				Help: "Total market clock aggregate ticks",
			},
		)
		pricingTicks = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "pricing_ticks_total",
				Help: "Total market clock pricing ticks",
			},
		)

		sheddingRuns = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "shedding_runs_total",
				Help: "Total emergency shedding invocations",
			},
		)
		sheddingAffected = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "shedding_affected_total",
				Help: "Total households affected by shedding",
			},
		)
		deviceCommands = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "device_commands_total",
				Help: "Total device control commands by action and result",
			},
			[]string{"action", "result"},
		)
		simulationSteps = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "simulation_steps_total",
				Help: "Total simulation steps executed",
			},
		)
		simulationEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "simulation_events_total",
				Help: "Total simulation events by kind",
			},
			[]string{"kind"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_export_total",
				Help: "Total trade history exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "history_export_latency_seconds",
				Help:    "Trade history export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			tradeSubmissions,
			tradesFinished,
			tradesExpired,
			activeTrades,
			gridLoad,
			gridSupply,
			gridPeakLoad,
			gridStability,
			currentPrice,
			marketTicks,
			pricingTicks,
			sheddingRuns,
			sheddingAffected,
			deviceCommands,
			simulationSteps,
			simulationEvents,
			exportTotal,
			exportLatency,
		)
	})
}

// IncTradeSubmitted increments the submission counter.
func IncTradeSubmitted(result string) {
	if result == "" {
		result = resultAccepted
	}
	if tradeSubmissions != nil {
		tradeSubmissions.WithLabelValues(result).Inc()
	}
}

// IncTradeFinished increments the terminal-status counter.
func IncTradeFinished(status string) {
	if status == "" {
		status = "unknown"
	}
	if tradesFinished != nil {
		tradesFinished.WithLabelValues(status).Inc()
	}
}

// IncTradeExpired increments the expiry counter.
func IncTradeExpired() {
	if tradesExpired != nil {
		tradesExpired.Inc()
	}
}

// SetActiveTrades sets the active-trade gauge.
func SetActiveTrades(count int) {
	if activeTrades != nil {
		activeTrades.Set(float64(count))
	}
}

// SetGridAggregates sets the grid load/supply/peak gauges.
func SetGridAggregates(loadKW, supplyKW, peakLoadKW float64) {
	if gridLoad != nil {
		gridLoad.Set(loadKW)
	}
	if gridSupply != nil {
		gridSupply.Set(supplyKW)
	}
	if gridPeakLoad != nil {
		gridPeakLoad.Set(peakLoadKW)
	}
}

// SetGridStability marks the active stability level.
func SetGridStability(level string) {
	if gridStability == nil {
		return
	}
	for _, known := range stabilityLevels {
		value := 0.0
		if known == level {
			value = 1.0
		}
		gridStability.WithLabelValues(known).Set(value)
	}
}

// SetCurrentPrice sets the published price gauge.
func SetCurrentPrice(price float64) {
	if currentPrice != nil {
		currentPrice.Set(price)
	}
}

// IncMarketTick increments the market tick counter.
func IncMarketTick() {
	if marketTicks != nil {
		marketTicks.Inc()
	}
}

// IncPricingTick increments the pricing tick counter.
func IncPricingTick() {
	if pricingTicks != nil {
		pricingTicks.Inc()
	}
}

// ObserveShedding records one shedding invocation.
func ObserveShedding(affected int) {
	if sheddingRuns != nil {
		sheddingRuns.Inc()
	}
	if sheddingAffected != nil && affected > 0 {
		sheddingAffected.Add(float64(affected))
	}
}

// IncDeviceCommand increments the device command counter.
func IncDeviceCommand(action, result string) {
	if action == "" {
		action = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if deviceCommands != nil {
		deviceCommands.WithLabelValues(action, result).Inc()
	}
}

// IncSimulationStep increments the simulation step counter.
func IncSimulationStep() {
	if simulationSteps != nil {
		simulationSteps.Inc()
	}
}

// IncSimulationEvent increments the simulation event counter.
func IncSimulationEvent(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if simulationEvents != nil {
		simulationEvents.WithLabelValues(kind).Inc()
	}
}

// ObserveExport records one trade history export.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultAccepted = resultAccepted
	ResultRejected = resultRejected
	ResultSuccess  = resultSuccess
	ResultError    = resultError
)
