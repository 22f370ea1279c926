package domain

import "fmt"

// OperatorCost is the estimate produced by one operator evaluation.
type OperatorCost struct {
	Name            string  `json:"name"`
	OutputDocs      float64 `json:"output_docs"`
	OutputSizeBytes float64 `json:"output_size_bytes"`
	ScannedBytes    float64 `json:"scanned_bytes"`
	ShardsTouched   int64   `json:"shards_touched"`
	TimeS           float64 `json:"time_s"`
	CarbonKg        float64 `json:"carbon_kg"`
	PriceUSD        float64 `json:"price_usd"`
}

// CostRates turn scanned volume and fan-out into time, carbon and price.
type CostRates struct {
	ReadBandwidthBps float64 `yaml:"read_bandwidth_bps" json:"read_bandwidth_bps"`
	ShardLatencyS    float64 `yaml:"shard_latency_s" json:"shard_latency_s"`
	CarbonKgPerGiB   float64 `yaml:"carbon_kg_per_gib" json:"carbon_kg_per_gib"`
	PriceUSDPerGiB   float64 `yaml:"price_usd_per_gib" json:"price_usd_per_gib"`
}

// DefaultCostRates: 100 MiB/s per node, 5 ms per shard round trip.
func DefaultCostRates() CostRates {
	return CostRates{
		ReadBandwidthBps: 100 * 1024 * 1024,
		ShardLatencyS:    0.005,
		CarbonKgPerGiB:   0.0003,
		PriceUSDPerGiB:   0.01,
	}
}

func (r CostRates) Validate() error {
	if r.ReadBandwidthBps <= 0 {
		return fmt.Errorf("cost_rates.read_bandwidth_bps must be positive, got %g", r.ReadBandwidthBps)
	}
	if r.ShardLatencyS < 0 || r.CarbonKgPerGiB < 0 || r.PriceUSDPerGiB < 0 {
		return fmt.Errorf("cost_rates latency, carbon and price must be non-negative")
	}
	return nil
}

// Translate derives time, carbon and price from scanned bytes and fan-out.
// Every operator goes through it so the three dimensions stay consistent.
func (r CostRates) Translate(scannedBytes float64, shardsTouched, parallelism int64) (timeS, carbonKg, priceUSD float64) {
	timeS = scannedBytes / float64(max(parallelism, 1)) / r.ReadBandwidthBps
	timeS += float64(shardsTouched) * r.ShardLatencyS
	gib := scannedBytes / bytesPerGiB
	return timeS, gib * r.CarbonKgPerGiB, gib * r.PriceUSDPerGiB
}

// Model bundles the statistics, cluster and rates the operators read.
type Model struct {
	Stats Statistics
	Infra Infra
	Rates CostRates
}

// DefaultModel returns the reference model.
func DefaultModel() Model {
	return Model{
		Stats: DefaultStatistics(),
		Infra: DefaultInfra(),
		Rates: DefaultCostRates(),
	}
}

func (m Model) Validate() error {
	if err := m.Stats.Validate(); err != nil {
		return err
	}
	if m.Infra.Servers <= 0 {
		return fmt.Errorf("infra.servers must be positive, got %d", m.Infra.Servers)
	}
	return m.Rates.Validate()
}

func (m Model) cost(name string, outputDocs, outputBytes, scannedBytes float64, shards, latencyShards, parallelism int64) OperatorCost {
	t, c, p := m.Rates.Translate(scannedBytes, latencyShards, parallelism)
	return OperatorCost{
		Name:            name,
		OutputDocs:      outputDocs,
		OutputSizeBytes: outputBytes,
		ScannedBytes:    scannedBytes,
		ShardsTouched:   shards,
		TimeS:           t,
		CarbonKg:        c,
		PriceUSD:        p,
	}
}

func variantName(op string, sharded bool) string {
	if sharded {
		return op + "_sharded"
	}
	return op + "_no_shard"
}
