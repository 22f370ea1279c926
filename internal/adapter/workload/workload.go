package workload

import (
	"fmt"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Workload holds operator-supplied assumptions loaded from a YAML file. Every
// numeric field is optional and overrides the reference model only when set.
type Workload struct {
	Statistics StatisticsOverrides `yaml:"statistics"`
	Infra      InfraOverrides      `yaml:"infra"`
	CostRates  RatesOverrides      `yaml:"cost_rates"`

	// ReplaceDemoQueries drops Q1..Q7 so only Queries are evaluated.
	ReplaceDemoQueries bool         `yaml:"replace_demo_queries"`
	Queries            []QueryEntry `yaml:"queries"`
}

type StatisticsOverrides struct {
	Clients              *int64 `yaml:"clients"`
	Products             *int64 `yaml:"products"`
	OrderLines           *int64 `yaml:"order_lines"`
	Warehouses           *int64 `yaml:"warehouses"`
	Brands               *int64 `yaml:"brands"`
	AppleProducts        *int64 `yaml:"apple_products"`
	AvgProductsPerClient *int64 `yaml:"avg_products_per_client"`
}

type InfraOverrides struct {
	Servers *int64 `yaml:"servers"`
}

type RatesOverrides struct {
	ReadBandwidthBps *float64 `yaml:"read_bandwidth_bps"`
	ShardLatencyS    *float64 `yaml:"shard_latency_s"`
	CarbonKgPerGiB   *float64 `yaml:"carbon_kg_per_gib"`
	PriceUSDPerGiB   *float64 `yaml:"price_usd_per_gib"`
}

// QueryEntry is one extra workload query.
type QueryEntry struct {
	domain.QuerySpec `yaml:",inline"`
}

// UnmarshalYAML accepts either a full mapping or a bare SQL string.
//
//	queries:
//	  - "SELECT name FROM Product WHERE IDP = 1"   # bare: id assigned on load
//	  - id: Q8
//	    sql: "SELECT IDW FROM Stock WHERE IDP = 1"
//	    indexed: true
func (q *QueryEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		q.SQL = value.Value
		return nil
	}
	type alias QueryEntry
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding query: %w", err)
	}
	*q = QueryEntry(a)
	return nil
}

// Apply layers the overrides onto base.
func (w *Workload) Apply(base domain.Model) domain.Model {
	m := base
	s := w.Statistics
	setInt(&m.Stats.Clients, s.Clients)
	setInt(&m.Stats.Products, s.Products)
	setInt(&m.Stats.OrderLines, s.OrderLines)
	setInt(&m.Stats.Warehouses, s.Warehouses)
	setInt(&m.Stats.Brands, s.Brands)
	setInt(&m.Stats.AppleProducts, s.AppleProducts)
	setInt(&m.Stats.AvgProductsPerClient, s.AvgProductsPerClient)
	setInt(&m.Infra.Servers, w.Infra.Servers)

	r := w.CostRates
	setFloat(&m.Rates.ReadBandwidthBps, r.ReadBandwidthBps)
	setFloat(&m.Rates.ShardLatencyS, r.ShardLatencyS)
	setFloat(&m.Rates.CarbonKgPerGiB, r.CarbonKgPerGiB)
	setFloat(&m.Rates.PriceUSDPerGiB, r.PriceUSDPerGiB)
	return m
}

// QueriesFor returns the queries to evaluate: the demo queries followed by
// the workload's own, or only the latter when ReplaceDemoQueries is set.
func (w *Workload) QueriesFor(demo []domain.QuerySpec) []domain.QuerySpec {
	var out []domain.QuerySpec
	if !w.ReplaceDemoQueries {
		out = append(out, demo...)
	}
	for _, q := range w.Queries {
		out = append(out, q.QuerySpec)
	}
	return out
}

func setInt(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
