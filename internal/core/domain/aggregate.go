package domain

import (
	"fmt"
	"strings"
)

// AggregateParams describe a GROUP BY over one collection, optionally
// restricted by a filter. Aggregates are never indexed on the group key.
type AggregateParams struct {
	Collection   string
	GroupKeys    []string
	Projected    []string // defaults to GroupKeys
	Sharded      bool
	ShardAligned bool

	FilterKey string
	// FilterSelectivity is the filtered fraction of the collection; nil means 1.
	FilterSelectivity *float64
}

// AnyFilter matches every filter key (including none) in GroupCounts.
const AnyFilter = "*"

// GroupKey keys the distinct-group table: collection, exact comma-joined group
// key list, and the pre-filter key (or AnyFilter).
type GroupKey struct {
	Collection string
	GroupKeys  string
	FilterKey  string
}

// GroupRule estimates the number of output groups.
type GroupRule struct {
	Description string
	Groups      func(s Statistics) float64
}

// GroupCounts is the distinct-group table of the demonstration workload.
// Combinations not listed here assume every scanned document forms its own group.
var GroupCounts = map[GroupKey]GroupRule{
	{CollOrderLine, "IDP", "IDC"}: {
		Description: "products bought by one client",
		Groups:      func(s Statistics) float64 { return float64(s.AvgProductsPerClient) },
	},
	{CollOrderLine, "IDP", AnyFilter}: {
		Description: "every product",
		Groups:      func(s Statistics) float64 { return float64(s.Products) },
	},
	{CollOrderLine, "IDC", AnyFilter}: {
		Description: "every client",
		Groups:      func(s Statistics) float64 { return float64(s.Clients) },
	},
}

// DistinctGroups resolves the group count, exact filter key first, then the
// AnyFilter entry, then the one-group-per-document fallback.
func DistinctGroups(collection string, groupKeys []string, filterKey string, inputDocs float64, s Statistics) float64 {
	keys := strings.Join(groupKeys, ",")
	if filterKey != "" {
		if rule, ok := GroupCounts[GroupKey{collection, keys, filterKey}]; ok {
			return rule.Groups(s)
		}
	}
	if rule, ok := GroupCounts[GroupKey{collection, keys, AnyFilter}]; ok {
		return rule.Groups(s)
	}
	return inputDocs
}

// aggregatePayloadBytes is one numeric aggregate (e.g. a sum) per group.
const aggregatePayloadBytes = KVOverheadBytes + IntBytes

// Aggregate estimates a grouped aggregate over one collection of the layout.
//
// A sharded aggregate always reports the whole cluster as touched, even when
// aligned on the shard key; alignment only shortens the latency term.
func (m Model) Aggregate(layout *Layout, p AggregateParams) (OperatorCost, error) {
	if sel := p.FilterSelectivity; sel != nil && (*sel < 0 || *sel > 1) {
		return OperatorCost{}, fmt.Errorf("aggregate %s.%s: selectivity %g outside [0, 1]", p.Collection, p.FilterKey, *sel)
	}
	schema, err := layout.mustSchema(p.Collection)
	if err != nil {
		return OperatorCost{}, err
	}
	docSize, err := SizeOf(schema)
	if err != nil {
		return OperatorCost{}, err
	}
	projected := p.Projected
	if len(projected) == 0 {
		projected = p.GroupKeys
	}
	projSize, err := ProjectionSize(schema, projected)
	if err != nil {
		return OperatorCost{}, err
	}

	selectivity := 1.0
	if p.FilterSelectivity != nil {
		selectivity = *p.FilterSelectivity
	}
	input := float64(CollectionCardinality(p.Collection, m.Stats)) * selectivity

	var shards, latencyShards, parallelism int64 = 1, 1, 1
	if p.Sharded {
		shards = m.Infra.Servers
		parallelism = shards
		if !p.ShardAligned {
			latencyShards = shards
		}
	}

	groups := DistinctGroups(p.Collection, p.GroupKeys, p.FilterKey, input, m.Stats)
	return m.cost(
		variantName("aggregate", p.Sharded),
		groups,
		groups*float64(projSize+aggregatePayloadBytes),
		input*float64(docSize),
		shards, latencyShards, parallelism,
	), nil
}
