package domain

import "fmt"

// FilterParams describe a single-collection predicate scan.
type FilterParams struct {
	Collection  string
	FilterKey   string
	Selectivity float64
	Projected   []string
	Sharded     bool
	ShardAware  bool // filter key is the shard key: route to one shard
	Indexed     bool // index on the filter key: scan only the matches
}

// Filter estimates a filter over one collection of the layout.
func (m Model) Filter(layout *Layout, p FilterParams) (OperatorCost, error) {
	if p.Selectivity < 0 || p.Selectivity > 1 {
		return OperatorCost{}, fmt.Errorf("filter %s.%s: selectivity %g outside [0, 1]", p.Collection, p.FilterKey, p.Selectivity)
	}
	schema, err := layout.mustSchema(p.Collection)
	if err != nil {
		return OperatorCost{}, err
	}
	docSize, err := SizeOf(schema)
	if err != nil {
		return OperatorCost{}, err
	}
	projSize, err := ProjectionSize(schema, p.Projected)
	if err != nil {
		return OperatorCost{}, err
	}

	servers := m.Infra.Servers
	total := float64(CollectionCardinality(p.Collection, m.Stats))

	docsPerShard := total
	var shards int64 = 1
	if p.Sharded {
		docsPerShard = total / float64(servers)
		if !p.ShardAware {
			shards = servers
		}
	}
	scope := total
	if p.Sharded {
		scope = docsPerShard * float64(shards)
	}

	matched := matchedDocs(total, p.Selectivity)

	scanned := scope
	if p.Indexed {
		scanned = scope * p.Selectivity
	}
	scanned = max(scanned, matched)
	if p.Selectivity > 0 {
		scanned = max(scanned, 1)
	} else {
		scanned = 0
	}

	var parallelism int64 = 1
	if p.Sharded {
		parallelism = shards
	}
	return m.cost(
		variantName("filter", p.Sharded),
		matched,
		matched*float64(projSize),
		scanned*float64(docSize),
		shards, shards, parallelism,
	), nil
}

// matchedDocs floors a non-zero expectation at one document.
func matchedDocs(total, selectivity float64) float64 {
	if selectivity <= 0 {
		return 0
	}
	return max(total*selectivity, 1)
}
