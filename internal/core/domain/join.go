package domain

// JoinParams describe a nested-loop join: the outer collection is filtered
// first, then every outer match probes the inner collection on JoinKey.
type JoinParams struct {
	Outer            string
	Inner            string
	JoinKey          string
	OuterFilterKey   string
	OuterSelectivity float64
	OuterProjected   []string
	InnerProjected   []string
	Sharded          bool
	ShardAligned     bool
}

// JoinEdge keys the multiplicity table.
type JoinEdge struct {
	Outer string
	Inner string
	Key   string
}

// MultiplicityRule gives the expected inner matches per outer document.
type MultiplicityRule struct {
	Description string
	Matches     func(s Statistics) int64
}

// JoinMultiplicities is the fan-out table of the demonstration workload.
// Edges not listed here match exactly one inner document.
var JoinMultiplicities = map[JoinEdge]MultiplicityRule{
	{CollStock, CollProduct, "IDP"}: {
		Description: "one product per stock line",
		Matches:     func(Statistics) int64 { return 1 },
	},
	{CollProduct, CollStock, "IDP"}: {
		Description: "every product is tracked in every warehouse",
		Matches:     func(s Statistics) int64 { return s.Warehouses },
	},
	{CollOrderLine, CollProduct, "IDP"}: {
		Description: "one product per order line",
		Matches:     func(Statistics) int64 { return 1 },
	},
	{CollProduct, CollOrderLine, "IDP"}: {
		Description: "order lines / products",
		Matches:     func(s Statistics) int64 { return s.OrderLines / s.Products },
	},
}

// DefaultMultiplicity applies to join edges absent from JoinMultiplicities.
const DefaultMultiplicity = 1

// Multiplicity looks up the fan-out of an (outer, inner, key) edge.
func Multiplicity(outer, inner, key string, s Statistics) int64 {
	rule, ok := JoinMultiplicities[JoinEdge{outer, inner, key}]
	if !ok {
		return DefaultMultiplicity
	}
	return rule.Matches(s)
}

// Join estimates a nested-loop join between two collections of the layout.
func (m Model) Join(layout *Layout, p JoinParams) (OperatorCost, error) {
	outerSchema, err := layout.mustSchema(p.Outer)
	if err != nil {
		return OperatorCost{}, err
	}
	innerSchema, err := layout.mustSchema(p.Inner)
	if err != nil {
		return OperatorCost{}, err
	}

	outer, err := m.Filter(layout, FilterParams{
		Collection:  p.Outer,
		FilterKey:   p.OuterFilterKey,
		Selectivity: p.OuterSelectivity,
		Projected:   p.OuterProjected,
		Sharded:     p.Sharded,
		ShardAware:  p.ShardAligned,
		Indexed:     true,
	})
	if err != nil {
		return OperatorCost{}, err
	}

	innerDoc, err := SizeOf(innerSchema)
	if err != nil {
		return OperatorCost{}, err
	}
	innerProj, err := ProjectionSize(innerSchema, p.InnerProjected)
	if err != nil {
		return OperatorCost{}, err
	}
	outerProj, err := ProjectionSize(outerSchema, p.OuterProjected)
	if err != nil {
		return OperatorCost{}, err
	}

	hits := outer.OutputDocs * float64(Multiplicity(p.Outer, p.Inner, p.JoinKey, m.Stats))

	var shards int64 = 1
	if p.Sharded && !p.ShardAligned {
		shards = m.Infra.Servers
	}
	var parallelism int64 = 1
	if p.Sharded {
		parallelism = shards
	}
	return m.cost(
		variantName("nested_loop", p.Sharded),
		hits,
		hits*float64(outerProj+innerProj),
		outer.ScannedBytes+hits*float64(innerDoc),
		shards, shards, parallelism,
	), nil
}
