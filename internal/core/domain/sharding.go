package domain

// ShardReport is the per-server average load of one sharding strategy.
type ShardReport struct {
	Collection              string        `json:"collection"`
	Strategy                string        `json:"strategy"`
	Key                     string        `json:"key"`
	DocsPerServer           float64       `json:"docs_per_server"`
	DistinctValuesPerServer float64       `json:"distinct_values_per_server"`
	KeyClass                ShardKeyClass `json:"key_class"`
}

// ShardStrategy shards a collection on a key.
type ShardStrategy struct {
	Collection string
	Label      string
	Key        string
	// Distinct returns the number of distinct shard-key values.
	Distinct func(s Statistics) int64
}

// ShardStrategies are the sharding options assessed by the report, in report order.
var ShardStrategies = []ShardStrategy{
	{CollStock, "St - #IDP", "IDP", func(s Statistics) int64 { return s.Products }},
	{CollStock, "St - #IDW", "IDW", func(s Statistics) int64 { return s.Warehouses }},
	{CollOrderLine, "OL - #IDC", "IDC", func(s Statistics) int64 { return s.Clients }},
	{CollOrderLine, "OL - #IDP", "IDP", func(s Statistics) int64 { return s.Products }},
	{CollProduct, "Prod - #IDP", "IDP", func(s Statistics) int64 { return s.Products }},
	{CollProduct, "Prod - #brand", "brand", func(s Statistics) int64 { return s.Brands }},
}

// Shard computes the report of one strategy.
func (st ShardStrategy) Shard(s Statistics, infra Infra) ShardReport {
	distinct := st.Distinct(s)
	servers := float64(infra.Servers)
	return ShardReport{
		Collection:              st.Collection,
		Strategy:                st.Label,
		Key:                     st.Key,
		DocsPerServer:           float64(CollectionCardinality(st.Collection, s)) / servers,
		DistinctValuesPerServer: float64(distinct) / servers,
		KeyClass:                ClassifyShardKey(distinct, infra.Servers),
	}
}

// ShardingReports evaluates every strategy of ShardStrategies.
func ShardingReports(s Statistics, infra Infra) []ShardReport {
	reports := make([]ShardReport, len(ShardStrategies))
	for i, st := range ShardStrategies {
		reports[i] = st.Shard(s, infra)
	}
	return reports
}
