package domain

// ShardKeyClass describes how well a shard key spreads its values over the cluster.
type ShardKeyClass string

const (
	// ShardKeyInsufficient: fewer distinct values than servers, some servers hold nothing.
	ShardKeyInsufficient ShardKeyClass = "insufficient"
	// ShardKeyCoarse: every server holds a handful of key values; hot keys hurt.
	ShardKeyCoarse ShardKeyClass = "coarse"
	ShardKeyFine   ShardKeyClass = "fine"
)

// coarseDistinctPerServer is the distinct-values-per-server count under which
// a shard key is considered coarse.
const coarseDistinctPerServer = 10

// ClassifyShardKey classifies a shard key from its distinct value count and the
// cluster size.
func ClassifyShardKey(distinctValues, servers int64) ShardKeyClass {
	if servers <= 0 || distinctValues < servers {
		return ShardKeyInsufficient
	}
	if distinctValues < coarseDistinctPerServer*servers {
		return ShardKeyCoarse
	}
	return ShardKeyFine
}
