package domain

import "fmt"

// QuerySpec is a named workload query: SQL text plus its physical posture.
type QuerySpec struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	SQL   string `yaml:"sql" json:"sql"`
	// Indexed: an index exists on the filter key.
	Indexed bool `yaml:"indexed" json:"indexed"`
	// ShardAware: once sharded, the filter/join/group key is the shard key.
	ShardAware bool `yaml:"shard_aware" json:"shard_aware"`
}

// Postures returns the two setups every query is estimated under: a single
// unsharded server, then the sharded cluster.
func (q QuerySpec) Postures() []Posture {
	return []Posture{
		{Sharded: false, ShardAware: false, Indexed: q.Indexed},
		{Sharded: true, ShardAware: q.ShardAware, Indexed: q.Indexed},
	}
}

// Compile parses the query text.
func (q QuerySpec) Compile() (*QueryShape, error) {
	shape, err := CompileQuery(q.SQL)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.ID, err)
	}
	return shape, nil
}

// DemoQueries is the reference workload.
func DemoQueries() []QuerySpec {
	return []QuerySpec{
		{
			ID:         "Q1",
			Title:      "Stock of a given product in a given warehouse",
			SQL:        "SELECT quantity, location FROM Stock WHERE IDP = 42 AND IDW = 7",
			Indexed:    true,
			ShardAware: true,
		},
		{
			ID:      "Q2",
			Title:   "Name and price of Apple products",
			SQL:     "SELECT name, price FROM Product WHERE brand = 'Apple'",
			Indexed: true,
		},
		{
			ID:    "Q3",
			Title: "Products and quantities ordered on a given day",
			SQL:   "SELECT IDP, quantity FROM OrderLine WHERE date = '2024-01-15'",
		},
		{
			ID:         "Q4",
			Title:      "Stock of a given product in every warehouse",
			SQL:        "SELECT p.name, s.IDW, s.quantity FROM Product p JOIN Stock s ON p.IDP = s.IDP WHERE p.IDP = 42",
			Indexed:    true,
			ShardAware: true,
		},
		{
			ID:      "Q5",
			Title:   "Warehouse distribution of Apple products",
			SQL:     "SELECT p.name, s.IDW, s.quantity FROM Product p JOIN Stock s ON p.IDP = s.IDP WHERE p.brand = 'Apple'",
			Indexed: true,
		},
		{
			ID:         "Q6",
			Title:      "Products bought by a given client, with total quantities",
			SQL:        "SELECT IDP, SUM(quantity) FROM OrderLine WHERE IDC = 125 GROUP BY IDP",
			ShardAware: true,
		},
		{
			ID:    "Q7",
			Title: "Total quantity sold per product",
			SQL:   "SELECT IDP, SUM(quantity) FROM OrderLine GROUP BY IDP",
		},
	}
}
