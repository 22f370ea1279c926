package domain

import "fmt"

// Statistics holds dataset-wide cardinalities.
type Statistics struct {
	Clients       int64 `yaml:"clients" json:"clients"`
	Products      int64 `yaml:"products" json:"products"`
	OrderLines    int64 `yaml:"order_lines" json:"order_lines"`
	Warehouses    int64 `yaml:"warehouses" json:"warehouses"`
	Brands        int64 `yaml:"brands" json:"brands"`
	AppleProducts int64 `yaml:"apple_products" json:"apple_products"`

	// AvgProductsPerClient is the number of distinct products one client has
	// bought, used when order lines of a single client are grouped by product.
	AvgProductsPerClient int64 `yaml:"avg_products_per_client" json:"avg_products_per_client"`
}

// DefaultStatistics returns the reference dataset.
func DefaultStatistics() Statistics {
	return Statistics{
		Clients:              10_000_000,
		Products:             100_000,
		OrderLines:           4_000_000_000,
		Warehouses:           200,
		Brands:               5_000,
		AppleProducts:        50,
		AvgProductsPerClient: 100,
	}
}

// Stock is the number of stock documents. A stock row exists for every
// (product, warehouse) pair, even with zero quantity.
func (s Statistics) Stock() int64 {
	return s.Products * s.Warehouses
}

// Validate rejects statistics that would make the cost model divide by zero.
func (s Statistics) Validate() error {
	checks := []struct {
		name string
		v    int64
	}{
		{"clients", s.Clients},
		{"products", s.Products},
		{"order_lines", s.OrderLines},
		{"warehouses", s.Warehouses},
		{"brands", s.Brands},
	}
	for _, c := range checks {
		if c.v <= 0 {
			return fmt.Errorf("statistics.%s must be positive, got %d", c.name, c.v)
		}
	}
	if s.AppleProducts < 0 || s.AppleProducts > s.Products {
		return fmt.Errorf("statistics.apple_products must be within [0, products], got %d", s.AppleProducts)
	}
	if s.AvgProductsPerClient < 0 {
		return fmt.Errorf("statistics.avg_products_per_client must be non-negative, got %d", s.AvgProductsPerClient)
	}
	return nil
}

// Averages are the expected array lengths used when sizing embedded arrays.
type Averages struct {
	CategoriesPerProduct int64
	StocksPerProduct     int64
	OrderLinesPerProduct int64
}

// AveragesFor derives array cardinalities from the statistics.
func AveragesFor(s Statistics) Averages {
	return Averages{
		CategoriesPerProduct: 2, // 1..5 categories, 2 on average
		StocksPerProduct:     s.Warehouses,
		OrderLinesPerProduct: s.OrderLines / s.Products,
	}
}

// Infra describes the cluster.
type Infra struct {
	Servers int64 `yaml:"servers" json:"servers"`
}

// DefaultInfra returns the reference 1 000-server cluster.
func DefaultInfra() Infra {
	return Infra{Servers: 1000}
}

// CollectionCardinality returns the number of top-level documents of a
// collection. Denormalization changes document shape, never the count.
// Unknown collections have no documents.
func CollectionCardinality(name string, s Statistics) int64 {
	switch name {
	case CollProduct:
		return s.Products
	case CollStock:
		return s.Stock()
	case CollWarehouse:
		return s.Warehouses
	case CollOrderLine:
		return s.OrderLines
	case CollClient:
		return s.Clients
	default:
		return 0
	}
}
