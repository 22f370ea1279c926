package domain

import "strings"

const (
	// DefaultSelectivity applies to keys without a rule.
	DefaultSelectivity = 0.01
	// DaysPerYear spreads dated rows uniformly over one year.
	DaysPerYear = 365
)

// SelectivityRule estimates the fraction of documents matching key = value.
type SelectivityRule struct {
	Key         string
	Description string
	Estimate    func(s Statistics, value string) float64
}

// SelectivityRules are the uniform-distribution assumptions behind every
// demonstration query, keyed by filter key.
var SelectivityRules = map[string]SelectivityRule{
	"IDP": {
		Key:         "IDP",
		Description: "1 / products (point lookup)",
		Estimate:    func(s Statistics, _ string) float64 { return 1 / float64(s.Products) },
	},
	"IDW": {
		Key:         "IDW",
		Description: "1 / warehouses (point lookup)",
		Estimate:    func(s Statistics, _ string) float64 { return 1 / float64(s.Warehouses) },
	},
	"IDC": {
		Key:         "IDC",
		Description: "1 / clients (point lookup)",
		Estimate:    func(s Statistics, _ string) float64 { return 1 / float64(s.Clients) },
	},
	"brand": {
		Key:         "brand",
		Description: "apple_products / products for \"apple\", else 1 / brands",
		Estimate: func(s Statistics, value string) float64 {
			if strings.EqualFold(value, "apple") {
				return float64(s.AppleProducts) / float64(s.Products)
			}
			return 1 / float64(s.Brands)
		},
	},
	"date": {
		Key:         "date",
		Description: "1 / 365 (uniform over a year)",
		Estimate:    func(Statistics, string) float64 { return 1.0 / DaysPerYear },
	},
}

// Selectivity returns the expected matching fraction of collection documents
// for key = value. Keys are global: the collection does not change the estimate.
func Selectivity(_, key, value string, s Statistics) float64 {
	rule, ok := SelectivityRules[key]
	if !ok {
		return DefaultSelectivity
	}
	return rule.Estimate(s, value)
}
