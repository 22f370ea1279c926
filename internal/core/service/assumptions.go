package service

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
)

// SelectivityAssumption is one row of the selectivity table, evaluated.
type SelectivityAssumption struct {
	Key         string  `json:"key"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
}

// MultiplicityAssumption is one row of the join fan-out table, evaluated.
type MultiplicityAssumption struct {
	Outer       string `json:"outer"`
	Inner       string `json:"inner"`
	Key         string `json:"key"`
	Description string `json:"description"`
	Matches     int64  `json:"matches"`
}

// GroupAssumption is one row of the distinct-group table, evaluated.
type GroupAssumption struct {
	Collection  string  `json:"collection"`
	GroupKeys   string  `json:"group_keys"`
	FilterKey   string  `json:"filter_key"`
	Description string  `json:"description"`
	Groups      float64 `json:"groups"`
}

// Assumptions lists every fixed input of the cost model with its value under
// the current statistics.
type Assumptions struct {
	Statistics          domain.Statistics        `json:"statistics"`
	Infra               domain.Infra             `json:"infra"`
	Rates               domain.CostRates         `json:"cost_rates"`
	DefaultSelectivity  float64                  `json:"default_selectivity"`
	Selectivities       []SelectivityAssumption  `json:"selectivities"`
	DefaultMultiplicity int64                    `json:"default_multiplicity"`
	Multiplicities      []MultiplicityAssumption `json:"multiplicities"`
	Groups              []GroupAssumption        `json:"groups"`
}

// Assumptions evaluates the selectivity, multiplicity and group tables. Rows
// are sorted so the output is stable.
func (s *EstimatorService) Assumptions() Assumptions {
	stats := s.model.Stats
	out := Assumptions{
		Statistics:          stats,
		Infra:               s.model.Infra,
		Rates:               s.model.Rates,
		DefaultSelectivity:  domain.DefaultSelectivity,
		DefaultMultiplicity: domain.DefaultMultiplicity,
	}

	for key, rule := range domain.SelectivityRules {
		out.Selectivities = append(out.Selectivities, SelectivityAssumption{
			Key:         key,
			Description: rule.Description,
			Value:       rule.Estimate(stats, ""),
		})
	}
	slices.SortFunc(out.Selectivities, func(a, b SelectivityAssumption) int {
		return strings.Compare(a.Key, b.Key)
	})

	for edge, rule := range domain.JoinMultiplicities {
		out.Multiplicities = append(out.Multiplicities, MultiplicityAssumption{
			Outer:       edge.Outer,
			Inner:       edge.Inner,
			Key:         edge.Key,
			Description: rule.Description,
			Matches:     rule.Matches(stats),
		})
	}
	slices.SortFunc(out.Multiplicities, func(a, b MultiplicityAssumption) int {
		return cmp.Or(
			strings.Compare(a.Outer, b.Outer),
			strings.Compare(a.Inner, b.Inner),
			strings.Compare(a.Key, b.Key),
		)
	})

	for key, rule := range domain.GroupCounts {
		out.Groups = append(out.Groups, GroupAssumption{
			Collection:  key.Collection,
			GroupKeys:   key.GroupKeys,
			FilterKey:   key.FilterKey,
			Description: rule.Description,
			Groups:      rule.Groups(stats),
		})
	}
	slices.SortFunc(out.Groups, func(a, b GroupAssumption) int {
		return cmp.Or(
			strings.Compare(a.Collection, b.Collection),
			strings.Compare(a.GroupKeys, b.GroupKeys),
			strings.Compare(a.FilterKey, b.FilterKey),
		)
	})
	return out
}
