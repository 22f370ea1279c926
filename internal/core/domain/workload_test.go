package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileQuery_Shapes(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want *QueryShape
	}{
		{
			name: "filter with two predicates",
			sql:  "SELECT quantity, location FROM Stock WHERE IDP = 42 AND IDW = 7",
			want: &QueryShape{
				Collections: []string{CollStock},
				Projected:   map[string][]string{CollStock: {"quantity", "location"}},
				Predicates: []Predicate{
					{CollStock, "IDP", "42"},
					{CollStock, "IDW", "7"},
				},
			},
		},
		{
			name: "identifiers are case-insensitive",
			sql:  "select NAME, Price from product where BRAND = 'Apple'",
			want: &QueryShape{
				Collections: []string{CollProduct},
				Projected:   map[string][]string{CollProduct: {"name", "price"}},
				Predicates:  []Predicate{{CollProduct, "brand", "Apple"}},
			},
		},
		{
			name: "bind parameter and cast",
			sql:  "SELECT IDP FROM OrderLine WHERE date = $1::date",
			want: &QueryShape{
				Collections: []string{CollOrderLine},
				Projected:   map[string][]string{CollOrderLine: {"IDP"}},
				Predicates:  []Predicate{{CollOrderLine, "date", ""}},
			},
		},
		{
			name: "star selects the whole document",
			sql:  "SELECT * FROM Client WHERE 10 = IDC",
			want: &QueryShape{
				Collections: []string{CollClient},
				Projected:   map[string][]string{},
				Predicates:  []Predicate{{CollClient, "IDC", "10"}},
			},
		},
		{
			name: "aliased join",
			sql:  "SELECT p.name, s.IDW FROM Product p JOIN Stock s ON p.IDP = s.IDP WHERE p.IDP = 42",
			want: &QueryShape{
				Collections: []string{CollProduct, CollStock},
				Projected:   map[string][]string{CollProduct: {"name"}, CollStock: {"IDW"}},
				Predicates:  []Predicate{{CollProduct, "IDP", "42"}},
				JoinKey:     "IDP",
			},
		},
		{
			name: "implicit join in WHERE",
			sql:  "SELECT Stock.quantity FROM Stock, Product WHERE Stock.IDP = Product.IDP AND Stock.IDW = 3",
			want: &QueryShape{
				Collections: []string{CollStock, CollProduct},
				Projected:   map[string][]string{CollStock: {"quantity"}},
				Predicates:  []Predicate{{CollStock, "IDW", "3"}},
				JoinKey:     "IDP",
			},
		},
		{
			name: "grouped aggregate",
			sql:  "SELECT IDP, SUM(quantity) FROM OrderLine WHERE IDC = 125 GROUP BY IDP",
			want: &QueryShape{
				Collections: []string{CollOrderLine},
				Projected:   map[string][]string{CollOrderLine: {"IDP"}},
				Predicates:  []Predicate{{CollOrderLine, "IDC", "125"}},
				GroupKeys:   []string{"IDP"},
				Aggregates:  []string{"sum"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompileQuery(tt.sql)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CompileQuery() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileQuery_Rejects(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want error
	}{
		{"empty", "   ", ErrEmptyQuery},
		{"syntax error", "SELEC nothing", ErrParseFailed},
		{"multiple statements", "SELECT 1 FROM Stock; SELECT 2 FROM Stock", ErrMultiStatement},
		{"insert", "INSERT INTO Stock (IDP) VALUES (1)", ErrNotAllowed},
		{"delete", "DELETE FROM Stock", ErrNotAllowed},
		{"union", "SELECT IDP FROM Stock UNION SELECT IDP FROM Product", ErrUnsupportedQuery},
		{"no from", "SELECT 1", ErrUnsupportedQuery},
		{"unknown collection", "SELECT * FROM Supplier", ErrUnknownCollection},
		{"three collections", "SELECT * FROM Stock, Product, Warehouse", ErrUnsupportedQuery},
		{"left join", "SELECT * FROM Product p LEFT JOIN Stock s ON p.IDP = s.IDP", ErrUnsupportedQuery},
		{"or condition", "SELECT * FROM Product WHERE brand = 'a' OR brand = 'b'", ErrUnsupportedQuery},
		{"range condition", "SELECT * FROM OrderLine WHERE quantity > 3", ErrUnsupportedQuery},
		{"cross join", "SELECT * FROM Product, Stock", ErrUnsupportedQuery},
		{"filter on inner side", "SELECT * FROM Product p JOIN Stock s ON p.IDP = s.IDP WHERE s.IDW = 1", ErrUnsupportedQuery},
		{"group by over join", "SELECT p.IDP FROM Product p JOIN Stock s ON p.IDP = s.IDP GROUP BY p.IDP", ErrUnsupportedQuery},
		{"self join", "SELECT * FROM Stock a JOIN Stock b ON a.IDP = b.IDP", ErrUnsupportedQuery},
		{"unknown alias", "SELECT x.name FROM Product p", ErrUnknownCollection},
		{"expression in select list", "SELECT quantity + 1 FROM Stock", ErrUnsupportedQuery},
		{"aggregate without group by", "SELECT COUNT(*) FROM OrderLine WHERE date = '2024-01-15'", ErrUnsupportedQuery},
		{"aggregate over join", "SELECT SUM(s.quantity) FROM Product p JOIN Stock s ON p.IDP = s.IDP", ErrUnsupportedQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileQuery(tt.sql)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQueryShapeBind(t *testing.T) {
	s := DefaultStatistics()

	t.Run("filter selectivities multiply", func(t *testing.T) {
		shape, err := CompileQuery("SELECT quantity FROM Stock WHERE IDP = 1 AND IDW = 2")
		require.NoError(t, err)

		plan := shape.Bind(Posture{Sharded: true, ShardAware: true, Indexed: true}, s)
		require.Equal(t, PlanFilter, plan.Kind)
		assert.Equal(t, "IDP", plan.Filter.FilterKey)
		assert.InEpsilon(t, 5e-8, plan.Filter.Selectivity, 1e-12)
		assert.True(t, plan.Filter.Sharded)
		assert.True(t, plan.Filter.ShardAware)
		assert.True(t, plan.Filter.Indexed)
		assert.Equal(t, []string{CollStock}, plan.Collections())
	})

	t.Run("no predicate selects everything", func(t *testing.T) {
		shape, err := CompileQuery("SELECT name FROM Product")
		require.NoError(t, err)
		plan := shape.Bind(Posture{}, s)
		assert.Equal(t, 1.0, plan.Filter.Selectivity)
		assert.Empty(t, plan.Filter.FilterKey)
	})

	t.Run("join", func(t *testing.T) {
		shape, err := CompileQuery("SELECT p.name, s.quantity FROM Product p JOIN Stock s ON s.IDP = p.IDP WHERE p.brand = 'Apple'")
		require.NoError(t, err)
		plan := shape.Bind(Posture{Sharded: true}, s)
		require.Equal(t, PlanJoin, plan.Kind)
		assert.Equal(t, CollProduct, plan.Join.Outer)
		assert.Equal(t, CollStock, plan.Join.Inner)
		assert.Equal(t, "IDP", plan.Join.JoinKey)
		assert.Equal(t, "brand", plan.Join.OuterFilterKey)
		assert.InEpsilon(t, 0.0005, plan.Join.OuterSelectivity, 1e-12)
		assert.Equal(t, []string{"name"}, plan.Join.OuterProjected)
		assert.Equal(t, []string{"quantity"}, plan.Join.InnerProjected)
		assert.Equal(t, []string{CollProduct, CollStock}, plan.Collections())
	})

	t.Run("aggregate without filter", func(t *testing.T) {
		shape, err := CompileQuery("SELECT IDP, SUM(quantity) FROM OrderLine GROUP BY IDP")
		require.NoError(t, err)
		plan := shape.Bind(Posture{}, s)
		require.Equal(t, PlanAggregate, plan.Kind)
		assert.Nil(t, plan.Aggregate.FilterSelectivity)
		assert.Empty(t, plan.Aggregate.FilterKey)
		assert.Equal(t, []string{"IDP"}, plan.Aggregate.GroupKeys)
	})

	t.Run("aggregate with filter", func(t *testing.T) {
		shape, err := CompileQuery("SELECT IDP, SUM(quantity) FROM OrderLine WHERE IDC = 9 GROUP BY IDP")
		require.NoError(t, err)
		plan := shape.Bind(Posture{}, s)
		require.NotNil(t, plan.Aggregate.FilterSelectivity)
		assert.Equal(t, "IDC", plan.Aggregate.FilterKey)
		assert.InEpsilon(t, 1e-7, *plan.Aggregate.FilterSelectivity, 1e-12)
	})
}

func TestDemoQueries(t *testing.T) {
	queries := DemoQueries()
	require.Len(t, queries, 7)

	wantKinds := map[string]PlanKind{
		"Q1": PlanFilter, "Q2": PlanFilter, "Q3": PlanFilter,
		"Q4": PlanJoin, "Q5": PlanJoin,
		"Q6": PlanAggregate, "Q7": PlanAggregate,
	}

	m := DefaultModel()
	db1 := mustLayout(t, DB1)
	for _, q := range queries {
		t.Run(q.ID, func(t *testing.T) {
			shape, err := q.Compile()
			require.NoError(t, err)
			assert.Equal(t, wantKinds[q.ID], shape.Kind())

			postures := q.Postures()
			require.Len(t, postures, 2)
			assert.False(t, postures[0].Sharded)
			assert.True(t, postures[1].Sharded)

			for _, p := range postures {
				cost, err := m.Evaluate(db1, shape.Bind(p, m.Stats))
				require.NoError(t, err)
				assert.GreaterOrEqual(t, cost.ShardsTouched, int64(1))
				assert.LessOrEqual(t, cost.ShardsTouched, m.Infra.Servers)
				assert.Positive(t, cost.TimeS)
			}
		})
	}
}

func TestDemoQueries_NotApplicableAcrossLayouts(t *testing.T) {
	m := DefaultModel()
	layouts, err := AllLayouts(AveragesFor(m.Stats))
	require.NoError(t, err)

	// Collections each query reads; a layout lacking one yields N/A.
	for _, q := range DemoQueries() {
		shape, err := q.Compile()
		require.NoError(t, err)
		plan := shape.Bind(q.Postures()[0], m.Stats)

		for _, l := range layouts {
			_, err := m.Evaluate(l, plan)
			missing := false
			for _, c := range plan.Collections() {
				if !l.Has(c) {
					missing = true
				}
			}
			if missing {
				_, ok := NotApplicable(err)
				assert.True(t, ok, "%s on %s", q.ID, l.Name)
			} else {
				assert.NoError(t, err, "%s on %s", q.ID, l.Name)
			}
		}
	}
}

func TestQuerySpec_CompileWrapsID(t *testing.T) {
	_, err := QuerySpec{ID: "QX", SQL: "DROP TABLE Stock"}.Compile()
	require.ErrorIs(t, err, ErrNotAllowed)
	assert.Contains(t, err.Error(), "QX")
}
