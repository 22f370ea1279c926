package domain

import (
	"fmt"
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/samber/lo"
)

// PlanKind names the operator family a query compiles to.
type PlanKind string

const (
	PlanFilter    PlanKind = "filter"
	PlanJoin      PlanKind = "join"
	PlanAggregate PlanKind = "aggregate"
)

// Posture is the physical setup a query is estimated under.
type Posture struct {
	Sharded bool `yaml:"sharded" json:"sharded"`
	// ShardAware means the filter, join or group key matches the shard key.
	ShardAware bool `yaml:"shard_aware" json:"shard_aware"`
	Indexed    bool `yaml:"indexed" json:"indexed"`
}

// Predicate is an equality between a collection field and a constant. Value is
// empty for bind parameters.
type Predicate struct {
	Collection string
	Field      string
	Value      string
}

// QueryShape is the operator-relevant content of a SELECT statement.
type QueryShape struct {
	Collections []string            // FROM order; the first is the outer side of a join
	Projected   map[string][]string // per collection, in select-list order
	Predicates  []Predicate
	JoinKey     string
	GroupKeys   []string
	Aggregates  []string
}

// Kind returns the operator family of the shape.
func (q *QueryShape) Kind() PlanKind {
	switch {
	case len(q.Collections) == 2:
		return PlanJoin
	case len(q.GroupKeys) > 0:
		return PlanAggregate
	default:
		return PlanFilter
	}
}

// Plan is a compiled query bound to statistics and a posture.
type Plan struct {
	Kind      PlanKind         `json:"kind"`
	Filter    *FilterParams    `json:"filter,omitempty"`
	Join      *JoinParams      `json:"join,omitempty"`
	Aggregate *AggregateParams `json:"aggregate,omitempty"`
}

// Collections lists the collections the plan reads.
func (p Plan) Collections() []string {
	switch p.Kind {
	case PlanJoin:
		return []string{p.Join.Outer, p.Join.Inner}
	case PlanAggregate:
		return []string{p.Aggregate.Collection}
	default:
		return []string{p.Filter.Collection}
	}
}

// Evaluate runs the plan's operator against a layout.
func (m Model) Evaluate(layout *Layout, p Plan) (OperatorCost, error) {
	switch p.Kind {
	case PlanFilter:
		return m.Filter(layout, *p.Filter)
	case PlanJoin:
		return m.Join(layout, *p.Join)
	case PlanAggregate:
		return m.Aggregate(layout, *p.Aggregate)
	default:
		return OperatorCost{}, fmt.Errorf("%w: plan kind %q", ErrUnsupportedQuery, p.Kind)
	}
}

// Bind turns the shape into operator parameters. Selectivities of several
// predicates on the same collection multiply; no predicate means selectivity 1.
func (q *QueryShape) Bind(posture Posture, s Statistics) Plan {
	switch q.Kind() {
	case PlanJoin:
		outer, inner := q.Collections[0], q.Collections[1]
		key, sel := q.filterOn(outer, s)
		return Plan{Kind: PlanJoin, Join: &JoinParams{
			Outer:            outer,
			Inner:            inner,
			JoinKey:          q.JoinKey,
			OuterFilterKey:   key,
			OuterSelectivity: sel,
			OuterProjected:   q.Projected[outer],
			InnerProjected:   q.Projected[inner],
			Sharded:          posture.Sharded,
			ShardAligned:     posture.ShardAware,
		}}
	case PlanAggregate:
		coll := q.Collections[0]
		agg := &AggregateParams{
			Collection:   coll,
			GroupKeys:    q.GroupKeys,
			Projected:    q.Projected[coll],
			Sharded:      posture.Sharded,
			ShardAligned: posture.ShardAware,
		}
		if key, sel := q.filterOn(coll, s); key != "" {
			agg.FilterKey = key
			agg.FilterSelectivity = &sel
		}
		return Plan{Kind: PlanAggregate, Aggregate: agg}
	default:
		coll := q.Collections[0]
		key, sel := q.filterOn(coll, s)
		return Plan{Kind: PlanFilter, Filter: &FilterParams{
			Collection:  coll,
			FilterKey:   key,
			Selectivity: sel,
			Projected:   q.Projected[coll],
			Sharded:     posture.Sharded,
			ShardAware:  posture.ShardAware,
			Indexed:     posture.Indexed,
		}}
	}
}

// filterOn returns the leading filter key on a collection and the combined
// selectivity of all its predicates.
func (q *QueryShape) filterOn(coll string, s Statistics) (string, float64) {
	key, sel := "", 1.0
	for _, p := range q.Predicates {
		if p.Collection != coll {
			continue
		}
		if key == "" {
			key = p.Field
		}
		sel *= Selectivity(coll, p.Field, p.Value, s)
	}
	return key, sel
}

// catalog maps lower-cased collection names to their normalized schemas; it
// resolves identifiers, which PostgreSQL folds to lower case.
var catalog = map[string]Collection{
	"product":   {CollProduct, ProductSchema(Averages{})},
	"stock":     {CollStock, StockSchema()},
	"warehouse": {CollWarehouse, WarehouseSchema()},
	"orderline": {CollOrderLine, OrderLineSchema()},
	"client":    {CollClient, ClientSchema()},
}

// CompileQuery parses a single SELECT statement and extracts the operator shape.
// Supported: one collection with equality predicates, an optional GROUP BY
// (required when the select list aggregates),
// or an equi-join of two collections with predicates on the outer one.
func CompileQuery(sql string) (*QueryShape, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, ErrEmptyQuery
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	stmts := tree.GetStmts()
	if len(stmts) == 0 {
		return nil, ErrEmptyQuery
	}
	if len(stmts) > 1 {
		return nil, ErrMultiStatement
	}
	sel := stmts[0].GetStmt().GetSelectStmt()
	if sel == nil {
		return nil, ErrNotAllowed
	}
	if sel.GetOp() != pg_query.SetOperation_SETOP_NONE {
		return nil, fmt.Errorf("%w: set operations", ErrUnsupportedQuery)
	}

	c := &compiler{
		aliases: make(map[string]string),
		shape:   &QueryShape{Projected: make(map[string][]string)},
	}
	for _, from := range sel.GetFromClause() {
		if err := c.from(from); err != nil {
			return nil, err
		}
	}
	switch n := len(c.shape.Collections); {
	case n == 0:
		return nil, fmt.Errorf("%w: missing FROM clause", ErrUnsupportedQuery)
	case n > 2:
		return nil, fmt.Errorf("%w: %d collections, at most 2 can be joined", ErrUnsupportedQuery, n)
	}

	if w := sel.GetWhereClause(); w != nil {
		if err := c.where(w); err != nil {
			return nil, err
		}
	}
	if err := c.targets(sel.GetTargetList()); err != nil {
		return nil, err
	}
	for _, g := range sel.GetGroupClause() {
		coll, field, err := c.column(g)
		if err != nil {
			return nil, fmt.Errorf("GROUP BY: %w", err)
		}
		if coll != c.shape.Collections[0] {
			return nil, fmt.Errorf("%w: grouping on the inner collection", ErrUnsupportedQuery)
		}
		c.shape.GroupKeys = append(c.shape.GroupKeys, field)
	}
	if len(c.shape.Aggregates) > 0 && len(c.shape.GroupKeys) == 0 {
		return nil, fmt.Errorf("%w: aggregate without GROUP BY", ErrUnsupportedQuery)
	}

	if len(c.shape.Collections) == 2 {
		if c.shape.JoinKey == "" {
			return nil, fmt.Errorf("%w: join without an equality condition", ErrUnsupportedQuery)
		}
		if len(c.shape.GroupKeys) > 0 {
			return nil, fmt.Errorf("%w: GROUP BY over a join", ErrUnsupportedQuery)
		}
		inner := c.shape.Collections[1]
		if lo.ContainsBy(c.shape.Predicates, func(p Predicate) bool { return p.Collection == inner }) {
			return nil, fmt.Errorf("%w: filter on the inner collection %s", ErrUnsupportedQuery, inner)
		}
	}
	return c.shape, nil
}

type compiler struct {
	aliases map[string]string // alias or lower-cased name -> collection
	shape   *QueryShape
}

func (c *compiler) from(n *pg_query.Node) error {
	if rv := n.GetRangeVar(); rv != nil {
		return c.addCollection(rv)
	}
	if je := n.GetJoinExpr(); je != nil {
		if je.GetJointype() != pg_query.JoinType_JOIN_INNER {
			return fmt.Errorf("%w: only inner joins are estimated", ErrUnsupportedQuery)
		}
		if err := c.from(je.GetLarg()); err != nil {
			return err
		}
		if err := c.from(je.GetRarg()); err != nil {
			return err
		}
		if q := je.GetQuals(); q != nil {
			return c.where(q)
		}
		return nil
	}
	return fmt.Errorf("%w: FROM item must be a collection or a join", ErrUnsupportedQuery)
}

func (c *compiler) addCollection(rv *pg_query.RangeVar) error {
	entry, ok := catalog[strings.ToLower(rv.GetRelname())]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, rv.GetRelname())
	}
	if lo.Contains(c.shape.Collections, entry.Name) {
		return fmt.Errorf("%w: self-join on %s", ErrUnsupportedQuery, entry.Name)
	}
	c.shape.Collections = append(c.shape.Collections, entry.Name)
	c.aliases[strings.ToLower(entry.Name)] = entry.Name
	if alias := rv.GetAlias().GetAliasname(); alias != "" {
		c.aliases[strings.ToLower(alias)] = entry.Name
	}
	return nil
}

func (c *compiler) where(n *pg_query.Node) error {
	if be := n.GetBoolExpr(); be != nil {
		if be.GetBoolop() != pg_query.BoolExprType_AND_EXPR {
			return fmt.Errorf("%w: only AND-ed conditions are estimated", ErrUnsupportedQuery)
		}
		for _, arg := range be.GetArgs() {
			if err := c.where(arg); err != nil {
				return err
			}
		}
		return nil
	}

	ae := n.GetAExpr()
	if ae == nil || ae.GetKind() != pg_query.A_Expr_Kind_AEXPR_OP || operatorName(ae) != "=" {
		return fmt.Errorf("%w: only equality conditions are estimated", ErrUnsupportedQuery)
	}
	left, right := ae.GetLexpr(), ae.GetRexpr()
	if left.GetColumnRef() != nil && right.GetColumnRef() != nil {
		return c.joinCondition(left, right)
	}
	if left.GetColumnRef() == nil {
		left, right = right, left
	}
	coll, field, err := c.column(left)
	if err != nil {
		return err
	}
	value, ok := constantValue(right)
	if !ok {
		return fmt.Errorf("%w: %s.%s must be compared with a constant or parameter", ErrUnsupportedQuery, coll, field)
	}
	c.shape.Predicates = append(c.shape.Predicates, Predicate{Collection: coll, Field: field, Value: value})
	return nil
}

func (c *compiler) joinCondition(left, right *pg_query.Node) error {
	lc, lf, err := c.column(left)
	if err != nil {
		return err
	}
	rc, rf, err := c.column(right)
	if err != nil {
		return err
	}
	if lc == rc {
		return fmt.Errorf("%w: column comparison within %s", ErrUnsupportedQuery, lc)
	}
	key := lf
	if rc == c.shape.Collections[0] {
		key = rf
	}
	if c.shape.JoinKey != "" && c.shape.JoinKey != key {
		return fmt.Errorf("%w: composite join keys", ErrUnsupportedQuery)
	}
	c.shape.JoinKey = key
	return nil
}

func (c *compiler) targets(list []*pg_query.Node) error {
	for _, t := range list {
		val := t.GetResTarget().GetVal()
		switch {
		case val.GetColumnRef() != nil:
			if isStar(val.GetColumnRef()) {
				continue // whole document: projection falls back to the full size
			}
			coll, field, err := c.column(val)
			if err != nil {
				return err
			}
			c.shape.Projected[coll] = append(c.shape.Projected[coll], field)
		case val.GetFuncCall() != nil:
			c.shape.Aggregates = append(c.shape.Aggregates, funcName(val.GetFuncCall()))
		default:
			return fmt.Errorf("%w: select list items must be columns or aggregates", ErrUnsupportedQuery)
		}
	}
	return nil
}

// column resolves a column reference to a collection and a canonical field
// name. Unqualified names belong to the first collection declaring them.
// Unknown fields keep their spelling and later contribute nothing to sizes.
func (c *compiler) column(n *pg_query.Node) (string, string, error) {
	cr := n.GetColumnRef()
	if cr == nil {
		return "", "", fmt.Errorf("%w: expected a column reference", ErrUnsupportedQuery)
	}
	parts := lo.FilterMap(cr.GetFields(), func(f *pg_query.Node, _ int) (string, bool) {
		s := f.GetString_()
		return s.GetSval(), s != nil
	})
	switch len(parts) {
	case 1:
		for _, coll := range c.shape.Collections {
			if field, ok := resolveField(coll, parts[0]); ok {
				return coll, field, nil
			}
		}
		return c.shape.Collections[0], parts[0], nil
	case 2:
		coll, ok := c.aliases[strings.ToLower(parts[0])]
		if !ok {
			return "", "", fmt.Errorf("%w: %q is not a collection or alias in FROM", ErrUnknownCollection, parts[0])
		}
		if field, ok := resolveField(coll, parts[1]); ok {
			return coll, field, nil
		}
		return coll, parts[1], nil
	default:
		return "", "", fmt.Errorf("%w: column reference %q", ErrUnsupportedQuery, strings.Join(parts, "."))
	}
}

func resolveField(coll, name string) (string, bool) {
	entry, ok := catalog[strings.ToLower(coll)]
	if !ok {
		return "", false
	}
	obj, ok := entry.Schema.(Object)
	if !ok {
		return "", false
	}
	return lo.Find(obj.FieldNames(), func(f string) bool { return strings.EqualFold(f, name) })
}

func constantValue(n *pg_query.Node) (string, bool) {
	if tc := n.GetTypeCast(); tc != nil {
		return constantValue(tc.GetArg())
	}
	if n.GetParamRef() != nil {
		return "", true
	}
	ac := n.GetAConst()
	if ac == nil {
		return "", false
	}
	switch {
	case ac.GetSval() != nil:
		return ac.GetSval().GetSval(), true
	case ac.GetIval() != nil:
		return strconv.FormatInt(int64(ac.GetIval().GetIval()), 10), true
	case ac.GetFval() != nil:
		return ac.GetFval().GetFval(), true
	case ac.GetBoolval() != nil:
		return strconv.FormatBool(ac.GetBoolval().GetBoolval()), true
	default:
		// A bare 0 is encoded as an Ival with no value set.
		return "0", !ac.GetIsnull()
	}
}

func operatorName(ae *pg_query.A_Expr) string {
	names := ae.GetName()
	if len(names) == 0 {
		return ""
	}
	return names[len(names)-1].GetString_().GetSval()
}

func funcName(fc *pg_query.FuncCall) string {
	names := fc.GetFuncname()
	if len(names) == 0 {
		return ""
	}
	return strings.ToLower(names[len(names)-1].GetString_().GetSval())
}

func isStar(cr *pg_query.ColumnRef) bool {
	return lo.ContainsBy(cr.GetFields(), func(f *pg_query.Node) bool { return f.GetAStar() != nil })
}
