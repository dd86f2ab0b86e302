package simpledb

// A small SQL front end over github.com/xwb1989/sqlparser. One statement per
// call; the supported surface is:
//
//	SELECT cols-or-aggregates FROM t [JOIN t2 ON a = b]
//	    [WHERE conjunctions of col op literal] [GROUP BY col]
//	    [ORDER BY col [ASC|DESC], ...] [LIMIT n]
//	INSERT INTO t VALUES (...), (...)
//	DELETE FROM t [WHERE ...]
//	BEGIN / COMMIT / ROLLBACK
//
// Parse returns the query class and, for iterator queries, the root of the
// physical plan.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"
)

type QueryType int

const (
	UnknownQueryType QueryType = iota
	IteratorType
	BeginXactionType
	CommitXactionType
	AbortXactionType
)

func parseError(format string, args ...any) error {
	return SimpleDBError{ParseError, fmt.Sprintf(format, args...)}
}

// Parse compiles one SQL statement against the catalog.
func Parse(c *Catalog, query string) (QueryType, Operator, error) {
	stmt, err := sqlparser.Parse(query)
	if err != nil {
		return UnknownQueryType, nil, parseError("failed to parse %q: %v", query, err)
	}
	switch stmt := stmt.(type) {
	case *sqlparser.Select:
		plan, err := parseSelect(c, stmt)
		return IteratorType, plan, err
	case *sqlparser.Insert:
		plan, err := parseInsert(c, stmt)
		return IteratorType, plan, err
	case *sqlparser.Delete:
		plan, err := parseDelete(c, stmt)
		return IteratorType, plan, err
	case *sqlparser.Begin:
		return BeginXactionType, nil, nil
	case *sqlparser.Commit:
		return CommitXactionType, nil, nil
	case *sqlparser.Rollback:
		return AbortXactionType, nil, nil
	}
	return UnknownQueryType, nil, parseError("unsupported statement %T", stmt)
}

// resolveColumn turns a column reference into a FieldExpr bound to a column
// of desc.
func resolveColumn(col *sqlparser.ColName, desc *TupleDesc) (*FieldExpr, error) {
	ref := FieldType{
		Fname:          col.Name.String(),
		TableQualifier: col.Qualifier.Name.String(),
		Ftype:          UnknownType,
	}
	i, err := findFieldInTd(ref, desc)
	if err != nil {
		return nil, err
	}
	return NewFieldExpr(desc.Fields[i]), nil
}

// literalExpr turns a SQL literal into a ConstExpr.
func literalExpr(val *sqlparser.SQLVal) (*ConstExpr, error) {
	switch val.Type {
	case sqlparser.IntVal:
		v, err := strconv.ParseInt(string(val.Val), 10, 32)
		if err != nil {
			return nil, parseError("integer literal %s out of range", val.Val)
		}
		return NewIntConstExpr(int32(v)), nil
	case sqlparser.StrVal:
		return NewStringConstExpr(string(val.Val)), nil
	}
	return nil, parseError("unsupported literal %v", sqlparser.String(val))
}

var boolOps = map[string]BoolOp{
	sqlparser.EqualStr:        OpEq,
	sqlparser.LessThanStr:     OpLt,
	sqlparser.GreaterThanStr:  OpGt,
	sqlparser.LessEqualStr:    OpLe,
	sqlparser.GreaterEqualStr: OpGe,
	sqlparser.NotEqualStr:     OpNeq,
	sqlparser.LikeStr:         OpLike,
}

// splitConjuncts flattens a WHERE expression into its AND-ed comparisons.
func splitConjuncts(expr sqlparser.Expr, out []*sqlparser.ComparisonExpr) ([]*sqlparser.ComparisonExpr, error) {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		out, err := splitConjuncts(e.Left, out)
		if err != nil {
			return nil, err
		}
		return splitConjuncts(e.Right, out)
	case *sqlparser.ParenExpr:
		return splitConjuncts(e.Expr, out)
	case *sqlparser.ComparisonExpr:
		return append(out, e), nil
	}
	return nil, parseError("unsupported predicate %s", sqlparser.String(expr))
}

// applyFilters wraps plan in one Filter per col-op-literal conjunct.
func applyFilters(plan Operator, conjuncts []*sqlparser.ComparisonExpr) (Operator, error) {
	for _, cmp := range conjuncts {
		op, ok := boolOps[cmp.Operator]
		if !ok {
			return nil, parseError("unsupported comparison operator %q", cmp.Operator)
		}
		left, right := cmp.Left, cmp.Right
		col, ok := left.(*sqlparser.ColName)
		if !ok {
			// allow literal-op-column by flipping the comparison
			col, ok = right.(*sqlparser.ColName)
			if !ok {
				return nil, parseError("predicate %s does not reference a column", sqlparser.String(cmp))
			}
			right = left
			switch op {
			case OpLt:
				op = OpGt
			case OpGt:
				op = OpLt
			case OpLe:
				op = OpGe
			case OpGe:
				op = OpLe
			}
		}
		lit, ok := right.(*sqlparser.SQLVal)
		if !ok {
			return nil, parseError("predicate %s must compare against a literal", sqlparser.String(cmp))
		}
		fieldExpr, err := resolveColumn(col, plan.Descriptor())
		if err != nil {
			return nil, err
		}
		constExpr, err := literalExpr(lit)
		if err != nil {
			return nil, err
		}
		if fieldExpr.GetExprType().Ftype != constExpr.GetExprType().Ftype {
			return nil, parseError("predicate %s compares mismatched types", sqlparser.String(cmp))
		}
		plan, err = NewFilter(constExpr, op, fieldExpr, plan)
		if err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// parseFrom builds the scan (or join of two scans) described by the FROM
// clause.
func parseFrom(c *Catalog, from sqlparser.TableExprs) (Operator, error) {
	if len(from) != 1 {
		return nil, parseError("expected a single table or join in FROM")
	}
	switch te := from[0].(type) {
	case *sqlparser.AliasedTableExpr:
		return parseAliasedTable(c, te)
	case *sqlparser.JoinTableExpr:
		leftTe, ok := te.LeftExpr.(*sqlparser.AliasedTableExpr)
		if !ok {
			return nil, parseError("nested joins are not supported")
		}
		rightTe, ok := te.RightExpr.(*sqlparser.AliasedTableExpr)
		if !ok {
			return nil, parseError("nested joins are not supported")
		}
		left, err := parseAliasedTable(c, leftTe)
		if err != nil {
			return nil, err
		}
		right, err := parseAliasedTable(c, rightTe)
		if err != nil {
			return nil, err
		}
		on, ok := te.Condition.On.(*sqlparser.ComparisonExpr)
		if !ok || on.Operator != sqlparser.EqualStr {
			return nil, parseError("join requires an ON a = b condition")
		}
		lCol, ok := on.Left.(*sqlparser.ColName)
		if !ok {
			return nil, parseError("join condition must compare columns")
		}
		rCol, ok := on.Right.(*sqlparser.ColName)
		if !ok {
			return nil, parseError("join condition must compare columns")
		}
		lExpr, err := resolveColumn(lCol, left.Descriptor())
		if err != nil {
			// the ON sides need not be written left-to-right
			lExpr, err = resolveColumn(rCol, left.Descriptor())
			if err != nil {
				return nil, err
			}
			rCol = lCol
		}
		rExpr, err := resolveColumn(rCol, right.Descriptor())
		if err != nil {
			return nil, err
		}
		return NewJoin(left, lExpr, right, rExpr, 10000)
	}
	return nil, parseError("unsupported FROM clause")
}

func parseAliasedTable(c *Catalog, te *sqlparser.AliasedTableExpr) (Operator, error) {
	tn, ok := te.Expr.(sqlparser.TableName)
	if !ok {
		return nil, parseError("subqueries in FROM are not supported")
	}
	name := tn.Name.String()
	file, err := c.GetTable(name)
	if err != nil {
		return nil, err
	}
	alias := te.As.String()
	if alias == "" {
		alias = name
	}
	return NewSeqScan(file, alias), nil
}

// aggFuncs maps function names onto empty aggregate states.
var aggFuncs = map[string]func() AggState{
	"count": func() AggState { return &CountAggState{} },
	"sum":   func() AggState { return &SumAggState{} },
	"avg":   func() AggState { return &AvgAggState{} },
	"min":   func() AggState { return &MinAggState{} },
	"max":   func() AggState { return &MaxAggState{} },
}

func parseSelect(c *Catalog, stmt *sqlparser.Select) (Operator, error) {
	plan, err := parseFrom(c, stmt.From)
	if err != nil {
		return nil, err
	}

	if stmt.Where != nil {
		conjuncts, err := splitConjuncts(stmt.Where.Expr, nil)
		if err != nil {
			return nil, err
		}
		plan, err = applyFilters(plan, conjuncts)
		if err != nil {
			return nil, err
		}
	}

	// classify the select list into plain columns and aggregates
	var (
		selectExprs []Expr
		outputNames []string
		aggStates   []AggState
		star        bool
	)
	for _, se := range stmt.SelectExprs {
		switch se := se.(type) {
		case *sqlparser.StarExpr:
			star = true
		case *sqlparser.AliasedExpr:
			alias := se.As.String()
			switch e := se.Expr.(type) {
			case *sqlparser.ColName:
				fieldExpr, err := resolveColumn(e, plan.Descriptor())
				if err != nil {
					return nil, err
				}
				if alias == "" {
					alias = e.Name.String()
				}
				selectExprs = append(selectExprs, fieldExpr)
				outputNames = append(outputNames, alias)
			case *sqlparser.FuncExpr:
				state, err := parseAggFunc(e, alias, plan.Descriptor())
				if err != nil {
					return nil, err
				}
				aggStates = append(aggStates, state)
			default:
				return nil, parseError("unsupported select expression %s", sqlparser.String(se))
			}
		default:
			return nil, parseError("unsupported select expression %s", sqlparser.String(se))
		}
	}

	switch {
	case len(aggStates) > 0:
		if star {
			return nil, parseError("cannot mix * with aggregates")
		}
		if len(stmt.GroupBy) > 1 {
			return nil, parseError("at most one GROUP BY column is supported")
		}
		if len(stmt.GroupBy) == 1 {
			gCol, ok := stmt.GroupBy[0].(*sqlparser.ColName)
			if !ok {
				return nil, parseError("GROUP BY must name a column")
			}
			gExpr, err := resolveColumn(gCol, plan.Descriptor())
			if err != nil {
				return nil, err
			}
			for _, se := range selectExprs {
				if se.GetExprType().Fname != gExpr.GetExprType().Fname {
					return nil, parseError("column %s must appear in GROUP BY or an aggregate", se.GetExprType().Fname)
				}
			}
			plan = NewGroupedAggregator(aggStates, gExpr, plan)
		} else {
			if len(selectExprs) > 0 {
				return nil, parseError("non-aggregated columns require GROUP BY")
			}
			plan = NewAggregator(aggStates, plan)
		}
	case star:
		// SELECT * — no projection
	default:
		plan, err = NewProjectOp(selectExprs, outputNames, stmt.Distinct != "", plan)
		if err != nil {
			return nil, err
		}
	}

	if len(stmt.OrderBy) > 0 {
		var exprs []Expr
		var ascending []bool
		for _, ob := range stmt.OrderBy {
			oCol, ok := ob.Expr.(*sqlparser.ColName)
			if !ok {
				return nil, parseError("ORDER BY must name a column")
			}
			oExpr, err := resolveColumn(oCol, plan.Descriptor())
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, oExpr)
			ascending = append(ascending, ob.Direction != sqlparser.DescScr)
		}
		plan, err = NewOrderBy(exprs, plan, ascending)
		if err != nil {
			return nil, err
		}
	}

	if stmt.Limit != nil {
		lit, ok := stmt.Limit.Rowcount.(*sqlparser.SQLVal)
		if !ok || lit.Type != sqlparser.IntVal {
			return nil, parseError("LIMIT must be an integer literal")
		}
		limExpr, err := literalExpr(lit)
		if err != nil {
			return nil, err
		}
		plan = NewLimitOp(limExpr, plan)
	}
	return plan, nil
}

func parseAggFunc(fn *sqlparser.FuncExpr, alias string, desc *TupleDesc) (AggState, error) {
	name := fn.Name.Lowered()
	mk, ok := aggFuncs[name]
	if !ok {
		return nil, parseError("unsupported function %s", name)
	}
	if len(fn.Exprs) != 1 {
		return nil, parseError("%s takes exactly one argument", name)
	}

	var expr Expr
	switch arg := fn.Exprs[0].(type) {
	case *sqlparser.StarExpr:
		if name != "count" {
			return nil, parseError("%s(*) is not supported", name)
		}
		expr = NewIntConstExpr(1)
	case *sqlparser.AliasedExpr:
		col, ok := arg.Expr.(*sqlparser.ColName)
		if !ok {
			return nil, parseError("%s argument must be a column", name)
		}
		fieldExpr, err := resolveColumn(col, desc)
		if err != nil {
			return nil, err
		}
		expr = fieldExpr
	default:
		return nil, parseError("unsupported %s argument", name)
	}

	if alias == "" {
		alias = strings.ToLower(sqlparser.String(fn))
	}
	state := mk()
	if err := state.Init(alias, expr); err != nil {
		return nil, err
	}
	return state, nil
}

// valuesOp streams a fixed list of literal tuples, serving as the child of
// an insert plan.
type valuesOp struct {
	desc   *TupleDesc
	tuples []*Tuple
}

func (v *valuesOp) Descriptor() *TupleDesc {
	return v.desc
}

func (v *valuesOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	i := 0
	return func() (*Tuple, error) {
		if i >= len(v.tuples) {
			return nil, nil
		}
		t := v.tuples[i]
		i++
		return t, nil
	}, nil
}

func parseInsert(c *Catalog, stmt *sqlparser.Insert) (Operator, error) {
	file, err := c.GetTable(stmt.Table.Name.String())
	if err != nil {
		return nil, err
	}
	desc := file.Descriptor()

	rows, ok := stmt.Rows.(sqlparser.Values)
	if !ok {
		return nil, parseError("INSERT requires a VALUES list")
	}
	var tuples []*Tuple
	for _, row := range rows {
		if len(row) != len(desc.Fields) {
			return nil, parseError("INSERT row has %d values, table has %d columns", len(row), len(desc.Fields))
		}
		fields := make([]DBValue, 0, len(row))
		for i, val := range row {
			lit, ok := val.(*sqlparser.SQLVal)
			if !ok {
				return nil, parseError("INSERT values must be literals")
			}
			constExpr, err := literalExpr(lit)
			if err != nil {
				return nil, err
			}
			if constExpr.GetExprType().Ftype != desc.Fields[i].Ftype {
				return nil, parseError("value %s does not match type of column %s", sqlparser.String(val), desc.Fields[i].Fname)
			}
			fields = append(fields, constExpr.val)
		}
		tuples = append(tuples, &Tuple{*desc, fields, nil})
	}
	return NewInsertOp(file, &valuesOp{desc, tuples}), nil
}

func parseDelete(c *Catalog, stmt *sqlparser.Delete) (Operator, error) {
	if len(stmt.TableExprs) != 1 {
		return nil, parseError("DELETE requires a single table")
	}
	te, ok := stmt.TableExprs[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return nil, parseError("DELETE requires a single table")
	}
	tn, ok := te.Expr.(sqlparser.TableName)
	if !ok {
		return nil, parseError("DELETE requires a named table")
	}
	file, err := c.GetTable(tn.Name.String())
	if err != nil {
		return nil, err
	}

	var plan Operator = NewSeqScan(file, tn.Name.String())
	if stmt.Where != nil {
		conjuncts, err := splitConjuncts(stmt.Where.Expr, nil)
		if err != nil {
			return nil, err
		}
		plan, err = applyFilters(plan, conjuncts)
		if err != nil {
			return nil, err
		}
	}
	return NewDeleteOp(file, plan), nil
}
