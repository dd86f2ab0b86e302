package simpledb

import "fmt"

// AggState is the running state of one aggregate computation.
type AggState interface {
	// Init sets up the state with an output alias and the expression that
	// extracts the aggregated value from each input tuple. Fails with
	// IllegalOperationError when the aggregate does not support the
	// expression's type; only COUNT applies to string columns.
	Init(alias string, expr Expr) error

	// Copy makes a fresh copy of the state, used to seed a new group.
	Copy() AggState

	// AddTuple folds one tuple into the state.
	AddTuple(*Tuple)

	// Finalize returns the aggregate result as a one-field tuple.
	Finalize() *Tuple

	// GetTupleDesc describes the tuple Finalize returns.
	GetTupleDesc() *TupleDesc
}

// intAggDesc is the shared output shape of the integer aggregates.
func intAggDesc(alias string) *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{alias, "", IntType}}}
}

// requireIntExpr rejects aggregates over non-integer columns.
func requireIntExpr(name string, expr Expr) error {
	if expr.GetExprType().Ftype != IntType {
		return SimpleDBError{IllegalOperationError, fmt.Sprintf("%s aggregate requires an int column", name)}
	}
	return nil
}

// CountAggState implements COUNT. It applies to every column type.
type CountAggState struct {
	alias string
	expr  Expr
	count int32
}

func (a *CountAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.count = 0
	return nil
}

func (a *CountAggState) Copy() AggState {
	return &CountAggState{a.alias, a.expr, a.count}
}

func (a *CountAggState) AddTuple(t *Tuple) {
	a.count++
}

func (a *CountAggState) GetTupleDesc() *TupleDesc {
	return intAggDesc(a.alias)
}

func (a *CountAggState) Finalize() *Tuple {
	return &Tuple{*a.GetTupleDesc(), []DBValue{IntField{a.count}}, nil}
}

// SumAggState implements SUM over an integer column.
type SumAggState struct {
	alias string
	expr  Expr
	sum   int32
}

func (a *SumAggState) Init(alias string, expr Expr) error {
	if err := requireIntExpr("sum", expr); err != nil {
		return err
	}
	a.alias = alias
	a.expr = expr
	a.sum = 0
	return nil
}

func (a *SumAggState) Copy() AggState {
	return &SumAggState{a.alias, a.expr, a.sum}
}

func (a *SumAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if f, ok := v.(IntField); ok {
		a.sum += f.Value
	}
}

func (a *SumAggState) GetTupleDesc() *TupleDesc {
	return intAggDesc(a.alias)
}

func (a *SumAggState) Finalize() *Tuple {
	return &Tuple{*a.GetTupleDesc(), []DBValue{IntField{a.sum}}, nil}
}

// AvgAggState implements AVG over an integer column, using integer division
// of the sum by the count.
type AvgAggState struct {
	alias string
	expr  Expr
	sum   int32
	count int32
}

func (a *AvgAggState) Init(alias string, expr Expr) error {
	if err := requireIntExpr("avg", expr); err != nil {
		return err
	}
	a.alias = alias
	a.expr = expr
	a.sum = 0
	a.count = 0
	return nil
}

func (a *AvgAggState) Copy() AggState {
	return &AvgAggState{a.alias, a.expr, a.sum, a.count}
}

func (a *AvgAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if f, ok := v.(IntField); ok {
		a.sum += f.Value
		a.count++
	}
}

func (a *AvgAggState) GetTupleDesc() *TupleDesc {
	return intAggDesc(a.alias)
}

func (a *AvgAggState) Finalize() *Tuple {
	avg := int32(0)
	if a.count > 0 {
		avg = a.sum / a.count
	}
	return &Tuple{*a.GetTupleDesc(), []DBValue{IntField{avg}}, nil}
}

// MaxAggState implements MAX over an integer column.
type MaxAggState struct {
	alias string
	expr  Expr
	max   DBValue
}

func (a *MaxAggState) Init(alias string, expr Expr) error {
	if err := requireIntExpr("max", expr); err != nil {
		return err
	}
	a.alias = alias
	a.expr = expr
	a.max = nil
	return nil
}

func (a *MaxAggState) Copy() AggState {
	return &MaxAggState{a.alias, a.expr, a.max}
}

func (a *MaxAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if a.max == nil || v.EvalPred(a.max, OpGt) {
		a.max = v
	}
}

func (a *MaxAggState) GetTupleDesc() *TupleDesc {
	return intAggDesc(a.alias)
}

func (a *MaxAggState) Finalize() *Tuple {
	v := a.max
	if v == nil {
		v = IntField{0}
	}
	return &Tuple{*a.GetTupleDesc(), []DBValue{v}, nil}
}

// MinAggState implements MIN over an integer column.
type MinAggState struct {
	alias string
	expr  Expr
	min   DBValue
}

func (a *MinAggState) Init(alias string, expr Expr) error {
	if err := requireIntExpr("min", expr); err != nil {
		return err
	}
	a.alias = alias
	a.expr = expr
	a.min = nil
	return nil
}

func (a *MinAggState) Copy() AggState {
	return &MinAggState{a.alias, a.expr, a.min}
}

func (a *MinAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if a.min == nil || v.EvalPred(a.min, OpLt) {
		a.min = v
	}
}

func (a *MinAggState) GetTupleDesc() *TupleDesc {
	return intAggDesc(a.alias)
}

func (a *MinAggState) Finalize() *Tuple {
	v := a.min
	if v == nil {
		v = IntField{0}
	}
	return &Tuple{*a.GetTupleDesc(), []DBValue{v}, nil}
}
