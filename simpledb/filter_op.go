package simpledb

// Filter emits the child tuples for which field op constant holds.
type Filter struct {
	op    BoolOp
	left  Expr
	right Expr
	child Operator
}

// NewFilter constructs a filter operator evaluating field op constExpr on
// every child tuple.
func NewFilter(constExpr Expr, op BoolOp, field Expr, child Operator) (*Filter, error) {
	return &Filter{op, field, constExpr, child}, nil
}

// Descriptor returns the child's descriptor; filtering changes which tuples
// are emitted, not their shape.
func (f *Filter) Descriptor() *TupleDesc {
	return f.child.Descriptor()
}

// Iterator returns a function that pulls from the child and emits the tuples
// satisfying the predicate.
func (f *Filter) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := f.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	return func() (*Tuple, error) {
		for {
			t, err := childIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				return nil, nil
			}
			left, err := f.left.EvalExpr(t)
			if err != nil {
				return nil, err
			}
			right, err := f.right.EvalExpr(t)
			if err != nil {
				return nil, err
			}
			if left.EvalPred(right, f.op) {
				return t, nil
			}
		}
	}, nil
}
