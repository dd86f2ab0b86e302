package simpledb

// LimitOp caps the number of tuples emitted from its child.
type LimitOp struct {
	child     Operator
	limitTups Expr
}

// NewLimitOp constructs a limit operator. lim is evaluated once, at iterator
// construction, and must produce an integer.
func NewLimitOp(lim Expr, child Operator) *LimitOp {
	return &LimitOp{child, lim}
}

func (l *LimitOp) Descriptor() *TupleDesc {
	return l.child.Descriptor()
}

func (l *LimitOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := l.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	limVal, err := l.limitTups.EvalExpr(&Tuple{})
	if err != nil {
		return nil, err
	}
	lim, ok := limVal.(IntField)
	if !ok {
		return nil, SimpleDBError{TypeMismatchError, "limit must be an integer"}
	}

	var count int32
	return func() (*Tuple, error) {
		if count >= lim.Value {
			return nil, nil
		}
		t, err := childIter()
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, nil
		}
		count++
		return t, nil
	}, nil
}
