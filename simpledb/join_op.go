package simpledb

// EqualityJoin joins two children on equality of one expression per side,
// with a block hash join: up to maxBufferSize left tuples are hashed into
// memory, the right side is streamed against the block, and the right side
// is rescanned for each subsequent block until the left side is exhausted.
type EqualityJoin struct {
	leftField, rightField Expr
	left, right           Operator

	// maxBufferSize bounds the number of left tuples buffered per block.
	maxBufferSize int
}

func NewJoin(left Operator, leftField Expr, right Operator, rightField Expr, maxBufferSize int) (*EqualityJoin, error) {
	if leftField == nil || rightField == nil {
		return nil, SimpleDBError{IllegalOperationError, "join fields must be non-nil"}
	}
	if maxBufferSize < 1 {
		maxBufferSize = 1
	}
	return &EqualityJoin{leftField, rightField, left, right, maxBufferSize}, nil
}

// Descriptor is the union of the children's fields, left then right.
func (j *EqualityJoin) Descriptor() *TupleDesc {
	return j.left.Descriptor().merge(j.right.Descriptor())
}

func (j *EqualityJoin) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	leftIter, err := j.left.Iterator(tid)
	if err != nil {
		return nil, err
	}

	var (
		block       map[any][]*Tuple
		leftDone    bool
		rightIter   func() (*Tuple, error)
		pending     []*Tuple
		needNewPass = true
	)

	fillBlock := func() error {
		block = make(map[any][]*Tuple, j.maxBufferSize)
		for n := 0; n < j.maxBufferSize; n++ {
			t, err := leftIter()
			if err != nil {
				return err
			}
			if t == nil {
				leftDone = true
				break
			}
			v, err := j.leftField.EvalExpr(t)
			if err != nil {
				return err
			}
			block[v] = append(block[v], t)
		}
		return nil
	}

	return func() (*Tuple, error) {
		for {
			if len(pending) > 0 {
				t := pending[0]
				pending = pending[1:]
				return t, nil
			}
			if needNewPass {
				if leftDone {
					return nil, nil
				}
				if err := fillBlock(); err != nil {
					return nil, err
				}
				if len(block) == 0 {
					return nil, nil
				}
				var err error
				rightIter, err = j.right.Iterator(tid)
				if err != nil {
					return nil, err
				}
				needNewPass = false
			}

			rt, err := rightIter()
			if err != nil {
				return nil, err
			}
			if rt == nil {
				needNewPass = true
				continue
			}
			rv, err := j.rightField.EvalExpr(rt)
			if err != nil {
				return nil, err
			}
			for _, lt := range block[rv] {
				pending = append(pending, joinTuples(lt, rt))
			}
		}
	}, nil
}
