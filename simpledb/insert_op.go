package simpledb

// InsertOp is a one-shot operator: its first next drains the child, inserting
// every tuple into the target file, and emits a single tuple holding the
// insert count. Subsequent calls report end of stream.
type InsertOp struct {
	insertFile DBFile
	child      Operator
}

func NewInsertOp(insertFile DBFile, child Operator) *InsertOp {
	return &InsertOp{insertFile, child}
}

// Descriptor is a one column descriptor with an integer field named "count".
func (i *InsertOp) Descriptor() *TupleDesc {
	return &TupleDesc{[]FieldType{{"count", "", IntType}}}
}

func (i *InsertOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := i.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	done := false
	return func() (*Tuple, error) {
		if done {
			return nil, nil
		}
		done = true
		var count int32
		for {
			t, err := childIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				break
			}
			if err := i.insertFile.insertTuple(t, tid); err != nil {
				return nil, err
			}
			count++
		}
		return &Tuple{*i.Descriptor(), []DBValue{IntField{count}}, nil}, nil
	}, nil
}
