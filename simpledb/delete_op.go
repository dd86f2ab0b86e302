package simpledb

// DeleteOp is a one-shot operator: its first next drains the child, deleting
// every tuple from the target file, and emits a single tuple holding the
// delete count. Subsequent calls report end of stream.
type DeleteOp struct {
	deleteFile DBFile
	child      Operator
}

func NewDeleteOp(deleteFile DBFile, child Operator) *DeleteOp {
	return &DeleteOp{deleteFile, child}
}

// Descriptor is a one column descriptor with an integer field named "count".
func (d *DeleteOp) Descriptor() *TupleDesc {
	return &TupleDesc{[]FieldType{{"count", "", IntType}}}
}

func (d *DeleteOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := d.child.Iterator(tid)
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
			if err := d.deleteFile.deleteTuple(t, tid); err != nil {
				return nil, err
			}
			count++
		}
		return &Tuple{*d.Descriptor(), []DBValue{IntField{count}}, nil}, nil
	}, nil
}
