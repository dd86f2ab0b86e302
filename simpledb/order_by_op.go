package simpledb

import (
	"sort"
)

// OrderBy sorts the child's tuples by a list of expressions. The sort is
// blocking: the iterator drains the child into memory, sorts once, and then
// streams the sorted list.
type OrderBy struct {
	orderBy   []Expr
	child     Operator
	ascending []bool
}

// NewOrderBy constructs an order-by operator. ascending[i] selects ascending
// (true) or descending (false) order for orderByFields[i].
func NewOrderBy(orderByFields []Expr, child Operator, ascending []bool) (*OrderBy, error) {
	if len(orderByFields) != len(ascending) {
		return nil, SimpleDBError{IllegalOperationError, "one ascending flag required per order-by field"}
	}
	return &OrderBy{orderByFields, child, ascending}, nil
}

// Descriptor returns the child's descriptor; ordering changes the sequence
// of tuples, not their shape.
func (o *OrderBy) Descriptor() *TupleDesc {
	return o.child.Descriptor()
}

func (o *OrderBy) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := o.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	var all []*Tuple
	for {
		t, err := childIter()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		all = append(all, t)
	}
	sort.Stable(sortTuples{all, o.orderBy, o.ascending})

	i := 0
	return func() (*Tuple, error) {
		if i >= len(all) {
			return nil, nil
		}
		t := all[i]
		i++
		return t, nil
	}, nil
}

type sortTuples struct {
	tuples    []*Tuple
	orderBy   []Expr
	ascending []bool
}

func (s sortTuples) Len() int {
	return len(s.tuples)
}

func (s sortTuples) Less(i, j int) bool {
	for k, expr := range s.orderBy {
		ord, err := s.tuples[i].compareField(s.tuples[j], expr)
		if err != nil || ord == OrderedEqual {
			continue
		}
		if s.ascending[k] {
			return ord == OrderedLessThan
		}
		return ord == OrderedGreaterThan
	}
	return false
}

func (s sortTuples) Swap(i, j int) {
	s.tuples[i], s.tuples[j] = s.tuples[j], s.tuples[i]
}
