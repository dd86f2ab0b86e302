package simpledb

// Aggregator computes one or more aggregates over its child, optionally
// grouped by one expression. Aggregation is blocking: the iterator drains the
// child into a per-group state map before emitting.
//
// Group keys are the stringified group field values and are reparsed into
// the group column's type when results are emitted. Two distinct fields that
// share a string representation therefore collapse into one group; with the
// supported field types this does not occur, but the hashing scheme is for
// convenience, not on-wire fidelity.

import (
	"strconv"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Aggregator struct {
	groupByField Expr // nil when the aggregate is not grouped
	newAggState  []AggState
	child        Operator
}

// NewAggregator constructs an ungrouped aggregator producing one result
// tuple. emptyAggState supplies one initialized state per output aggregate.
func NewAggregator(emptyAggState []AggState, child Operator) *Aggregator {
	return &Aggregator{nil, emptyAggState, child}
}

// NewGroupedAggregator constructs an aggregator producing one result tuple
// per distinct value of groupByField.
func NewGroupedAggregator(emptyAggState []AggState, groupByField Expr, child Operator) *Aggregator {
	return &Aggregator{groupByField, emptyAggState, child}
}

// Descriptor returns [aggVal ...] for an ungrouped aggregate and
// [groupVal, aggVal ...] for a grouped one.
func (a *Aggregator) Descriptor() *TupleDesc {
	td := &TupleDesc{}
	if a.groupByField != nil {
		gt := a.groupByField.GetExprType()
		td.Fields = append(td.Fields, FieldType{gt.Fname, gt.TableQualifier, gt.Ftype})
	}
	for _, as := range a.newAggState {
		td = td.merge(as.GetTupleDesc())
	}
	return td
}

// reparseGroupKey turns a stringified group key back into a field of the
// group column's type.
func reparseGroupKey(key string, groupType DBType) (DBValue, error) {
	if groupType == IntType {
		v, err := strconv.ParseInt(key, 10, 32)
		if err != nil {
			return nil, SimpleDBError{TypeMismatchError, "group key " + key + " is not an int"}
		}
		return IntField{int32(v)}, nil
	}
	return StringField{key}, nil
}

func (a *Aggregator) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := a.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	// drain the child into per-group aggregate states
	groups := make(map[string][]AggState)
	seed := func() []AggState {
		states := make([]AggState, len(a.newAggState))
		for i, as := range a.newAggState {
			states[i] = as.Copy()
		}
		return states
	}
	if a.groupByField == nil {
		groups[""] = seed()
	}
	for {
		t, err := childIter()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		key := ""
		if a.groupByField != nil {
			gv, err := a.groupByField.EvalExpr(t)
			if err != nil {
				return nil, err
			}
			key = fieldString(gv)
		}
		states, ok := groups[key]
		if !ok {
			states = seed()
			groups[key] = states
		}
		for _, as := range states {
			as.AddTuple(t)
		}
	}

	keys := maps.Keys(groups)
	slices.Sort(keys)
	desc := a.Descriptor()

	i := 0
	return func() (*Tuple, error) {
		if i >= len(keys) {
			return nil, nil
		}
		key := keys[i]
		i++

		var out *Tuple
		if a.groupByField != nil {
			gv, err := reparseGroupKey(key, a.groupByField.GetExprType().Ftype)
			if err != nil {
				return nil, err
			}
			out = &Tuple{TupleDesc{desc.Fields[0:1]}, []DBValue{gv}, nil}
		}
		for _, as := range groups[key] {
			out = joinTuples(out, as.Finalize())
		}
		out.Desc = *desc
		return out, nil
	}, nil
}
