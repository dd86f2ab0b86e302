package simpledb

// Project evaluates a list of expressions on each child tuple, renaming the
// results, and optionally suppresses duplicate output tuples.
type Project struct {
	selectFields []Expr
	outputNames  []string
	child        Operator
	distinct     bool
}

// NewProjectOp constructs a projection. outputNames gives the emitted name of
// each selected expression and must be the same length as selectFields.
func NewProjectOp(selectFields []Expr, outputNames []string, distinct bool, child Operator) (Operator, error) {
	if len(selectFields) != len(outputNames) {
		return nil, SimpleDBError{IllegalOperationError, "one output name required per selected field"}
	}
	return &Project{selectFields, outputNames, child, distinct}, nil
}

func (p *Project) Descriptor() *TupleDesc {
	td := &TupleDesc{Fields: make([]FieldType, 0, len(p.selectFields))}
	for i, field := range p.selectFields {
		ft := field.GetExprType()
		ft.Fname = p.outputNames[i]
		td.Fields = append(td.Fields, ft)
	}
	return td
}

func (p *Project) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := p.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	desc := *p.Descriptor()

	var seen map[any]struct{}
	if p.distinct {
		seen = make(map[any]struct{})
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
			out := &Tuple{Desc: desc, Fields: make([]DBValue, 0, len(p.selectFields))}
			for _, field := range p.selectFields {
				v, err := field.EvalExpr(t)
				if err != nil {
					return nil, err
				}
				out.Fields = append(out.Fields, v)
			}
			if p.distinct {
				key := out.tupleKey()
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
			}
			return out, nil
		}
	}, nil
}
