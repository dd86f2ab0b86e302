package simpledb

// Expressions are evaluated against tuples to produce field values. The two
// implementations cover what predicates, aggregates, and projections need: a
// named field reference and a constant.

type Expr interface {
	// EvalExpr evaluates the expression on t.
	EvalExpr(t *Tuple) (DBValue, error)
	// GetExprType describes the value the expression produces. For a field
	// reference this is the referenced column; for a constant it is an
	// unnamed column of the constant's type.
	GetExprType() FieldType
}

// FieldExpr extracts a named field from a tuple.
type FieldExpr struct {
	selectField FieldType
}

func NewFieldExpr(field FieldType) *FieldExpr {
	return &FieldExpr{field}
}

func (f *FieldExpr) EvalExpr(t *Tuple) (DBValue, error) {
	i, err := findFieldInTd(f.selectField, &t.Desc)
	if err != nil {
		return nil, err
	}
	return t.Fields[i], nil
}

func (f *FieldExpr) GetExprType() FieldType {
	return f.selectField
}

// ConstExpr wraps a literal value.
type ConstExpr struct {
	val       DBValue
	constType DBType
}

func NewIntConstExpr(v int32) *ConstExpr {
	return &ConstExpr{IntField{v}, IntType}
}

func NewStringConstExpr(v string) *ConstExpr {
	return &ConstExpr{StringField{v}, StringType}
}

func (c *ConstExpr) EvalExpr(t *Tuple) (DBValue, error) {
	return c.val, nil
}

func (c *ConstExpr) GetExprType() FieldType {
	return FieldType{"const", "", c.constType}
}
