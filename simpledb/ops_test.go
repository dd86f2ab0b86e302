package simpledb

import (
	"testing"
)

func namesTestData() *memOp {
	td := TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
	return &memOp{td, []Tuple{
		{td, []DBValue{StringField{"sam"}, IntField{25}}, nil},
		{td, []DBValue{StringField{"ann"}, IntField{40}}, nil},
		{td, []DBValue{StringField{"bob"}, IntField{25}}, nil},
		{td, []DBValue{StringField{"sam"}, IntField{25}}, nil},
	}}
}

func drainOp(t *testing.T, op Operator) []*Tuple {
	t.Helper()
	iter, err := op.Iterator(NewTID())
	if err != nil {
		t.Fatalf("failed to open operator: %v", err)
	}
	var out []*Tuple
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iteration failed: %v", err)
		}
		if tup == nil {
			return out
		}
		out = append(out, tup)
	}
}

func TestProject(t *testing.T) {
	child := namesTestData()
	nameField := NewFieldExpr(FieldType{Fname: "name", Ftype: StringType})
	p, err := NewProjectOp([]Expr{nameField}, []string{"n"}, false, child)
	if err != nil {
		t.Fatalf("failed to build projection: %v", err)
	}
	if d := p.Descriptor(); len(d.Fields) != 1 || d.Fields[0].Fname != "n" {
		t.Errorf("projection descriptor = %v", p.Descriptor().Fields)
	}
	out := drainOp(t, p)
	if len(out) != 4 {
		t.Fatalf("projection yielded %d tuples, want 4", len(out))
	}
	if len(out[0].Fields) != 1 {
		t.Errorf("projected tuple has %d fields, want 1", len(out[0].Fields))
	}
}

func TestProjectDistinct(t *testing.T) {
	child := namesTestData()
	nameField := NewFieldExpr(FieldType{Fname: "name", Ftype: StringType})
	p, _ := NewProjectOp([]Expr{nameField}, []string{"name"}, true, child)
	out := drainOp(t, p)
	if len(out) != 3 {
		t.Errorf("distinct projection yielded %d tuples, want 3", len(out))
	}
}

func TestOrderByMultiKey(t *testing.T) {
	child := namesTestData()
	ageField := NewFieldExpr(FieldType{Fname: "age", Ftype: IntType})
	nameField := NewFieldExpr(FieldType{Fname: "name", Ftype: StringType})

	// age ascending, then name descending
	o, err := NewOrderBy([]Expr{ageField, nameField}, child, []bool{true, false})
	if err != nil {
		t.Fatalf("failed to build order by: %v", err)
	}
	out := drainOp(t, o)
	if len(out) != 4 {
		t.Fatalf("order by yielded %d tuples, want 4", len(out))
	}
	wantNames := []string{"sam", "sam", "bob", "ann"}
	for i, w := range wantNames {
		if got := out[i].Fields[0].(StringField).Value; got != w {
			t.Errorf("position %d = %s, want %s", i, got, w)
		}
	}
}

func TestOrderByMismatchedArgs(t *testing.T) {
	child := namesTestData()
	ageField := NewFieldExpr(FieldType{Fname: "age", Ftype: IntType})
	if _, err := NewOrderBy([]Expr{ageField}, child, []bool{true, false}); err == nil {
		t.Error("mismatched field/ascending lengths should fail")
	}
}

func TestLimit(t *testing.T) {
	child := namesTestData()
	l := NewLimitOp(NewIntConstExpr(2), child)
	if out := drainOp(t, l); len(out) != 2 {
		t.Errorf("limit 2 yielded %d tuples", len(out))
	}
	l = NewLimitOp(NewIntConstExpr(10), child)
	if out := drainOp(t, l); len(out) != 4 {
		t.Errorf("limit 10 yielded %d tuples, want all 4", len(out))
	}
	l = NewLimitOp(NewIntConstExpr(0), child)
	if out := drainOp(t, l); len(out) != 0 {
		t.Errorf("limit 0 yielded %d tuples", len(out))
	}
}

func TestEqualityJoin(t *testing.T) {
	leftTd := TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "name", Ftype: StringType},
	}}
	rightTd := TupleDesc{Fields: []FieldType{
		{Fname: "owner", Ftype: IntType},
		{Fname: "pet", Ftype: StringType},
	}}
	left := &memOp{leftTd, []Tuple{
		{leftTd, []DBValue{IntField{1}, StringField{"sam"}}, nil},
		{leftTd, []DBValue{IntField{2}, StringField{"ann"}}, nil},
		{leftTd, []DBValue{IntField{3}, StringField{"bob"}}, nil},
	}}
	right := &memOp{rightTd, []Tuple{
		{rightTd, []DBValue{IntField{1}, StringField{"rex"}}, nil},
		{rightTd, []DBValue{IntField{1}, StringField{"tom"}}, nil},
		{rightTd, []DBValue{IntField{3}, StringField{"ace"}}, nil},
		{rightTd, []DBValue{IntField{9}, StringField{"zed"}}, nil},
	}}

	j, err := NewJoin(left,
		NewFieldExpr(FieldType{Fname: "id", Ftype: IntType}),
		right,
		NewFieldExpr(FieldType{Fname: "owner", Ftype: IntType}), 100)
	if err != nil {
		t.Fatalf("failed to build join: %v", err)
	}
	if d := j.Descriptor(); len(d.Fields) != 4 {
		t.Errorf("join descriptor has %d fields, want 4", len(d.Fields))
	}
	out := drainOp(t, j)
	if len(out) != 3 {
		t.Fatalf("join yielded %d tuples, want 3", len(out))
	}
	for _, tup := range out {
		if tup.Fields[0] != tup.Fields[2] {
			t.Errorf("joined tuple keys differ: %v", tup.Fields)
		}
	}
}

// With a block size smaller than the left input, the join rescans the right
// side per block and still produces every match.
func TestEqualityJoinSmallBlocks(t *testing.T) {
	td := TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	var leftTuples, rightTuples []Tuple
	for i := int32(0); i < 10; i++ {
		leftTuples = append(leftTuples, Tuple{td, []DBValue{IntField{i}}, nil})
		rightTuples = append(rightTuples, Tuple{td, []DBValue{IntField{i}}, nil})
	}
	left := &memOp{td, leftTuples}
	right := &memOp{td, rightTuples}
	v := NewFieldExpr(FieldType{Fname: "v", Ftype: IntType})

	j, _ := NewJoin(left, v, right, v, 3)
	if out := drainOp(t, j); len(out) != 10 {
		t.Errorf("join with block size 3 yielded %d tuples, want 10", len(out))
	}
}

func TestSeqScanAlias(t *testing.T) {
	bp, _, hf := makeIdNameTable(t, 1, 3)
	tid := NewTID()
	bp.BeginTransaction(tid)
	defer bp.CommitTransaction(tid)

	scan := NewSeqScan(hf, "x")
	for _, f := range scan.Descriptor().Fields {
		if f.TableQualifier != "x" {
			t.Errorf("scan column %s has qualifier %q, want x", f.Fname, f.TableQualifier)
		}
	}
	iter, err := scan.Iterator(tid)
	if err != nil {
		t.Fatalf("failed to open scan: %v", err)
	}
	tup, err := iter()
	if err != nil || tup == nil {
		t.Fatalf("scan produced no tuples: %v", err)
	}
	if tup.Desc.Fields[0].TableQualifier != "x" {
		t.Errorf("scanned tuple qualifier = %q, want x", tup.Desc.Fields[0].TableQualifier)
	}
}
