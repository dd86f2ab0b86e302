package simpledb

// Methods for working with tuples, including the types FieldType, TupleDesc,
// DBValue, and Tuple.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// FieldType describes one column of a tuple: its name, an optional table
// qualifier (set when the column was referenced through a table name or
// alias), and its type.
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
}

// TupleDesc is the "type" of a tuple: an ordered list of column descriptions.
type TupleDesc struct {
	Fields []FieldType
}

// Compare two tuple descs; true iff they have the same length and their
// field names and types match position-wise. Qualifiers are not compared.
func (d1 *TupleDesc) equals(d2 *TupleDesc) bool {
	if len(d1.Fields) != len(d2.Fields) {
		return false
	}
	for i := range d1.Fields {
		if d1.Fields[i].Fname != d2.Fields[i].Fname {
			return false
		}
		if d1.Fields[i].Ftype != d2.Fields[i].Ftype {
			return false
		}
	}
	return true
}

// Given a FieldType f and a TupleDesc desc, find the best matching field in
// desc for f. A match has the same Ftype and name, preferring a match with
// the same TableQualifier when f carries one. An unqualified reference that
// matches more than one column is ambiguous.
func findFieldInTd(field FieldType, desc *TupleDesc) (int, error) {
	best := -1
	for i, f := range desc.Fields {
		if f.Fname == field.Fname && (f.Ftype == field.Ftype || field.Ftype == UnknownType) {
			if field.TableQualifier == "" && best != -1 {
				return 0, SimpleDBError{AmbiguousNameError, fmt.Sprintf("select name %s is ambiguous", f.Fname)}
			}
			if f.TableQualifier == field.TableQualifier || best == -1 {
				best = i
			}
		}
	}
	if best != -1 {
		return best, nil
	}
	return -1, SimpleDBError{IncompatibleTypesError, fmt.Sprintf("field %s.%s not found", field.TableQualifier, field.Fname)}
}

// copy returns a deep copy of the descriptor.
func (td *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// setTableAlias sets the TableQualifier of every field to the supplied alias.
// Used by the parser when a table is scanned under an alias.
func (td *TupleDesc) setTableAlias(alias string) {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	for i := range fields {
		fields[i].TableQualifier = alias
	}
	td.Fields = fields
}

// merge returns a new descriptor with the fields of desc2 appended onto the
// fields of desc.
func (desc *TupleDesc) merge(desc2 *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(desc.Fields)+len(desc2.Fields))
	fields = append(fields, desc.Fields...)
	fields = append(fields, desc2.Fields...)
	return &TupleDesc{Fields: fields}
}

// bytesPerTuple is the fixed serialized width of a tuple with this
// descriptor: the sum of the widths of its fields.
func (td *TupleDesc) bytesPerTuple() int {
	sz := 0
	for _, f := range td.Fields {
		sz += f.Ftype.byteLen()
	}
	return sz
}

// ================== Tuple Methods ======================

// DBValue is the interface of tuple field values.
type DBValue interface {
	// EvalPred compares the receiver against v under op, with the receiver
	// on the left-hand side.
	EvalPred(v DBValue, op BoolOp) bool
}

// IntField is a 32 bit signed integer field value.
type IntField struct {
	Value int32
}

// StringField is a string field value of at most StringLength bytes.
type StringField struct {
	Value string
}

func (f IntField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(IntField)
	if !ok {
		return false
	}
	switch op {
	case OpGt:
		return f.Value > other.Value
	case OpGe:
		return f.Value >= other.Value
	case OpLt:
		return f.Value < other.Value
	case OpLe:
		return f.Value <= other.Value
	case OpEq, OpLike:
		return f.Value == other.Value
	case OpNeq:
		return f.Value != other.Value
	}
	return false
}

func (f StringField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(StringField)
	if !ok {
		return false
	}
	switch op {
	case OpGt:
		return f.Value > other.Value
	case OpGe:
		return f.Value >= other.Value
	case OpLt:
		return f.Value < other.Value
	case OpLe:
		return f.Value <= other.Value
	case OpEq:
		return f.Value == other.Value
	case OpNeq:
		return f.Value != other.Value
	case OpLike:
		return strings.Contains(f.Value, other.Value)
	}
	return false
}

// fieldString renders a field value the way group keys and the shell expect.
func fieldString(v DBValue) string {
	switch f := v.(type) {
	case IntField:
		return strconv.FormatInt(int64(f.Value), 10)
	case StringField:
		return f.Value
	}
	return fmt.Sprintf("%v", v)
}

// Tuple is a row: a descriptor, one value per field, and the record id of the
// slot the tuple was read from (nil for tuples that are not page residents).
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    recordID
}

// recordID locates a tuple on disk. The heap file implementation uses
// heapRid; other file formats may supply their own.
type recordID interface {
}

// writeTo serializes the tuple's fields in schema order into b. Integers are
// written as 4 byte big-endian signed values. Strings are written as a 4 byte
// big-endian length followed by StringLength bytes of content, zero padded;
// values longer than StringLength are truncated.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for _, field := range t.Fields {
		switch f := field.(type) {
		case IntField:
			if err := binary.Write(b, binary.BigEndian, f.Value); err != nil {
				return err
			}
		case StringField:
			s := f.Value
			if len(s) > StringLength {
				s = s[0:StringLength]
			}
			if err := binary.Write(b, binary.BigEndian, int32(len(s))); err != nil {
				return err
			}
			padded := make([]byte, StringLength)
			copy(padded, s)
			if _, err := b.Write(padded); err != nil {
				return err
			}
		default:
			return SimpleDBError{TypeMismatchError, fmt.Sprintf("unsupported field type %T", field)}
		}
	}
	return nil
}

// readTupleFrom deserializes one tuple with the given descriptor from b,
// inverting [Tuple.writeTo].
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	t := &Tuple{Desc: *desc, Fields: make([]DBValue, 0, len(desc.Fields))}
	for _, f := range desc.Fields {
		switch f.Ftype {
		case IntType:
			var v int32
			if err := binary.Read(b, binary.BigEndian, &v); err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, IntField{v})
		case StringType:
			var n int32
			if err := binary.Read(b, binary.BigEndian, &n); err != nil {
				return nil, err
			}
			if n < 0 || int(n) > StringLength {
				return nil, SimpleDBError{MalformedDataError, fmt.Sprintf("string length %d out of range", n)}
			}
			content := make([]byte, StringLength)
			if cnt, err := b.Read(content); err != nil || cnt != StringLength {
				return nil, SimpleDBError{MalformedDataError, "short string field"}
			}
			t.Fields = append(t.Fields, StringField{string(content[0:n])})
		default:
			return nil, SimpleDBError{TypeMismatchError, fmt.Sprintf("cannot deserialize field of type %v", f.Ftype)}
		}
	}
	return t, nil
}

// equals reports whether two tuples have equal descriptors and field values.
func (t1 *Tuple) equals(t2 *Tuple) bool {
	if t1 == nil || t2 == nil {
		return t1 == t2
	}
	if !t1.Desc.equals(&t2.Desc) {
		return false
	}
	return t1.sameFields(t2)
}

// sameFields reports whether two tuples hold the same field values,
// ignoring descriptors and record ids.
func (t1 *Tuple) sameFields(t2 *Tuple) bool {
	if len(t1.Fields) != len(t2.Fields) {
		return false
	}
	for i := range t1.Fields {
		if t1.Fields[i] != t2.Fields[i] {
			return false
		}
	}
	return true
}

// joinTuples produces a new tuple with the fields of t2 appended to t1.
func joinTuples(t1 *Tuple, t2 *Tuple) *Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	desc := t1.Desc.merge(&t2.Desc)
	fields := make([]DBValue, 0, len(t1.Fields)+len(t2.Fields))
	fields = append(fields, t1.Fields...)
	fields = append(fields, t2.Fields...)
	return &Tuple{Desc: *desc, Fields: fields}
}

type orderByState int

const (
	OrderedLessThan orderByState = iota
	OrderedEqual
	OrderedGreaterThan
)

// compareField applies expr to both t and t2 and compares the results.
func (t *Tuple) compareField(t2 *Tuple, expr Expr) (orderByState, error) {
	v1, err := expr.EvalExpr(t)
	if err != nil {
		return OrderedEqual, err
	}
	v2, err := expr.EvalExpr(t2)
	if err != nil {
		return OrderedEqual, err
	}
	return compareFields(v1, v2)
}

func compareFields(v1, v2 DBValue) (orderByState, error) {
	switch f1 := v1.(type) {
	case IntField:
		f2, ok := v2.(IntField)
		if !ok {
			break
		}
		switch {
		case f1.Value < f2.Value:
			return OrderedLessThan, nil
		case f1.Value > f2.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	case StringField:
		f2, ok := v2.(StringField)
		if !ok {
			break
		}
		switch {
		case f1.Value < f2.Value:
			return OrderedLessThan, nil
		case f1.Value > f2.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	}
	return OrderedEqual, SimpleDBError{TypeMismatchError, fmt.Sprintf("cannot compare %T and %T", v1, v2)}
}

// project returns a new tuple with just the named fields. Matching does not
// require a TableQualifier match but prefers one when the reference is
// qualified.
func (t *Tuple) project(fields []FieldType) (*Tuple, error) {
	out := &Tuple{}
	for _, field := range fields {
		match := -1
		for i, descField := range t.Desc.Fields {
			if field.Fname == descField.Fname && field.TableQualifier == descField.TableQualifier {
				match = i
				break
			}
		}
		if match == -1 {
			for i, descField := range t.Desc.Fields {
				if field.Fname == descField.Fname {
					match = i
					break
				}
			}
		}
		if match == -1 {
			return nil, SimpleDBError{TupleNotFoundError, fmt.Sprintf("field %s.%s not found", field.TableQualifier, field.Fname)}
		}
		out.Desc.Fields = append(out.Desc.Fields, t.Desc.Fields[match])
		out.Fields = append(out.Fields, t.Fields[match])
	}
	return out, nil
}

// tupleKey computes a comparable key for the tuple, used by distinct
// projection and hash joins.
func (t *Tuple) tupleKey() any {
	var buf bytes.Buffer
	t.writeTo(&buf)
	return buf.String()
}

var winWidth int = 120

func fmtCol(v string, ncols int) string {
	colWid := winWidth / ncols
	nextLen := len(v) + 3
	remLen := colWid - nextLen
	if remLen > 0 {
		spacesRight := remLen / 2
		spacesLeft := remLen - spacesRight
		return strings.Repeat(" ", spacesLeft) + v + strings.Repeat(" ", spacesRight) + " |"
	}
	return " " + v[0:colWid-4] + " |"
}

// HeaderString returns a string representing the header of a table of tuples
// with this descriptor. Aligned selects a tabular format.
func (d *TupleDesc) HeaderString(aligned bool) string {
	outstr := ""
	for i, f := range d.Fields {
		tableName := ""
		if f.TableQualifier != "" {
			tableName = f.TableQualifier + "."
		}
		if aligned {
			outstr = fmt.Sprintf("%s %s", outstr, fmtCol(tableName+f.Fname, len(d.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			outstr = fmt.Sprintf("%s%s%s", outstr, sep, tableName+f.Fname)
		}
	}
	return outstr
}

// PrettyPrintString returns a string representing the tuple. Aligned selects
// a tabular format.
func (t *Tuple) PrettyPrintString(aligned bool) string {
	outstr := ""
	for i, f := range t.Fields {
		str := fieldString(f)
		if aligned {
			outstr = fmt.Sprintf("%s %s", outstr, fmtCol(str, len(t.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			outstr = fmt.Sprintf("%s%s%s", outstr, sep, str)
		}
	}
	return outstr
}
