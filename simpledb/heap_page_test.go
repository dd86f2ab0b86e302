package simpledb

import (
	"bytes"
	"testing"

	"github.com/d4l3k/messagediff"
)

func TestHeapPageSlotCount(t *testing.T) {
	td, _, _, hf, _, _ := makeTestVars(t)
	pg, err := newHeapPage(&td, 0, hf)
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	tupleSize := td.bytesPerTuple()
	want := PageSize * 8 / (tupleSize*8 + 1)
	if got := pg.getNumSlots(); got != want {
		t.Errorf("numSlots = %d, want %d", got, want)
	}
	if pg.getNumUsedSlots()+pg.getNumEmptySlots() != pg.getNumSlots() {
		t.Error("used + empty slots should equal total slots")
	}
}

func TestHeapPageInsert(t *testing.T) {
	td, t1, t2, hf, _, _ := makeTestVars(t)
	pg, _ := newHeapPage(&td, 0, hf)

	rid, err := pg.insertTuple(&t1)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if rid.(heapRid).SlotNo != 0 {
		t.Errorf("first insert landed in slot %d, want 0", rid.(heapRid).SlotNo)
	}
	if _, err := pg.insertTuple(&t2); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if pg.getNumUsedSlots() != 2 {
		t.Errorf("used slots = %d, want 2", pg.getNumUsedSlots())
	}
	if !pg.isSlotUsed(0) || !pg.isSlotUsed(1) {
		t.Error("slots 0 and 1 should be marked used")
	}
	if pg.getNumUsedSlots()+pg.getNumEmptySlots() != pg.getNumSlots() {
		t.Error("used + empty slots should equal total slots")
	}
}

func TestHeapPageInsertFull(t *testing.T) {
	td, t1, _, hf, _, _ := makeTestVars(t)
	pg, _ := newHeapPage(&td, 0, hf)
	for i := 0; i < pg.getNumSlots(); i++ {
		tup := Tuple{td, t1.Fields, nil}
		if _, err := pg.insertTuple(&tup); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}
	tup := Tuple{td, t1.Fields, nil}
	_, err := pg.insertTuple(&tup)
	if errCode(err) != PageFullError {
		t.Errorf("insert into full page returned %v, want PageFullError", err)
	}
}

func TestHeapPageInsertSchemaMismatch(t *testing.T) {
	td, _, _, hf, _, _ := makeTestVars(t)
	pg, _ := newHeapPage(&td, 0, hf)
	other := TupleDesc{Fields: []FieldType{{Fname: "x", Ftype: IntType}}}
	tup := Tuple{other, []DBValue{IntField{1}}, nil}
	_, err := pg.insertTuple(&tup)
	if errCode(err) != TypeMismatchError {
		t.Errorf("mismatched insert returned %v, want TypeMismatchError", err)
	}
}

// Inserting then deleting a tuple must restore the header bitmap exactly.
func TestHeapPageDeleteRestoresHeader(t *testing.T) {
	td, t1, _, hf, _, _ := makeTestVars(t)
	pg, _ := newHeapPage(&td, 0, hf)
	before := make([]byte, len(pg.header))
	copy(before, pg.header)

	tup := Tuple{td, t1.Fields, nil}
	if _, err := pg.insertTuple(&tup); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := pg.deleteTuple(&tup); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !bytes.Equal(before, pg.header) {
		t.Errorf("header bitmap not restored: %v vs %v", before, pg.header)
	}
	if pg.getNumUsedSlots() != 0 {
		t.Errorf("used slots = %d after delete, want 0", pg.getNumUsedSlots())
	}
}

func TestHeapPageDeleteNotFound(t *testing.T) {
	td, t1, t2, hf, _, _ := makeTestVars(t)
	pg, _ := newHeapPage(&td, 0, hf)
	tup := Tuple{td, t1.Fields, nil}
	pg.insertTuple(&tup)
	if err := pg.deleteTuple(&t2); errCode(err) != TupleNotFoundError {
		t.Errorf("deleting an absent tuple returned %v, want TupleNotFoundError", err)
	}
}

// When several slots hold equal tuples, delete removes the lowest-numbered
// one.
func TestHeapPageDeleteLowestSlot(t *testing.T) {
	td, t1, _, hf, _, _ := makeTestVars(t)
	pg, _ := newHeapPage(&td, 0, hf)
	a := Tuple{td, t1.Fields, nil}
	b := Tuple{td, t1.Fields, nil}
	pg.insertTuple(&a)
	pg.insertTuple(&b)

	if err := pg.deleteTuple(&t1); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if pg.isSlotUsed(0) {
		t.Error("slot 0 should have been freed")
	}
	if !pg.isSlotUsed(1) {
		t.Error("slot 1 should still be used")
	}
}

// S1: serialize/deserialize yields an identical page, and a serialized image
// round trips byte-exactly.
func TestHeapPageSerializeRoundTrip(t *testing.T) {
	td := TupleDesc{Fields: []FieldType{{Fname: "a", Ftype: IntType}, {Fname: "b", Ftype: IntType}}}
	bp, _ := NewBufferPool(3)
	hf := makeTestFile(t, bp, &td)

	pg, err := newHeapPage(&td, 0, hf)
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	tup := Tuple{td, []DBValue{IntField{1}, IntField{2}}, nil}
	if _, err := pg.insertTuple(&tup); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if pg.getNumUsedSlots() != 1 {
		t.Fatalf("used slots = %d, want 1", pg.getNumUsedSlots())
	}

	buf, err := pg.toBuffer()
	if err != nil {
		t.Fatalf("toBuffer failed: %v", err)
	}
	image := make([]byte, PageSize)
	copy(image, buf.Bytes())
	if len(buf.Bytes()) != PageSize {
		t.Fatalf("serialized page is %d bytes, want %d", len(buf.Bytes()), PageSize)
	}

	pg2, _ := newHeapPage(&td, 0, hf)
	if err := pg2.initFromBuffer(bytes.NewBuffer(image)); err != nil {
		t.Fatalf("initFromBuffer failed: %v", err)
	}
	if pg2.getNumUsedSlots() != 1 {
		t.Errorf("deserialized page has %d used slots, want 1", pg2.getNumUsedSlots())
	}
	got, _ := pg2.tupleIter()()
	if !got.sameFields(&tup) {
		diff, _ := messagediff.PrettyDiff(tup.Fields, got.Fields)
		t.Errorf("deserialized tuple mismatch:\n%s", diff)
	}

	buf2, err := pg2.toBuffer()
	if err != nil {
		t.Fatalf("re-serialization failed: %v", err)
	}
	if !bytes.Equal(image, buf2.Bytes()) {
		t.Error("serialize(deserialize(b)) != b")
	}
}

func TestHeapPageIteratorOrder(t *testing.T) {
	td := TupleDesc{Fields: []FieldType{{Fname: "a", Ftype: IntType}}}
	bp, _ := NewBufferPool(3)
	hf := makeTestFile(t, bp, &td)
	pg, _ := newHeapPage(&td, 0, hf)

	for i := int32(0); i < 5; i++ {
		tup := Tuple{td, []DBValue{IntField{i}}, nil}
		pg.insertTuple(&tup)
	}
	// free a middle slot; iteration skips it but preserves slot order
	mid := Tuple{td, []DBValue{IntField{2}}, nil}
	pg.deleteTuple(&mid)

	iter := pg.tupleIter()
	var got []int32
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iterator failed: %v", err)
		}
		if tup == nil {
			break
		}
		got = append(got, tup.Fields[0].(IntField).Value)
	}
	want := []int32{0, 1, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("iterated %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("iterated %v, want %v", got, want)
		}
	}
}

func TestHeapPageBeforeImage(t *testing.T) {
	td, t1, _, hf, _, _ := makeTestVars(t)
	pg, _ := newHeapPage(&td, 0, hf)
	tup := Tuple{td, t1.Fields, nil}
	pg.insertTuple(&tup)
	if err := pg.setBeforeImage(); err != nil {
		t.Fatalf("setBeforeImage failed: %v", err)
	}

	tup2 := Tuple{td, t1.Fields, nil}
	pg.insertTuple(&tup2)

	before, err := pg.getBeforeImage()
	if err != nil {
		t.Fatalf("getBeforeImage failed: %v", err)
	}
	if before.(*heapPage).getNumUsedSlots() != 1 {
		t.Errorf("before image has %d used slots, want 1", before.(*heapPage).getNumUsedSlots())
	}
	if pg.getNumUsedSlots() != 2 {
		t.Errorf("page has %d used slots, want 2", pg.getNumUsedSlots())
	}
}
