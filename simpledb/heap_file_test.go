package simpledb

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHeapFileInsertAndScan(t *testing.T) {
	_, t1, t2, hf, bp, tid := makeTestVars(t)
	insertTupleForTest(t, hf, &t1, tid)
	insertTupleForTest(t, hf, &t2, tid)
	if got := countTuples(t, hf, tid); got != 2 {
		t.Errorf("scanned %d tuples, want 2", got)
	}
	bp.CommitTransaction(tid)
}

func TestHeapFileDelete(t *testing.T) {
	_, t1, t2, hf, _, tid := makeTestVars(t)
	insertTupleForTest(t, hf, &t1, tid)
	insertTupleForTest(t, hf, &t2, tid)

	iter, _ := hf.Iterator(tid)
	tup, err := iter()
	if err != nil || tup == nil {
		t.Fatalf("failed to read back a tuple: %v", err)
	}
	if err := hf.deleteTuple(tup, tid); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got := countTuples(t, hf, tid); got != 1 {
		t.Errorf("scanned %d tuples after delete, want 1", got)
	}
}

func TestHeapFileDeleteWithoutRid(t *testing.T) {
	_, t1, _, hf, _, tid := makeTestVars(t)
	tup := Tuple{t1.Desc, t1.Fields, nil}
	if err := hf.deleteTuple(&tup, tid); errCode(err) != TupleNotFoundError {
		t.Errorf("delete without rid returned %v, want TupleNotFoundError", err)
	}
}

// S2: inserting one tuple more than a page holds grows the file to two
// pages, with a single used slot on the second.
func TestHeapFileInsertGrow(t *testing.T) {
	td, t1, _, hf, bp, tid := makeTestVars(t)
	pg, err := newHeapPage(&td, 0, hf)
	if err != nil {
		t.Fatalf("failed to size page: %v", err)
	}
	perPage := pg.getNumSlots()

	for i := 0; i < perPage+1; i++ {
		insertTupleForTest(t, hf, &t1, tid)
	}
	bp.CommitTransaction(tid)

	if hf.NumPages() != 2 {
		t.Fatalf("file has %d pages, want 2", hf.NumPages())
	}
	p1, err := hf.readPage(1)
	if err != nil {
		t.Fatalf("failed to read page 1: %v", err)
	}
	if used := p1.(*heapPage).getNumUsedSlots(); used != 1 {
		t.Errorf("page 1 has %d used slots, want 1", used)
	}
}

func TestHeapFileReadPagePastEnd(t *testing.T) {
	_, _, _, hf, _, _ := makeTestVars(t)
	// reading the page just past the end yields a fresh empty page
	pg, err := hf.readPage(hf.NumPages())
	if err != nil {
		t.Fatalf("reading the just-past-end page failed: %v", err)
	}
	if pg.(*heapPage).getNumUsedSlots() != 0 {
		t.Error("just-past-end page should be empty")
	}
	// anything further is an error
	if _, err := hf.readPage(hf.NumPages() + 1); errCode(err) != BadPageNoError {
		t.Errorf("reading beyond the file returned %v, want BadPageNoError", err)
	}
}

func TestHeapFileFlushPageGrowsByOne(t *testing.T) {
	td, _, _, hf, _, _ := makeTestVars(t)
	pg, _ := newHeapPage(&td, 0, hf)
	if err := hf.flushPage(pg); err != nil {
		t.Fatalf("flush of page 0 failed: %v", err)
	}
	if hf.NumPages() != 1 {
		t.Errorf("file has %d pages after flushing page 0, want 1", hf.NumPages())
	}

	far, _ := newHeapPage(&td, 5, hf)
	if err := hf.flushPage(far); errCode(err) != BadPageNoError {
		t.Errorf("flushing page 5 of a 1 page file returned %v, want BadPageNoError", err)
	}
}

func TestHeapFileStableId(t *testing.T) {
	td := TupleDesc{Fields: []FieldType{{Fname: "a", Ftype: IntType}}}
	bp, _ := NewBufferPool(3)
	path := filepath.Join(t.TempDir(), "stable.dat")
	hf1, err := NewHeapFile(path, &td, bp)
	if err != nil {
		t.Fatalf("failed to create heap file: %v", err)
	}
	hf2, err := NewHeapFile(path, &td, bp)
	if err != nil {
		t.Fatalf("failed to reopen heap file: %v", err)
	}
	if hf1.id != hf2.id {
		t.Errorf("ids %d and %d differ for the same path", hf1.id, hf2.id)
	}
	if hf1.pageKey(0) != hf2.pageKey(0) {
		t.Error("page keys differ for the same page")
	}
	k1 := hf1.pageKey(0).(heapPageId)
	k2 := hf2.pageKey(0).(heapPageId)
	if k1.hashCode() != k2.hashCode() {
		t.Error("page id hashes differ for the same page")
	}
	if k1.hashCode() == hf1.pageKey(1).(heapPageId).hashCode() {
		t.Error("adjacent pages share a hash")
	}
}

func TestHeapFileLoadFromCSV(t *testing.T) {
	_, _, _, hf, bp, tid := makeTestVars(t)
	csvPath := filepath.Join(t.TempDir(), "rows.csv")
	content := "sam, 25\nmike, 88\nalice, 33\n"
	if err := os.WriteFile(csvPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write csv: %v", err)
	}
	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("failed to open csv: %v", err)
	}
	defer f.Close()
	if err := hf.LoadFromCSV(f, false, ",", false); err != nil {
		t.Fatalf("LoadFromCSV failed: %v", err)
	}
	if got := countTuples(t, hf, tid); got != 3 {
		t.Errorf("loaded %d tuples, want 3", got)
	}
	bp.CommitTransaction(tid)
}
