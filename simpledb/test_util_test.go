package simpledb

// Shared helpers for the package tests.

import (
	"os"
	"path/filepath"
	"testing"
)

// makeTestVars builds the canonical two-column test schema, two tuples, a
// heap file backed by a temp file, a small buffer pool, and a started
// transaction.
func makeTestVars(t *testing.T) (TupleDesc, Tuple, Tuple, *HeapFile, *BufferPool, TransactionID) {
	t.Helper()
	td := TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
	t1 := Tuple{Desc: td, Fields: []DBValue{StringField{"sam"}, IntField{25}}}
	t2 := Tuple{Desc: td, Fields: []DBValue{StringField{"george jones"}, IntField{999}}}

	bp, err := NewBufferPool(3)
	if err != nil {
		t.Fatalf("failed to create buffer pool: %v", err)
	}
	hf := makeTestFile(t, bp, &td)

	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	return td, t1, t2, hf, bp, tid
}

// makeTestFile opens a fresh heap file in a temp directory.
func makeTestFile(t *testing.T, bp *BufferPool, td *TupleDesc) *HeapFile {
	t.Helper()
	hf, err := NewHeapFile(filepath.Join(t.TempDir(), "test.dat"), td, bp)
	if err != nil {
		t.Fatalf("failed to create heap file: %v", err)
	}
	return hf
}

// insertTupleForTest inserts a copy of tup into hf, failing the test on
// error.
func insertTupleForTest(t *testing.T, hf *HeapFile, tup *Tuple, tid TransactionID) {
	t.Helper()
	cp := Tuple{tup.Desc, tup.Fields, nil}
	if err := hf.insertTuple(&cp, tid); err != nil {
		t.Fatalf("failed to insert tuple: %v", err)
	}
}

// countTuples drains op's iterator and returns the number of tuples seen.
func countTuples(t *testing.T, op Operator, tid TransactionID) int {
	t.Helper()
	iter, err := op.Iterator(tid)
	if err != nil {
		t.Fatalf("failed to open iterator: %v", err)
	}
	n := 0
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iterator failed: %v", err)
		}
		if tup == nil {
			return n
		}
		n++
	}
}

// makeTestDatabase creates a buffer pool, writes catalogText into a catalog
// file in a temp directory, loads it, and attaches a log file.
func makeTestDatabase(t *testing.T, poolSize int, catalogText string) (*BufferPool, *Catalog) {
	t.Helper()
	dir := t.TempDir()
	catalogFile := filepath.Join(dir, "catalog.txt")
	if err := os.WriteFile(catalogFile, []byte(catalogText), 0644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	bp, err := NewBufferPool(poolSize)
	if err != nil {
		t.Fatalf("failed to create buffer pool: %v", err)
	}
	c := NewCatalog(catalogFile, bp, dir)
	if err := c.LoadSchema(); err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	lf, err := NewLogFile(filepath.Join(dir, "test.log"), c)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	bp.SetLogFile(lf)
	return bp, c
}

// makeIdNameTable loads a table (id int, name string) with ids lo..hi into a
// fresh database and returns its pieces.
func makeIdNameTable(t *testing.T, lo, hi int32) (*BufferPool, *Catalog, DBFile) {
	t.Helper()
	bp, c := makeTestDatabase(t, 20, "t(id int pk, name string)\n")
	hf, err := c.GetTable("t")
	if err != nil {
		t.Fatalf("failed to look up table: %v", err)
	}
	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	for i := lo; i <= hi; i++ {
		tup := Tuple{*hf.Descriptor(), []DBValue{IntField{i}, StringField{"row"}}, nil}
		if err := hf.insertTuple(&tup, tid); err != nil {
			t.Fatalf("failed to insert row %d: %v", i, err)
		}
	}
	bp.CommitTransaction(tid)
	return bp, c, hf
}
