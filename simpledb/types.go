package simpledb

// Shared definitions for the engine: configuration knobs, the error type,
// transaction ids, and the Page / DBFile / Operator interfaces that tie the
// storage layer to the operator tree.

import (
	"sync/atomic"
	"time"
)

// PageSize is the size in bytes of every heap page. It is a variable rather
// than a constant only so that tests can exercise page-boundary behavior with
// small pages; it must not change while any heap file is open.
var PageSize int = 4096

// StringLength is the fixed serialized width of a string field, excluding its
// 4 byte length prefix. On-disk files are only readable by processes that
// agree on this value.
var StringLength int = 128

// DefaultBufferPoolPages is the buffer pool capacity used when no explicit
// size is supplied.
const DefaultBufferPoolPages = 50

// Lock acquisition retry budget. A transaction whose page-lock request cannot
// be granted after LockRetries attempts of LockRetryInterval each gives up
// with TransactionAbortedError; the caller must then abort the transaction.
var (
	LockRetries       = 10
	LockRetryInterval = 10 * time.Millisecond
)

// DBType is the type of a tuple field, e.g., IntType or StringType.
type DBType int

const (
	IntType DBType = iota
	StringType
	UnknownType // used during parsing, before a column's type is resolved
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// byteLen returns the serialized width in bytes of a field of this type.
// Integers are 4 bytes; strings are a 4 byte length prefix followed by
// StringLength bytes of zero-padded content.
func (t DBType) byteLen() int {
	if t == StringType {
		return StringLength + 4
	}
	return 4
}

// BoolOp is the set of comparison operators supported by predicates. OpLike
// is substring containment on strings and coincides with equality on ints.
type BoolOp int

const (
	OpGt BoolOp = iota
	OpGe
	OpLt
	OpLe
	OpEq
	OpNeq
	OpLike
)

func (op BoolOp) String() string {
	switch op {
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpEq:
		return "="
	case OpNeq:
		return "<>"
	case OpLike:
		return "like"
	}
	return "??"
}

// TransactionID identifies a running transaction. Ids are process-local and
// never reused within a process.
type TransactionID int

// tidNone marks the absence of a transaction, e.g. a page with no dirtier or
// a lock record with no writer.
const tidNone TransactionID = 0

var nextTid int64

// NewTID returns a fresh transaction id.
func NewTID() TransactionID {
	return TransactionID(atomic.AddInt64(&nextTid, 1))
}

type SimpleDBErrorCode int

const (
	TupleNotFoundError SimpleDBErrorCode = iota
	PageFullError
	IncompatibleTypesError
	TypeMismatchError
	MalformedDataError
	BufferPoolFullError
	BadPageNoError
	ParseError
	NoSuchTableError
	AmbiguousNameError
	IllegalOperationError
	TransactionAbortedError
	IllegalTransactionError
)

// SimpleDBError is the error value used throughout the engine. The code
// distinguishes recoverable conditions (e.g. PageFullError during a heap file
// insert) from ones that must surface to the transaction owner.
type SimpleDBError struct {
	code      SimpleDBErrorCode
	errString string
}

func (e SimpleDBError) Error() string {
	return e.errString
}

// errCode extracts the SimpleDBError code from an error, or -1 if err is not
// a SimpleDBError.
func errCode(err error) SimpleDBErrorCode {
	if sdbErr, ok := err.(SimpleDBError); ok {
		return sdbErr.code
	}
	return -1
}

// Page is the in-memory image of one disk page.
type Page interface {
	// isDirty reports whether the page has uncommitted modifications.
	isDirty() bool
	// setDirty marks or clears the dirty flag. When dirty is true, tid
	// records the transaction responsible; when false, tid is ignored.
	setDirty(tid TransactionID, dirty bool)
	// dirtier returns the transaction that dirtied the page, or tidNone.
	dirtier() TransactionID
	// getFile returns the DBFile this page belongs to.
	getFile() DBFile
	// setBeforeImage snapshots the page's current serialized bytes as its
	// before image.
	setBeforeImage() error
	// getBeforeImage reconstructs a page from the snapshot saved by the
	// last setBeforeImage call.
	getBeforeImage() (Page, error)
}

// DBFile is an on-disk collection of pages holding tuples of a single
// schema. A DBFile is also an Operator whose iterator scans every tuple in
// the file (a sequential scan).
type DBFile interface {
	insertTuple(t *Tuple, tid TransactionID) error
	deleteTuple(t *Tuple, tid TransactionID) error

	// readPage materializes one page from disk, bypassing the buffer pool.
	// Callers other than the buffer pool and tests should use
	// [BufferPool.GetPage] so that locking and caching apply.
	readPage(pageNo int) (Page, error)
	// flushPage writes one page image back to its slot in the file.
	flushPage(p Page) error

	// pageKey returns the comparable key identifying page pageNo of this
	// file, used by the buffer pool's page and lock tables.
	pageKey(pageNo int) any

	NumPages() int
	Operator
}

// Operator is a node of a query plan. Iterator returns a pull closure that
// yields one tuple per call and nil at end of stream; invoking Iterator again
// rewinds the operator. Operators reference their children only, so plans are
// acyclic by construction.
type Operator interface {
	Descriptor() *TupleDesc
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
}
