package simpledb

// A HeapFile is an unordered collection of tuples stored as a 0-indexed
// array of fixed-size pages. Page k lives at byte offset k*PageSize; pages
// are concatenated with no framing.
//
// HeapFile is public because external callers may wish to populate tables
// with [HeapFile.LoadFromCSV].

import (
	"bufio"
	"bytes"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

type HeapFile struct {
	td          *TupleDesc
	backingFile string
	id          int
	numPages    int
	bufPool     *BufferPool
	sync.Mutex
}

// heapPageId identifies a page as (table id, page number). It is comparable,
// so it doubles as the buffer pool's page and lock table key.
type heapPageId struct {
	TableId int
	PageNo  int
}

// hashCode returns a stable integer hash of the page id.
func (pid heapPageId) hashCode() int {
	return pid.TableId*31 + pid.PageNo
}

// heapRid is the record id of a heap file tuple: the page it lives on and
// its slot number within the page.
type heapRid struct {
	Pid    heapPageId
	SlotNo int
}

// fileId derives a heap file's stable table id from its absolute path.
func fileId(path string) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	h := fnv.New32a()
	h.Write([]byte(abs))
	return int(h.Sum32() & 0x7fffffff)
}

// NewHeapFile opens or creates a heap file backed by fromFile, holding
// tuples described by td, reading pages through bp.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	if td == nil || len(td.Fields) == 0 {
		return nil, SimpleDBError{MalformedDataError, "heap file requires a non-empty tuple descriptor"}
	}
	f, err := os.OpenFile(fromFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	numPages := int((fi.Size() + int64(PageSize) - 1) / int64(PageSize))
	return &HeapFile{
		td:          td.copy(),
		backingFile: fromFile,
		id:          fileId(fromFile),
		numPages:    numPages,
		bufPool:     bp,
	}, nil
}

// BackingFile returns the name of the file backing this heap file.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// NumPages returns the number of pages in the heap file, counting pages that
// have been allocated in memory but not yet flushed.
func (f *HeapFile) NumPages() int {
	f.Lock()
	defer f.Unlock()
	return f.numPages
}

// readPage reads page pageNo from disk and materializes a heapPage. Reading
// the page just past the current end of the file yields a fresh empty page;
// this is how [HeapFile.insertTuple] grows the file through the buffer pool.
// Any other out-of-range page or short read is an error.
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	f.Lock()
	numPages := f.numPages
	f.Unlock()

	if pageNo < 0 || pageNo > numPages {
		return nil, SimpleDBError{BadPageNoError, fmt.Sprintf("page %d out of range (file has %d pages)", pageNo, numPages)}
	}
	if pageNo == numPages {
		return newHeapPage(f.td, pageNo, f)
	}

	file, err := os.Open(f.backingFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	b := make([]byte, PageSize)
	n, err := file.ReadAt(b, int64(pageNo)*int64(PageSize))
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n != PageSize {
		return nil, SimpleDBError{MalformedDataError, fmt.Sprintf("short read of page %d: got %d of %d bytes", pageNo, n, PageSize)}
	}
	pg, err := newHeapPage(f.td, pageNo, f)
	if err != nil {
		return nil, err
	}
	if err := pg.initFromBuffer(bytes.NewBuffer(b)); err != nil {
		return nil, err
	}
	return pg, nil
}

// flushPage writes a page image back to its slot in the backing file.
// Writing the page just past the end extends the file by one page; writing
// further past the end is an error.
func (f *HeapFile) flushPage(p Page) error {
	hp, ok := p.(*heapPage)
	if !ok {
		return SimpleDBError{IncompatibleTypesError, "heap file asked to flush a non-heap page"}
	}

	f.Lock()
	defer f.Unlock()
	if hp.pid.PageNo > f.numPages {
		return SimpleDBError{BadPageNoError, fmt.Sprintf("cannot write page %d of a %d page file", hp.pid.PageNo, f.numPages)}
	}

	buf, err := hp.toBuffer()
	if err != nil {
		return err
	}
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteAt(buf.Bytes(), int64(hp.pid.PageNo)*int64(PageSize)); err != nil {
		return err
	}
	if hp.pid.PageNo == f.numPages {
		f.numPages++
	}
	return nil
}

// insertTuple adds t to the heap file on behalf of tid. Pages are scanned in
// order through the buffer pool under write permission; the first page with
// a free slot accepts the tuple. When every existing page is full the file
// grows by one page. The page that accepted the tuple is marked dirty with
// tid.
func (f *HeapFile) insertTuple(t *Tuple, tid TransactionID) error {
	for pageNo := 0; pageNo < f.NumPages(); pageNo++ {
		pg, err := f.bufPool.GetPage(f, pageNo, tid, WritePerm)
		if err != nil {
			return err
		}
		hp := pg.(*heapPage)
		if _, err := hp.insertTuple(t); err != nil {
			if errCode(err) == PageFullError {
				continue
			}
			return err
		}
		hp.setDirty(tid, true)
		return nil
	}

	// Every existing page is full. Extend the file with an empty page on
	// disk first, so an abort can reload it, then insert through the buffer
	// pool so the new page is locked and cached like any other.
	f.Lock()
	newPageNo := f.numPages
	empty, err := newHeapPage(f.td, newPageNo, f)
	f.Unlock()
	if err != nil {
		return err
	}
	if err := f.flushPage(empty); err != nil {
		return err
	}

	pg, err := f.bufPool.GetPage(f, newPageNo, tid, WritePerm)
	if err != nil {
		return err
	}
	hp := pg.(*heapPage)
	if _, err := hp.insertTuple(t); err != nil {
		return err
	}
	hp.setDirty(tid, true)
	return nil
}

// deleteTuple removes t from the heap file on behalf of tid, locating the
// page through t's record id and marking it dirty.
func (f *HeapFile) deleteTuple(t *Tuple, tid TransactionID) error {
	if t.Rid == nil {
		return SimpleDBError{TupleNotFoundError, "tuple has no record id"}
	}
	rid, ok := t.Rid.(heapRid)
	if !ok {
		return SimpleDBError{TupleNotFoundError, "tuple's record id is not a heap file rid"}
	}
	if rid.Pid.PageNo < 0 || rid.Pid.PageNo >= f.NumPages() {
		return SimpleDBError{TupleNotFoundError, fmt.Sprintf("record id names page %d, beyond the file", rid.Pid.PageNo)}
	}

	pg, err := f.bufPool.GetPage(f, rid.Pid.PageNo, tid, WritePerm)
	if err != nil {
		return err
	}
	hp := pg.(*heapPage)
	if err := hp.deleteTuple(t); err != nil {
		return err
	}
	hp.setDirty(tid, true)
	return nil
}

// Descriptor returns the schema of the tuples in this file.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.td
}

// Iterator returns a function that scans every tuple of the file in page and
// slot order, requesting each page through the buffer pool with read
// permission. The next page is fetched only once the current page's iterator
// is exhausted.
func (f *HeapFile) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	pageNo := 0
	var pgIter func() (*Tuple, error)
	return func() (*Tuple, error) {
		for {
			if pgIter == nil {
				if pageNo >= f.NumPages() {
					return nil, nil
				}
				pg, err := f.bufPool.GetPage(f, pageNo, tid, ReadPerm)
				if err != nil {
					return nil, err
				}
				pgIter = pg.(*heapPage).tupleIter()
				pageNo++
			}
			t, err := pgIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				pgIter = nil
				continue
			}
			return &Tuple{*f.td, t.Fields, t.Rid}, nil
		}
	}, nil
}

// pageKey returns the key identifying page pageNo of this file in the buffer
// pool's maps.
func (f *HeapFile) pageKey(pageNo int) any {
	return heapPageId{f.id, pageNo}
}

// LoadFromCSV bulk loads the contents of a CSV file into the heap file.
// hasHeader skips the first line; sep is the field separator; skipLastField
// drops a trailing empty field (some TPC exports end every line with the
// separator). Each line is inserted under its own small transaction so the
// pool never fills with dirty pages.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	cnt := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[0 : len(fields)-1]
		}
		cnt++
		desc := f.Descriptor()
		if len(fields) != len(desc.Fields) {
			return SimpleDBError{MalformedDataError, fmt.Sprintf("LoadFromCSV: line %d (%s) has %d fields, expected %d", cnt, line, len(fields), len(desc.Fields))}
		}
		if cnt == 1 && hasHeader {
			continue
		}

		var newFields []DBValue
		for fno, field := range fields {
			switch desc.Fields[fno].Ftype {
			case IntType:
				field = strings.TrimSpace(field)
				fv, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return SimpleDBError{TypeMismatchError, fmt.Sprintf("LoadFromCSV: cannot convert %s to int on line %d", field, cnt)}
				}
				newFields = append(newFields, IntField{int32(fv)})
			case StringType:
				if len(field) > StringLength {
					field = field[0:StringLength]
				}
				newFields = append(newFields, StringField{field})
			}
		}
		newT := Tuple{*desc, newFields, nil}

		tid := NewTID()
		if err := f.bufPool.BeginTransaction(tid); err != nil {
			return err
		}
		if err := f.insertTuple(&newT, tid); err != nil {
			f.bufPool.AbortTransaction(tid)
			return err
		}
		f.bufPool.CommitTransaction(tid)
	}
	return nil
}
