package simpledb

// heapPage implements the Page interface for pages of HeapFiles.
//
// All tuples of a heap file are fixed length, so a page holds a fixed number
// of tuple slots plus a header bitmap recording which slots are in use. With
// page size P bytes and tuple size S bytes the slot count is
//
//	numSlots = P*8 / (S*8 + 1)
//
// (one bit of header per slot), and the header occupies ceil(numSlots/8)
// bytes. The on-disk layout is the header, then numSlots fixed-width slots,
// then zero padding up to P. Bit i%8 of header byte i/8 is set iff slot i
// holds a tuple; the bytes of an unused slot are zero.
//
// Slot numbers are stable in memory: deleting a tuple leaves a hole that a
// later insert may refill, and serialization preserves slot positions, so a
// page image round-trips byte-exactly through initFromBuffer/toBuffer.

import (
	"bytes"
	"fmt"
	"sync"
)

type heapPage struct {
	desc        TupleDesc
	pid         heapPageId
	header      []byte
	tuples      []*Tuple
	numUsed     int
	dirty       bool
	dirtyTid    TransactionID
	file        *HeapFile
	beforeImage []byte
	sync.Mutex
}

// Construct a new, empty heap page for slot pageNo of f.
func newHeapPage(desc *TupleDesc, pageNo int, f *HeapFile) (*heapPage, error) {
	tupleSize := desc.bytesPerTuple()
	if tupleSize <= 0 {
		return nil, SimpleDBError{MalformedDataError, "tuple descriptor has no fields"}
	}
	numSlots := PageSize * 8 / (tupleSize*8 + 1)
	if numSlots < 1 {
		return nil, SimpleDBError{MalformedDataError, fmt.Sprintf("tuple of %d bytes does not fit on a %d byte page", tupleSize, PageSize)}
	}
	h := &heapPage{
		desc:   *desc,
		pid:    heapPageId{f.id, pageNo},
		header: make([]byte, (numSlots+7)/8),
		tuples: make([]*Tuple, numSlots),
		file:   f,
	}
	if err := h.setBeforeImage(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *heapPage) getNumSlots() int {
	return len(h.tuples)
}

func (h *heapPage) getNumUsedSlots() int {
	return h.numUsed
}

func (h *heapPage) getNumEmptySlots() int {
	return len(h.tuples) - h.numUsed
}

// isSlotUsed reports bit i of the header bitmap.
func (h *heapPage) isSlotUsed(i int) bool {
	return h.header[i/8]&(1<<(i%8)) != 0
}

// markSlotUsed sets or clears bit i of the header bitmap. No other page
// state is touched.
func (h *heapPage) markSlotUsed(i int, used bool) {
	if used {
		h.header[i/8] |= 1 << (i % 8)
	} else {
		h.header[i/8] &^= 1 << (i % 8)
	}
}

// insertTuple stores t in the first unused slot, marks the slot used, and
// sets t's rid. Fails with PageFullError when no slot is free and
// TypeMismatchError when t's descriptor differs from the page's.
func (h *heapPage) insertTuple(t *Tuple) (recordID, error) {
	if !t.Desc.equals(&h.desc) {
		return nil, SimpleDBError{TypeMismatchError, "tuple descriptor does not match page descriptor"}
	}
	for i := 0; i < len(h.tuples); i++ {
		if h.isSlotUsed(i) {
			continue
		}
		h.tuples[i] = t
		h.markSlotUsed(i, true)
		h.numUsed++
		t.Rid = heapRid{h.pid, i}
		return t.Rid, nil
	}
	return nil, SimpleDBError{PageFullError, "page is full"}
}

// deleteTuple removes the lowest-numbered used slot whose stored tuple has
// the same field values as t, clearing its header bit. Fails with
// TupleNotFoundError when no slot matches.
func (h *heapPage) deleteTuple(t *Tuple) error {
	for i := 0; i < len(h.tuples); i++ {
		if !h.isSlotUsed(i) {
			continue
		}
		if !h.tuples[i].sameFields(t) {
			continue
		}
		h.tuples[i] = nil
		h.markSlotUsed(i, false)
		h.numUsed--
		return nil
	}
	return SimpleDBError{TupleNotFoundError, "tuple not found on page"}
}

func (h *heapPage) isDirty() bool {
	return h.dirty
}

func (h *heapPage) setDirty(tid TransactionID, dirty bool) {
	h.dirty = dirty
	if dirty {
		h.dirtyTid = tid
	} else {
		h.dirtyTid = tidNone
	}
}

func (h *heapPage) dirtier() TransactionID {
	return h.dirtyTid
}

func (h *heapPage) getFile() DBFile {
	return h.file
}

func (h *heapPage) PageNo() int {
	return h.pid.PageNo
}

// toBuffer serializes the page: header bitmap, then every slot in order
// (zero bytes for unused slots), then zero padding to PageSize.
func (h *heapPage) toBuffer() (*bytes.Buffer, error) {
	b := new(bytes.Buffer)
	if _, err := b.Write(h.header); err != nil {
		return nil, err
	}
	tupleSize := h.desc.bytesPerTuple()
	for i := 0; i < len(h.tuples); i++ {
		if h.isSlotUsed(i) {
			if err := h.tuples[i].writeTo(b); err != nil {
				return nil, err
			}
		} else {
			if _, err := b.Write(make([]byte, tupleSize)); err != nil {
				return nil, err
			}
		}
	}
	if b.Len() > PageSize {
		return nil, SimpleDBError{MalformedDataError, "page serialization exceeds page size"}
	}
	b.Write(make([]byte, PageSize-b.Len()))
	return b, nil
}

// initFromBuffer reads the page contents from a PageSize byte buffer,
// inverting toBuffer. Slot positions and rids are preserved.
func (h *heapPage) initFromBuffer(buf *bytes.Buffer) error {
	header := make([]byte, len(h.header))
	if n, err := buf.Read(header); err != nil || n != len(header) {
		return SimpleDBError{MalformedDataError, "short page header"}
	}
	h.header = header

	tupleSize := h.desc.bytesPerTuple()
	h.numUsed = 0
	for i := 0; i < len(h.tuples); i++ {
		if !h.isSlotUsed(i) {
			h.tuples[i] = nil
			buf.Next(tupleSize)
			continue
		}
		t, err := readTupleFrom(buf, &h.desc)
		if err != nil {
			return err
		}
		t.Rid = heapRid{h.pid, i}
		h.tuples[i] = t
		h.numUsed++
	}
	h.dirty = false
	h.dirtyTid = tidNone
	return h.setBeforeImage()
}

// setBeforeImage snapshots the current serialized page bytes. The buffer
// pool re-snapshots after each commit so the log hook always sees the last
// committed state as the before image.
func (h *heapPage) setBeforeImage() error {
	buf, err := h.toBuffer()
	if err != nil {
		return err
	}
	h.beforeImage = buf.Bytes()
	return nil
}

// getBeforeImage reconstructs a page from the snapshot saved by
// setBeforeImage.
func (h *heapPage) getBeforeImage() (Page, error) {
	if h.beforeImage == nil {
		return nil, SimpleDBError{IllegalOperationError, "page has no before image"}
	}
	pg := &heapPage{
		desc:   h.desc,
		pid:    h.pid,
		header: make([]byte, len(h.header)),
		tuples: make([]*Tuple, len(h.tuples)),
		file:   h.file,
	}
	if err := pg.initFromBuffer(bytes.NewBuffer(h.beforeImage)); err != nil {
		return nil, err
	}
	return pg, nil
}

// tupleIter returns a function that iterates through the used slots of the
// page in slot order, returning nil after the last tuple.
func (h *heapPage) tupleIter() func() (*Tuple, error) {
	i := 0
	return func() (*Tuple, error) {
		for ; i < len(h.tuples); i++ {
			if h.isSlotUsed(i) {
				t := h.tuples[i]
				i++
				return t, nil
			}
		}
		return nil, nil
	}
}
