package simpledb

// log_file.go implements the update log the buffer pool writes through. It
// is the responsibility of the user of this module to ensure write ahead
// logging discipline: the buffer pool appends and forces an update record
// before every data page write.
//
// The log is a sequence of records, encoded big-endian like the rest of the
// engine's on-disk formats:
//
//	+--------------------------------------------------------+
//	| Transaction id (4 bytes)                               |
//	+--------------------------------------------------------+
//	| Record type (1 byte)                                   |
//	+--------------------------------------------------------+
//	| Update records only:                                   |
//	|   table id (4 bytes), page number (4 bytes)            |
//	|   before image (PageSize bytes)                        |
//	|   after image (PageSize bytes)                         |
//	+--------------------------------------------------------+
//	| Record length (4 bytes, includes this field)           |
//	+--------------------------------------------------------+
//
// Begin, Commit, and Abort records have no body. An update record carries
// the identity of the page once, since its before and after images describe
// the same page. The trailing length field lets a reverse scan step from
// record to record without an index.
//
// Appends accumulate in memory until Force, which writes and syncs them; the
// file handle is opened in append mode and all reads go through ReadAt, so
// readers never disturb the write position. Replay and checkpointing are a
// recovery component's concern, not this file's.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"sync"
)

type LogFile struct {
	file    *os.File
	catalog *Catalog
	pending [][]byte // encoded records not yet durable
	size    int64    // durable plus pending bytes
	sync.Mutex
}

type LogRecordType uint8

const (
	BeginRecord LogRecordType = iota
	UpdateRecord
	CommitRecord
	AbortRecord
)

func (t LogRecordType) String() string {
	switch t {
	case BeginRecord:
		return "begin"
	case UpdateRecord:
		return "update"
	case CommitRecord:
		return "commit"
	case AbortRecord:
		return "abort"
	}
	return "unknown"
}

// LogRecord is one decoded log entry. Pid, Before, and After are only set on
// update records.
type LogRecord struct {
	Tid    TransactionID
	Type   LogRecordType
	Pid    heapPageId
	Before Page
	After  Page
}

// Fixed record sizes: tid + type + length, plus the update body.
func plainRecordLen() int64 {
	return 4 + 1 + 4
}

func updateRecordLen() int64 {
	return plainRecordLen() + 8 + 2*int64(PageSize)
}

// NewLogFile opens or creates the log backed by fileName. The catalog is
// needed to resolve table ids back to heap files when decoding update
// records.
func NewLogFile(fileName string, catalog *Catalog) (*LogFile, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog must be non-nil")
	}
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &LogFile{file: file, catalog: catalog, size: fi.Size()}, nil
}

// appendRecord finishes an encoded record with its trailing length field and
// queues it for the next Force.
func (f *LogFile) appendRecord(buf *bytes.Buffer) {
	binary.Write(buf, binary.BigEndian, uint32(buf.Len()+4))
	f.Lock()
	f.pending = append(f.pending, buf.Bytes())
	f.size += int64(buf.Len())
	f.Unlock()
}

func encodeHeader(buf *bytes.Buffer, tid TransactionID, typ LogRecordType) {
	binary.Write(buf, binary.BigEndian, int32(tid))
	buf.WriteByte(byte(typ))
}

// LogBegin appends a Begin record for tid.
func (f *LogFile) LogBegin(tid TransactionID) {
	buf := new(bytes.Buffer)
	encodeHeader(buf, tid, BeginRecord)
	f.appendRecord(buf)
}

// LogCommit appends a Commit record for tid.
func (f *LogFile) LogCommit(tid TransactionID) {
	buf := new(bytes.Buffer)
	encodeHeader(buf, tid, CommitRecord)
	f.appendRecord(buf)
}

// LogAbort appends an Abort record for tid.
func (f *LogFile) LogAbort(tid TransactionID) {
	buf := new(bytes.Buffer)
	encodeHeader(buf, tid, AbortRecord)
	f.appendRecord(buf)
}

// LogUpdate appends an Update record holding the before and after images of
// one page modified by tid. The images must describe the same page. Does not
// force the log.
func (f *LogFile) LogUpdate(tid TransactionID, before Page, after Page) error {
	bh, ok := before.(*heapPage)
	if !ok {
		return fmt.Errorf("unsupported before image type %T", before)
	}
	ah, ok := after.(*heapPage)
	if !ok {
		return fmt.Errorf("unsupported after image type %T", after)
	}
	if bh.pid != ah.pid {
		return fmt.Errorf("update images describe different pages: %v vs %v", bh.pid, ah.pid)
	}

	buf := new(bytes.Buffer)
	encodeHeader(buf, tid, UpdateRecord)
	binary.Write(buf, binary.BigEndian, int32(bh.pid.TableId))
	binary.Write(buf, binary.BigEndian, int32(bh.pid.PageNo))
	for _, img := range []*heapPage{bh, ah} {
		pb, err := img.toBuffer()
		if err != nil {
			return err
		}
		buf.Write(pb.Bytes())
	}
	f.appendRecord(buf)
	return nil
}

// Force makes every previously appended record durable.
func (f *LogFile) Force() error {
	f.Lock()
	defer f.Unlock()
	if len(f.pending) == 0 {
		return nil
	}
	for _, rec := range f.pending {
		if _, err := f.file.Write(rec); err != nil {
			return err
		}
	}
	f.pending = nil
	return f.file.Sync()
}

// decodePage reconstructs a heap page of the identified table from a logged
// image.
func (f *LogFile) decodePage(pid heapPageId, img []byte) (Page, error) {
	info, err := f.catalog.GetTableInfoId(pid.TableId)
	if err != nil {
		return nil, err
	}
	hf, ok := info.file.(*HeapFile)
	if !ok {
		return nil, fmt.Errorf("table %d is not backed by a heap file", pid.TableId)
	}
	pg, err := newHeapPage(hf.Descriptor(), pid.PageNo, hf)
	if err != nil {
		return nil, err
	}
	if err := pg.initFromBuffer(bytes.NewBuffer(img)); err != nil {
		return nil, err
	}
	return pg, nil
}

// readRecordAt decodes the record starting at offset and returns it along
// with the offset of the following record.
func (f *LogFile) readRecordAt(offset int64) (*LogRecord, int64, error) {
	var header [5]byte
	if _, err := f.file.ReadAt(header[:], offset); err != nil {
		return nil, 0, fmt.Errorf("truncated record header at offset %d: %v", offset, err)
	}
	rec := &LogRecord{
		Tid:  TransactionID(int32(binary.BigEndian.Uint32(header[0:4]))),
		Type: LogRecordType(header[4]),
	}

	next := offset + plainRecordLen()
	if rec.Type == UpdateRecord {
		body := make([]byte, 8+2*PageSize)
		if _, err := f.file.ReadAt(body, offset+5); err != nil {
			return nil, 0, fmt.Errorf("truncated update record at offset %d: %v", offset, err)
		}
		rec.Pid = heapPageId{
			TableId: int(int32(binary.BigEndian.Uint32(body[0:4]))),
			PageNo:  int(int32(binary.BigEndian.Uint32(body[4:8]))),
		}
		var err error
		if rec.Before, err = f.decodePage(rec.Pid, body[8:8+PageSize]); err != nil {
			return nil, 0, err
		}
		if rec.After, err = f.decodePage(rec.Pid, body[8+PageSize:]); err != nil {
			return nil, 0, err
		}
		next = offset + updateRecordLen()
	}

	var tail [4]byte
	if _, err := f.file.ReadAt(tail[:], next-4); err != nil {
		return nil, 0, fmt.Errorf("truncated record length at offset %d: %v", next-4, err)
	}
	if got := int64(binary.BigEndian.Uint32(tail[:])); got != next-offset {
		return nil, 0, fmt.Errorf("corrupt record at offset %d: length %d, expected %d", offset, got, next-offset)
	}
	return rec, next, nil
}

// ForwardIterator forces the log and returns an iterator over its records
// from the beginning, yielding nil at the end.
func (f *LogFile) ForwardIterator() (func() (*LogRecord, error), error) {
	if err := f.Force(); err != nil {
		return nil, err
	}
	offset := int64(0)
	end := f.size
	return func() (*LogRecord, error) {
		if offset >= end {
			return nil, nil
		}
		rec, next, err := f.readRecordAt(offset)
		if err != nil {
			return nil, err
		}
		offset = next
		return rec, nil
	}, nil
}

// ReverseIterator forces the log and returns an iterator over its records
// from the end backward, stepping via each record's trailing length field.
func (f *LogFile) ReverseIterator() (func() (*LogRecord, error), error) {
	if err := f.Force(); err != nil {
		return nil, err
	}
	offset := f.size
	return func() (*LogRecord, error) {
		if offset <= 0 {
			return nil, nil
		}
		var tail [4]byte
		if _, err := f.file.ReadAt(tail[:], offset-4); err != nil {
			return nil, fmt.Errorf("truncated record length at offset %d: %v", offset-4, err)
		}
		length := int64(binary.BigEndian.Uint32(tail[:]))
		if length < plainRecordLen() || length > offset {
			return nil, fmt.Errorf("corrupt record length %d at offset %d", length, offset-4)
		}
		rec, _, err := f.readRecordAt(offset - length)
		if err != nil {
			return nil, err
		}
		offset -= length
		return rec, nil
	}, nil
}

// OutputPrettyLog prints a human readable rendering of the log.
func (f *LogFile) OutputPrettyLog() error {
	iter, err := f.ForwardIterator()
	if err != nil {
		return err
	}
	offset := int64(0)
	for {
		rec, err := iter()
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		if rec.Type == UpdateRecord {
			log.Printf("%8d  %-6s tid=%d page=%v", offset, rec.Type, rec.Tid, rec.Pid)
			offset += updateRecordLen()
		} else {
			log.Printf("%8d  %-6s tid=%d", offset, rec.Type, rec.Tid)
			offset += plainRecordLen()
		}
	}
}
