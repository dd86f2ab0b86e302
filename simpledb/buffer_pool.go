package simpledb

// BufferPool caches pages read from disk, bounded by a fixed capacity, and
// is the primary way transactions are enforced: every page access goes
// through GetPage, which acquires a page-level shared or exclusive lock on
// behalf of the requesting transaction.
//
// The pool is NO-STEAL / FORCE: dirty pages are never evicted, commits write
// every page the transaction dirtied, and abort therefore only needs to
// discard cached images and re-read from disk.
//
// Deadlocks are handled by timeout rather than a waits-for graph: an acquire
// that cannot be granted after LockRetries attempts fails with
// TransactionAbortedError, and the caller is expected to abort. This can
// abort transactions that are merely slow, but it guarantees liveness.

import (
	"fmt"
	"sync"
	"time"
)

// RWPerm is the permission with which a page is requested and locked.
type RWPerm int

const (
	ReadPerm  RWPerm = iota
	WritePerm RWPerm = iota
)

// lockState is the lock record of one page: the set of transactions holding
// it shared, and the transaction holding it exclusive, if any. readers is
// non-empty only when writer is tidNone or equal to the lone reader
// mid-upgrade.
type lockState struct {
	readers map[TransactionID]struct{}
	writer  TransactionID
}

type BufferPool struct {
	pages    map[any]Page
	maxPages int

	pageLocks      map[any]*lockState
	sharedHolds    map[TransactionID]map[any]struct{}
	exclusiveHolds map[TransactionID]map[any]struct{}
	runningTids    map[TransactionID]struct{}

	logFile *LogFile

	// poolLock serializes the maps above and the flush/evict paths.
	poolLock sync.Mutex
}

// NewBufferPool creates a buffer pool that caches up to numPages pages.
func NewBufferPool(numPages int) (*BufferPool, error) {
	if numPages < 1 {
		return nil, SimpleDBError{IllegalOperationError, "buffer pool requires capacity of at least one page"}
	}
	return &BufferPool{
		pages:          make(map[any]Page),
		maxPages:       numPages,
		pageLocks:      make(map[any]*lockState),
		sharedHolds:    make(map[TransactionID]map[any]struct{}),
		exclusiveHolds: make(map[TransactionID]map[any]struct{}),
		runningTids:    make(map[TransactionID]struct{}),
	}, nil
}

// SetLogFile attaches the write-ahead log. Once attached, flushPage appends
// and forces an update record before every data write, and transaction
// lifecycle records are logged.
func (bp *BufferPool) SetLogFile(logFile *LogFile) {
	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()
	bp.logFile = logFile
}

// LogFile returns the log attached to the buffer pool, or nil.
func (bp *BufferPool) LogFile() *LogFile {
	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()
	return bp.logFile
}

// BeginTransaction registers tid as running. Returns an error if the
// transaction is already running.
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()
	if _, ok := bp.runningTids[tid]; ok {
		return SimpleDBError{IllegalTransactionError, fmt.Sprintf("transaction %d is already running", tid)}
	}
	bp.runningTids[tid] = struct{}{}
	bp.sharedHolds[tid] = make(map[any]struct{})
	bp.exclusiveHolds[tid] = make(map[any]struct{})
	if bp.logFile != nil {
		bp.logFile.LogBegin(tid)
	}
	return nil
}

// lockFor returns the lock record for key, creating it on first use. Caller
// holds poolLock.
func (bp *BufferPool) lockFor(key any) *lockState {
	ls, ok := bp.pageLocks[key]
	if !ok {
		ls = &lockState{readers: make(map[TransactionID]struct{}), writer: tidNone}
		bp.pageLocks[key] = ls
	}
	return ls
}

// tryLock attempts one acquisition of key for tid with perm, granting
// reentrant, upgrade, and downgrade requests. Returns true when the lock was
// granted. Caller holds poolLock.
func (bp *BufferPool) tryLock(tid TransactionID, key any, perm RWPerm) bool {
	ls := bp.lockFor(key)

	if perm == ReadPerm {
		if ls.writer == tid {
			// downgrade: drop the writer, keep reading
			ls.writer = tidNone
			ls.readers[tid] = struct{}{}
			bp.sharedHolds[tid][key] = struct{}{}
			return true
		}
		if ls.writer != tidNone {
			return false
		}
		ls.readers[tid] = struct{}{}
		bp.sharedHolds[tid][key] = struct{}{}
		return true
	}

	// WritePerm
	if ls.writer == tid {
		return true
	}
	if ls.writer != tidNone {
		return false
	}
	for reader := range ls.readers {
		if reader != tid {
			return false
		}
	}
	// either no readers, or tid is the sole reader and upgrades
	delete(ls.readers, tid)
	ls.writer = tid
	bp.exclusiveHolds[tid][key] = struct{}{}
	return true
}

// acquireLock blocks until the page lock for key is granted to tid, retrying
// up to LockRetries times with LockRetryInterval between attempts. On
// exhaustion it fails with TransactionAbortedError; the caller must then
// invoke AbortTransaction.
func (bp *BufferPool) acquireLock(tid TransactionID, key any, perm RWPerm) error {
	for attempt := 0; ; attempt++ {
		bp.poolLock.Lock()
		if _, ok := bp.runningTids[tid]; !ok {
			bp.poolLock.Unlock()
			return SimpleDBError{IllegalTransactionError, fmt.Sprintf("transaction %d is not running", tid)}
		}
		granted := bp.tryLock(tid, key, perm)
		bp.poolLock.Unlock()
		if granted {
			return nil
		}
		if attempt+1 >= LockRetries {
			return SimpleDBError{TransactionAbortedError, fmt.Sprintf("transaction %d gave up waiting for page %v", tid, key)}
		}
		time.Sleep(LockRetryInterval)
	}
}

// GetPage retrieves page pageNo of file on behalf of tid, locking it with
// perm. The page is served from the cache when present; otherwise it is read
// through [DBFile.readPage] after evicting a clean page if the pool is at
// capacity. When every cached page is dirty the request fails with
// BufferPoolFullError rather than violate NO-STEAL.
func (bp *BufferPool) GetPage(file DBFile, pageNo int, tid TransactionID, perm RWPerm) (Page, error) {
	key := file.pageKey(pageNo)
	if err := bp.acquireLock(tid, key, perm); err != nil {
		return nil, err
	}

	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()

	if pg, ok := bp.pages[key]; ok {
		return pg, nil
	}
	if len(bp.pages) >= bp.maxPages {
		if err := bp.evictPage(); err != nil {
			return nil, err
		}
	}
	pg, err := file.readPage(pageNo)
	if err != nil {
		return nil, err
	}
	bp.pages[key] = pg
	return pg, nil
}

// evictPage removes the first clean page from the cache. Dirty pages are
// never evicted (NO-STEAL); when none is clean the pool is stuck and the
// caller's request fails. Caller holds poolLock.
func (bp *BufferPool) evictPage() error {
	for key, pg := range bp.pages {
		if !pg.isDirty() {
			delete(bp.pages, key)
			return nil
		}
	}
	return SimpleDBError{BufferPoolFullError, "all pages in the buffer pool are dirty"}
}

// flushPageLocked writes one cached page through to disk if it is dirty,
// appending and forcing a log update record first, and clears the dirty bit.
// Clean pages are a no-op. Caller holds poolLock.
func (bp *BufferPool) flushPageLocked(pg Page) error {
	if !pg.isDirty() {
		return nil
	}
	if bp.logFile != nil {
		before, err := pg.getBeforeImage()
		if err != nil {
			return err
		}
		if err := bp.logFile.LogUpdate(pg.dirtier(), before, pg); err != nil {
			return err
		}
		if err := bp.logFile.Force(); err != nil {
			return err
		}
	}
	if err := pg.getFile().flushPage(pg); err != nil {
		return err
	}
	pg.setDirty(tidNone, false)
	return nil
}

// flushPage flushes the page cached under key, if any.
func (bp *BufferPool) flushPage(key any) error {
	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()
	pg, ok := bp.pages[key]
	if !ok {
		return nil
	}
	return bp.flushPageLocked(pg)
}

// FlushAllPages flushes every cached page. Testing method; not transaction
// safe.
func (bp *BufferPool) FlushAllPages() {
	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()
	for _, pg := range bp.pages {
		bp.flushPageLocked(pg)
	}
}

// flushPages flushes every cached page dirtied by tid.
func (bp *BufferPool) flushPages(tid TransactionID) error {
	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()
	for _, pg := range bp.pages {
		if pg.isDirty() && pg.dirtier() == tid {
			if err := bp.flushPageLocked(pg); err != nil {
				return err
			}
		}
	}
	return nil
}

// removePage drops the page cached under key without flushing it. Testing
// method, mirroring what eviction does to clean pages.
func (bp *BufferPool) removePage(key any) {
	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()
	delete(bp.pages, key)
}

// releaseLocks drops every lock tid holds and forgets its hold sets. Caller
// holds poolLock.
func (bp *BufferPool) releaseLocks(tid TransactionID) {
	for key := range bp.sharedHolds[tid] {
		if ls, ok := bp.pageLocks[key]; ok {
			delete(ls.readers, tid)
		}
	}
	for key := range bp.exclusiveHolds[tid] {
		if ls, ok := bp.pageLocks[key]; ok {
			delete(ls.readers, tid)
			if ls.writer == tid {
				ls.writer = tidNone
			}
		}
	}
	delete(bp.sharedHolds, tid)
	delete(bp.exclusiveHolds, tid)
	delete(bp.runningTids, tid)
}

// CommitTransaction commits tid: every page in its exclusive set is flushed
// to disk (FORCE) and re-snapshotted as its own before image, then all locks
// are released.
func (bp *BufferPool) CommitTransaction(tid TransactionID) {
	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()
	if _, ok := bp.runningTids[tid]; !ok {
		return
	}
	for key := range bp.exclusiveHolds[tid] {
		pg, ok := bp.pages[key]
		if !ok {
			continue
		}
		if err := bp.flushPageLocked(pg); err != nil {
			continue
		}
		pg.setBeforeImage()
	}
	if bp.logFile != nil {
		bp.logFile.LogCommit(tid)
		bp.logFile.Force()
	}
	bp.releaseLocks(tid)
}

// AbortTransaction aborts tid: every page it touched, shared or exclusive
// (shared holds may have been downgraded from exclusive), is replaced in the
// cache by a fresh read from disk, then all locks are released. Under
// NO-STEAL none of tid's modifications reached disk, so reloading restores
// the pre-transaction state.
func (bp *BufferPool) AbortTransaction(tid TransactionID) {
	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()
	if _, ok := bp.runningTids[tid]; !ok {
		return
	}

	touched := make(map[any]struct{})
	for key := range bp.sharedHolds[tid] {
		touched[key] = struct{}{}
	}
	for key := range bp.exclusiveHolds[tid] {
		touched[key] = struct{}{}
	}
	for key := range touched {
		pg, ok := bp.pages[key]
		if !ok {
			continue
		}
		hp, ok := pg.(*heapPage)
		if !ok {
			delete(bp.pages, key)
			continue
		}
		fresh, err := hp.getFile().readPage(hp.PageNo())
		if err != nil {
			delete(bp.pages, key)
			continue
		}
		bp.pages[key] = fresh
	}

	if bp.logFile != nil {
		bp.logFile.LogAbort(tid)
		bp.logFile.Force()
	}
	bp.releaseLocks(tid)
}
