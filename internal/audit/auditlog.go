package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gpdir16/LocalKeys/internal/storage"
)

// LogFile is the on-disk name of the audit document.
const LogFile = "audit.json"

// DefaultMaxEntries caps the log; oldest entries are evicted first.
const DefaultMaxEntries = 1000

type Category string

const (
	CategoryApp    Category = "app"
	CategoryLock   Category = "lock"
	CategoryAccess Category = "access"
)

type Entry struct {
	TS       int64    `json:"ts"` // unix milliseconds
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Hash     string   `json:"hash"`
}

type document struct {
	Entries []Entry `json:"entries"`
}

// Log is an append-only, masked, hash-chained event log persisted as one
// JSON document. Each append re-reads and rewrites the whole file; the
// daemon is the only writer, so no cross-process coordination is needed.
type Log struct {
	mu    sync.Mutex
	store storage.Store
	max   int
}

func New(store storage.Store, maxEntries int) *Log {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Log{store: store, max: maxEntries}
}

// Append masks the message, chains it onto the previous entry's hash, and
// persists the updated document. Eviction happens after masking. Callers
// treat audit failures as non-fatal; operations never fail because logging
// failed.
func (l *Log) Append(cat Category, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc := l.load()

	e := Entry{
		TS:       time.Now().UnixMilli(),
		Category: cat,
		Message:  Mask(message),
	}

	var prev []byte
	if n := len(doc.Entries); n > 0 {
		prev, _ = hex.DecodeString(doc.Entries[n-1].Hash)
	}
	e.Hash = hex.EncodeToString(chainHash(prev, e))

	doc.Entries = append(doc.Entries, e)
	if over := len(doc.Entries) - l.max; over > 0 {
		doc.Entries = doc.Entries[over:]
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return l.store.Write(LogFile, b)
}

// Appendf is Append with formatting.
func (l *Log) Appendf(cat Category, format string, args ...any) error {
	return l.Append(cat, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the persisted entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc := l.load()
	return append([]Entry(nil), doc.Entries...)
}

// Verify checks hash-chain continuity across the retained entries. The
// first retained entry loses its predecessor once eviction truncates the
// log, so verification starts at the second entry.
func (l *Log) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc := l.load()
	for i := 1; i < len(doc.Entries); i++ {
		prev, err := hex.DecodeString(doc.Entries[i-1].Hash)
		if err != nil {
			return fmt.Errorf("audit: entry %d: bad hash encoding", i-1)
		}
		e := doc.Entries[i]
		if e.Hash != hex.EncodeToString(chainHash(prev, e)) {
			return fmt.Errorf("audit: chain broken at entry %d", i)
		}
	}
	return nil
}

// load reads the persisted document. A missing or corrupt file is treated
// as empty; the next append overwrites it.
func (l *Log) load() document {
	var doc document
	b, err := l.store.Read(LogFile)
	if err != nil {
		return doc
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return document{}
	}
	return doc
}

func chainHash(prev []byte, e Entry) []byte {
	h := sha256.New()
	h.Write(prev)
	fmt.Fprintf(h, "%d|%s|%s", e.TS, e.Category, e.Message)
	return h.Sum(nil)
}
