package zipstream

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/meigma/zipstream/checksum"
	"github.com/meigma/zipstream/internal/zipfmt"
)

// Archive is an insertion-ordered collection of named entries that can be
// generated as a ZIP container.
//
// Registration is synchronous. Generation runs on the goroutine consuming
// the sequence returned by Generate; only one generation may be active at a
// time, and the Archive rejects registrations while it runs.
type Archive struct {
	logger  *slog.Logger
	now     func() time.Time
	workers int

	mu         sync.Mutex
	entries    []*entry
	index      map[string]int
	duplicates int
	generating bool
	closed     bool

	pool     *checksum.Pool
	ownsPool bool
}

// New creates an empty Archive.
func New(opts ...Option) *Archive {
	a := &Archive{
		index:    make(map[string]int),
		ownsPool: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// AddFile registers a file entry.
//
// content must be a []byte, a string, a Streamable, an *os.File or a
// ByteSource; anything else fails with ErrUnsupportedContent. Checksums of
// in-memory content are computed here; streamed content is checksummed
// during generation.
// A []byte is copied, so the caller may reuse the buffer once AddFile
// returns.
//
// A trailing or leading "/" is stripped from name. Registering a name that
// already exists is a no-op: the first registration wins.
func (a *Archive) AddFile(name string, content any, opts ...AddOption) error {
	c, err := classify(content)
	if err != nil {
		return err
	}
	if c.size < 0 {
		return fmt.Errorf("%s: %w: %d", name, ErrInvalidSize, c.size)
	}

	name = a.normalizeName(name, false)
	if err := validateName(name); err != nil {
		return err
	}

	cfg := a.addConfig(opts)
	e := &entry{
		name:    name,
		kind:    c.kind,
		data:    c.data,
		src:     c.src,
		size:    uint64(c.size),
		modTime: cfg.modTime,
	}
	if c.kind != KindStream {
		e.crc = checksum.Bytes(c.data)
		e.hasCRC = true
	}
	return a.insert(e)
}

// AddFolder registers a directory entry. A trailing "/" is added if missing.
func (a *Archive) AddFolder(name string, opts ...AddOption) error {
	name = a.normalizeName(name, true)
	if err := validateName(name); err != nil {
		return err
	}

	cfg := a.addConfig(opts)
	return a.insert(&entry{
		name:    name,
		kind:    KindDirectory,
		hasCRC:  true,
		modTime: cfg.modTime,
	})
}

// Entries returns snapshots of the registered entries in registration order.
func (a *Archive) Entries() []EntryView {
	a.mu.Lock()
	defer a.mu.Unlock()

	views := make([]EntryView, len(a.entries))
	for i, e := range a.entries {
		views[i] = EntryView{entry: *e}
	}
	return views
}

// Entry returns the entry registered under name.
func (a *Archive) Entry(name string) (EntryView, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i, ok := a.index[name]
	if !ok {
		return EntryView{}, false
	}
	return EntryView{entry: *a.entries[i]}, true
}

// Len returns the number of registered entries.
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Duplicates returns how many registrations were ignored because the name
// was already taken.
func (a *Archive) Duplicates() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.duplicates
}

// Clear removes every entry. It returns ErrGenerationActive while a
// generation is running.
func (a *Archive) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generating {
		return ErrGenerationActive
	}
	a.reset()
	return nil
}

// Close releases the checksum pool if the Archive created it.
// Close must not be called while a generation is active.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generating {
		return ErrGenerationActive
	}
	a.closed = true
	if a.ownsPool && a.pool != nil {
		a.pool.Terminate()
		a.pool = nil
	}
	return nil
}

func (a *Archive) insert(e *entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.generating {
		return ErrGenerationActive
	}
	if _, ok := a.index[e.name]; ok {
		a.duplicates++
		a.log().Warn("duplicate entry ignored", "name", e.name, "kind", e.kind)
		return nil
	}
	a.index[e.name] = len(a.entries)
	a.entries = append(a.entries, e)
	a.log().Debug("entry registered", "name", e.name, "kind", e.kind, "size", e.size)
	return nil
}

// reset empties the registry. Callers must hold a.mu.
func (a *Archive) reset() {
	clear(a.index)
	clear(a.entries)
	a.entries = a.entries[:0]
	a.duplicates = 0
}

// checksumPool returns the pool, creating an owned one on first use.
// Callers must hold a.mu.
func (a *Archive) checksumPool() (*checksum.Pool, error) {
	if a.pool == nil {
		if a.closed {
			return nil, checksum.ErrPoolClosed
		}
		a.pool = checksum.NewPool(
			checksum.WithWorkers(a.workers),
			checksum.WithLogger(a.log()),
		)
		a.ownsPool = true
	}
	return a.pool, nil
}

func (a *Archive) addConfig(opts []AddOption) addConfig {
	var cfg addConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.modTime.IsZero() {
		cfg.modTime = a.now()
	}
	return cfg
}

// normalizeName applies the naming rules shared by files and folders.
func (a *Archive) normalizeName(name string, dir bool) string {
	original := name
	if !utf8.ValidString(name) {
		name = strings.ToValidUTF8(name, "\uFFFD")
		a.log().Warn("invalid UTF-8 in entry name replaced", "name", name)
	}
	if strings.HasPrefix(name, "/") {
		name = strings.TrimLeft(name, "/")
		a.log().Warn("leading separator stripped from entry name", "name", original)
	}
	if dir {
		if name != "" && !strings.HasSuffix(name, "/") {
			name += "/"
		}
		return name
	}
	if strings.HasSuffix(name, "/") {
		name = strings.TrimRight(name, "/")
		a.log().Warn("trailing separator stripped from file name", "name", original)
	}
	return name
}

func validateName(name string) error {
	if name == "" || name == "/" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if len(name) > zipfmt.Uint16Max {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidName, len(name), zipfmt.Uint16Max)
	}
	return nil
}

// log returns the configured logger or a discard logger.
func (a *Archive) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.New(slog.DiscardHandler)
}
