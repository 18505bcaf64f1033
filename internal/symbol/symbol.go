// Package symbol maps runtime instruction pointers observed in a target
// process to resolved source locations, implementing spec.md §4.4: a
// memory-map lookup to reverse position-independent loading, followed by
// a DWARF lookup cached per binary and per instruction pointer.
package symbol

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// ResolvedFrame is one entry of a symbolized call stack (spec.md §3).
type ResolvedFrame struct {
	InstructionPointer uint64
	BinaryIdentity     string
	FileOffset         uint64
	FunctionName       string
	SourceFile         string
	SourceLine         int
	HasDebugInfo       bool
}

// Symbolizer resolves instruction pointers against a snapshot of the
// target's memory map and the DWARF debug information of the binaries it
// maps in. It is safe for concurrent read access once constructed; the
// pump goroutine is the sole writer (first-miss cache population).
type Symbolizer struct {
	maps []MapEntry

	mu       sync.RWMutex
	binaries map[string]*binaryIndex
	cache    map[uint64]ResolvedFrame

	resolved  int64 // atomic: total frames resolved
	withDebug int64 // atomic: frames resolved with has_debug_info
}

// NewSymbolizer snapshots the target's memory map and returns a
// Symbolizer ready to resolve instruction pointers against it. DWARF
// parsing of individual binaries is deferred until first use (spec.md
// §4.4 step 3).
func NewSymbolizer(pid int) (*Symbolizer, error) {
	maps, err := ParseMaps(pid)
	if err != nil {
		return nil, err
	}
	return &Symbolizer{
		maps:     maps,
		binaries: make(map[string]*binaryIndex),
		cache:    make(map[uint64]ResolvedFrame),
	}, nil
}

// Resolve implements the five-step algorithm of spec.md §4.4.
func (s *Symbolizer) Resolve(ip uint64) ResolvedFrame {
	s.mu.RLock()
	if f, ok := s.cache[ip]; ok {
		s.mu.RUnlock()
		return f
	}
	s.mu.RUnlock()

	frame := s.resolveUncached(ip)

	s.mu.Lock()
	s.cache[ip] = frame
	s.mu.Unlock()

	atomic.AddInt64(&s.resolved, 1)
	if frame.HasDebugInfo {
		atomic.AddInt64(&s.withDebug, 1)
	}
	return frame
}

func (s *Symbolizer) resolveUncached(ip uint64) ResolvedFrame {
	entry, ok := findMap(s.maps, ip)
	if !ok {
		return ResolvedFrame{
			InstructionPointer: ip,
			BinaryIdentity:     "[unknown]",
			FunctionName:       fmt.Sprintf("0x%x", ip),
			HasDebugInfo:       false,
		}
	}

	fileOffset := ip - entry.Start + entry.FileOffset

	idx, err := s.binaryFor(entry.Path)
	if err != nil {
		return ResolvedFrame{
			InstructionPointer: ip,
			BinaryIdentity:     entry.Path,
			FileOffset:         fileOffset,
			FunctionName:       degradedLabel(entry.Path),
			HasDebugInfo:       false,
		}
	}

	fn, file, line, ok := idx.lookup(fileOffset)
	if !ok {
		return ResolvedFrame{
			InstructionPointer: ip,
			BinaryIdentity:     entry.Path,
			FileOffset:         fileOffset,
			FunctionName:       degradedLabel(entry.Path),
			HasDebugInfo:       false,
		}
	}

	return ResolvedFrame{
		InstructionPointer: ip,
		BinaryIdentity:     entry.Path,
		FileOffset:         fileOffset,
		FunctionName:       demangle(fn),
		SourceFile:         file,
		SourceLine:         line,
		HasDebugInfo:       true,
	}
}

// binaryFor returns the cached DWARF index for path, parsing it on first
// request (spec.md §4.4 step 3: "If the binary has not yet been opened,
// parse its debug sections on first request and cache the index").
func (s *Symbolizer) binaryFor(path string) (*binaryIndex, error) {
	s.mu.RLock()
	idx, ok := s.binaries[path]
	s.mu.RUnlock()
	if ok {
		return idx, nil
	}

	idx, err := openBinary(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.binaries[path]; ok {
		// Lost a race with another first-miss; keep the first winner.
		return existing, nil
	}
	if err != nil {
		// Cache the failure too so repeated misses don't keep re-opening
		// an unreadable or stripped binary.
		s.binaries[path] = &binaryIndex{path: path, openErr: err}
		return nil, err
	}
	s.binaries[path] = idx
	return idx, nil
}

// DebugInfoFraction returns the share of resolved frames, over the
// session so far, that carried DWARF debug information (spec.md §4.4
// Observability, §7, §8 scenario F).
func (s *Symbolizer) DebugInfoFraction() float64 {
	resolved := atomic.LoadInt64(&s.resolved)
	if resolved == 0 {
		return 1
	}
	withDebug := atomic.LoadInt64(&s.withDebug)
	return float64(withDebug) / float64(resolved)
}

// degradedLabel derives a best-effort function label from a binary path
// when no DWARF data is available, recognizing common library path
// prefixes (spec.md §4.4 step 5).
func degradedLabel(path string) string {
	switch {
	case containsAny(path, "/libc.so", "/libc-"):
		return "[libc]"
	case containsAny(path, "/libpthread"):
		return "[libpthread]"
	case containsAny(path, "/ld-linux", "/ld-musl"):
		return "[loader]"
	case containsAny(path, ".so"):
		return "[shared library]"
	default:
		return "[stripped]"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(sub) <= len(s) && indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// binaryIndex is a parsed, cached DWARF view of one binary on disk.
type binaryIndex struct {
	path      string
	openErr   error
	elfFile   *elf.File
	dwarfData *dwarf.Data

	funcs []funcRange // sorted by low
	lines []lineRow   // sorted by pc
}

type funcRange struct {
	low, high uint64
	name      string
}

type lineRow struct {
	pc   uint64
	file string
	line int
}

// openBinary parses a binary's ELF and DWARF sections, building a sorted
// function-range index and a sorted line-number index so lookups are
// O(log n) thereafter.
func openBinary(path string) (*binaryIndex, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symbol: open elf %s: %w", path, err)
	}

	idx := &binaryIndex{path: path, elfFile: f}

	dw, err := f.DWARF()
	if err != nil {
		// Stripped binary: not an error, just no debug info available.
		return idx, nil
	}
	idx.dwarfData = dw

	r := dw.Reader()
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		switch entry.Tag {
		case dwarf.TagSubprogram:
			low, okLow := entry.Val(dwarf.AttrLowpc).(uint64)
			name, _ := entry.Val(dwarf.AttrName).(string)
			if okLow && name != "" {
				high := highPC(entry, low)
				idx.funcs = append(idx.funcs, funcRange{low: low, high: high, name: name})
			}
		case dwarf.TagCompileUnit:
			lr, err := dw.LineReader(entry)
			if err == nil && lr != nil {
				collectLines(lr, &idx.lines)
			}
		}
	}

	sort.Slice(idx.funcs, func(i, j int) bool { return idx.funcs[i].low < idx.funcs[j].low })
	sort.Slice(idx.lines, func(i, j int) bool { return idx.lines[i].pc < idx.lines[j].pc })

	return idx, nil
}

// highPC resolves DW_AT_high_pc, which the DWARF standard allows to be
// either an absolute address or an offset from low_pc depending on its
// class; debug/dwarf normalizes class but not the offset-vs-absolute
// convention, so both forms are handled here.
func highPC(entry *dwarf.Entry, low uint64) uint64 {
	field := entry.AttrField(dwarf.AttrHighpc)
	if field == nil {
		return low
	}
	switch v := field.Val.(type) {
	case uint64:
		if field.Class == dwarf.ClassAddress {
			return v
		}
		return low + v
	case int64:
		return low + uint64(v)
	default:
		return low
	}
}

func collectLines(lr *dwarf.LineReader, out *[]lineRow) {
	var entry dwarf.LineEntry
	for {
		if err := lr.Next(&entry); err != nil {
			return
		}
		if entry.IsStmt && entry.File != nil {
			*out = append(*out, lineRow{pc: entry.Address, file: entry.File.Name, line: entry.Line})
		}
	}
}

// lookup resolves a file offset to a function name and source location.
// The DWARF addresses emitted by the linker coincide with the ELF
// virtual addresses; for a position-independent executable loaded with
// its first segment at vaddr 0, that is exactly the file offset computed
// in Resolve, so no further base adjustment is needed here.
func (b *binaryIndex) lookup(fileOffset uint64) (function, file string, line int, ok bool) {
	if b.dwarfData == nil {
		return "", "", 0, false
	}

	fn, fnOK := findFunc(b.funcs, fileOffset)
	file, line, lineOK := findLine(b.lines, fileOffset)

	if !fnOK && !lineOK {
		return "", "", 0, false
	}
	if !fnOK {
		fn = "??"
	}
	return fn, file, line, true
}

func findFunc(funcs []funcRange, pc uint64) (string, bool) {
	i := sort.Search(len(funcs), func(i int) bool { return funcs[i].low > pc })
	if i == 0 {
		return "", false
	}
	f := funcs[i-1]
	if pc >= f.low && pc < f.high {
		return f.name, true
	}
	return "", false
}

func findLine(lines []lineRow, pc uint64) (string, int, bool) {
	i := sort.Search(len(lines), func(i int) bool { return lines[i].pc > pc })
	if i == 0 {
		return "", 0, false
	}
	row := lines[i-1]
	return row.file, row.line, true
}
