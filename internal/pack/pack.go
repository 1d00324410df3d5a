// Package pack implements the NVGT pack container: a 64-byte-headered,
// checksummed, optionally-encrypted index of named byte streams
// (SPEC_FULL.md §3).
package pack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"nvgtcore/internal/crypto"
	"nvgtcore/internal/iostream"
	"nvgtcore/internal/metrics"
)

const (
	headerSize  = 64
	magic       = 0xDADFADED
	maxNameLen  = 65535
)

// tocEntry is a single table-of-contents record; offset is derived, not
// stored, as the running sum of prior sizes starting at headerSize.
type tocEntry struct {
	name   string
	offset int64
	size   int64
}

// Mode distinguishes the two operating modes a Pack may be opened in.
type Mode int

const (
	ModeClosed Mode = iota
	ModeRead
	ModeWrite
)

// Pack is either a read-only index over an existing container or a
// write-only builder accumulating entries before finalisation. A Pack
// is never both; Mode reports which.
type Pack struct {
	mode      Mode
	filename  string
	encrypted bool

	// write mode
	sink         io.WriteSeeker
	sinkClose    io.Closer
	fileForClose *os.File // the raw file underlying sink, always closed last
	dataSize     int64    // bytes written so far, header included; the next entry's offset
	order        []*tocEntry
	byName       map[string]*tocEntry

	// read mode
	src         readSeekCloser
	logicalSize int64 // size of the decrypted/unsectioned plaintext stream
	toc         map[string]tocEntry
}

// Stats reports path, entry count, logical size, and whether the pack is
// cipher-wrapped, for a diagnostics surface to display without reaching
// into the pack's internals. The size is that of the plaintext stream
// recorded by Open (without the cipher's nonce and magic); it is zero
// for a pack opened with Create.
func (p *Pack) Stats() (path string, fileCount int, totalSize int64, encrypted bool) {
	return p.filename, p.GetFileCount(), p.logicalSize, p.encrypted
}

type readSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
}

// Create opens filename for writing. If key is non-empty the sink is
// wrapped in a ChaCha20 encryption stream (§4.3).
func Create(filename string, key string) (p *Pack, err error) {
	defer func() { metrics.RecordPackIO("create", err) }()

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("pack: create %q: %w", filename, err)
	}

	p = &Pack{
		mode:      ModeWrite,
		filename:  filename,
		encrypted: key != "",
		byName:    make(map[string]*tocEntry),
	}

	var sink io.WriteSeeker = f
	if key != "" {
		cw, err := crypto.NewChaChaWriter(f, []byte(key), nil)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("pack: wrap encryption: %w", err)
		}
		sink = cw
		p.sinkClose = cw
	}
	p.sink = sink

	blank := make([]byte, headerSize)
	if _, err := sink.Write(blank); err != nil {
		f.Close()
		return nil, fmt.Errorf("pack: write header: %w", err)
	}
	p.dataSize = headerSize
	// f itself is closed by Close(); remember it regardless of wrapping.
	p.fileForClose = f
	return p, nil
}

// Open opens filename for reading. If packOffset and packSize are both
// zero, filename may be rewritten by an embedded-pack resolver before
// this call (see internal/payload.ResolveEmbedPath); Open itself just
// honours whatever offset/size it's given.
func Open(filename string, key string, packOffset, packSize int64) (p *Pack, err error) {
	defer func() { metrics.RecordPackIO("open", err) }()

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("pack: open %q: %w", filename, err)
	}

	p = &Pack{mode: ModeRead, filename: filename, encrypted: key != "", toc: make(map[string]tocEntry)}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pack: stat %q: %w", filename, err)
	}
	effectiveSize := fi.Size()

	var src readSeekCloser = f
	if packOffset != 0 || packSize != 0 {
		size := packSize
		if size == 0 {
			size = fi.Size() - packOffset
		}
		effectiveSize = size
		src = &sectionReadCloser{SectionReader: iostream.NewSectionReader(f, packOffset, size), under: f}
	}
	if key != "" {
		cr, err := crypto.NewChaChaReader(src, []byte(key))
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("pack: wrap decryption: %w", err)
		}
		src = &chachaReadCloser{ChaChaReader: cr, under: src}
		effectiveSize -= chaChaOverhead
	}
	p.src = src
	p.logicalSize = effectiveSize

	if err := p.load(); err != nil {
		src.Close()
		return nil, err
	}
	return p, nil
}

// chaChaOverhead is the number of on-disk bytes (24-byte nonce + 4-byte
// encrypted magic) that precede the logical plaintext stream when a pack
// is wrapped in ChaCha20 encryption, per spec.md §4.3.
const chaChaOverhead = 24 + 4

// sectionReadCloser adapts iostream.SectionReader (which already owns
// its source and closes it) to readSeekCloser.
type sectionReadCloser struct {
	*iostream.SectionReader
	under *os.File
}

func (s *sectionReadCloser) Close() error { return s.under.Close() }

type chachaReadCloser struct {
	*crypto.ChaChaReader
	under readSeekCloser
}

func (c *chachaReadCloser) Close() error {
	c.ChaChaReader.Close()
	return c.under.Close()
}

// load parses the header and TOC of an already-opened read-mode pack,
// per spec.md §4.1's loading algorithm.
func (p *Pack) load() error {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(p.src, hdr[:]); err != nil {
		return fmt.Errorf("pack: read header: %w", ErrFormat)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != magic {
		return ErrFormat
	}
	tocOffset := int64(binary.LittleEndian.Uint64(hdr[4:12]))
	storedCRC := binary.LittleEndian.Uint32(hdr[12:16])

	// tocOffset == logicalSize is valid: it is the zero-file pack, whose
	// TOC region is empty and whose file is exactly the header.
	if tocOffset < headerSize || tocOffset > p.logicalSize {
		return ErrFormat
	}

	if _, err := p.src.Seek(tocOffset, io.SeekStart); err != nil {
		return fmt.Errorf("pack: seek to TOC: %w", err)
	}

	cr := newCRCReader(p.src)
	currentOffset := int64(headerSize)
	for {
		// A clean end-of-TOC is signalled by hitting EOF exactly on an
		// entry boundary, before any byte of the next entry is read.
		var first [1]byte
		n, err := cr.Read(first[:])
		if n == 0 && err == io.EOF {
			break
		}
		if err != nil {
			return ErrFormat
		}

		nameLen, err := readVarintContinuation(cr, first[0])
		if err != nil {
			return ErrFormat
		}
		if nameLen > maxNameLen {
			return ErrFormat
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(cr, nameBytes); err != nil {
			return ErrFormat
		}
		name := string(nameBytes)
		if !utf8.ValidString(name) {
			return ErrInvalidUTF8
		}
		if _, dup := p.toc[name]; dup {
			return ErrDuplicate
		}
		size, err := readVarint(cr)
		if err != nil {
			return ErrFormat
		}
		p.toc[name] = tocEntry{name: name, offset: currentOffset, size: int64(size)}
		currentOffset += int64(size)
	}
	if currentOffset != tocOffset {
		return ErrFormat
	}
	if cr.Sum32() != storedCRC {
		return ErrBadChecksum
	}
	return nil
}

// AddFile reads path from the local filesystem and appends it under
// internalName.
func (p *Pack) AddFile(path, internalName string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("pack: open %q: %w", path, err)
	}
	defer f.Close()
	return p.AddStream(internalName, f)
}

// AddMemory appends an in-memory byte slice under internalName.
func (p *Pack) AddMemory(internalName string, data []byte) error {
	return p.AddStream(internalName, bytes.NewReader(data))
}

// AddStream copies input to the data region and records a TOC entry.
// Fails on duplicate internal name, non-UTF-8 name, overlong name, or
// I/O error.
func (p *Pack) AddStream(internalName string, input io.Reader) (err error) {
	defer func() { metrics.RecordPackIO("add", err) }()

	if p.mode != ModeWrite {
		return ErrWrongMode
	}
	if len(internalName) > maxNameLen {
		return ErrNameTooLong
	}
	if !utf8.ValidString(internalName) {
		return ErrInvalidUTF8
	}
	if _, dup := p.byName[internalName]; dup {
		return ErrDuplicate
	}

	n, err := io.Copy(p.sink, input)
	if err != nil {
		return fmt.Errorf("pack: write %q: %w", internalName, err)
	}

	entry := &tocEntry{name: internalName, offset: p.dataSize, size: n}
	p.byName[internalName] = entry
	p.order = append(p.order, entry)
	p.dataSize += n
	return nil
}

// FileExists reports whether name is present in the pack.
func (p *Pack) FileExists(name string) bool {
	if p.mode == ModeWrite {
		_, ok := p.byName[name]
		return ok
	}
	_, ok := p.toc[name]
	return ok
}

// GetFileSize returns the recorded size of name, or -1 if not found.
func (p *Pack) GetFileSize(name string) int64 {
	if p.mode == ModeWrite {
		if e, ok := p.byName[name]; ok {
			return e.size
		}
		return -1
	}
	if e, ok := p.toc[name]; ok {
		return e.size
	}
	return -1
}

// GetFileCount returns the number of entries currently in the pack.
func (p *Pack) GetFileCount() int {
	if p.mode == ModeWrite {
		return len(p.order)
	}
	return len(p.toc)
}

// ListFiles returns all internal names. In write mode, insertion order
// is preserved; in read mode, order is unspecified.
func (p *Pack) ListFiles() []string {
	if p.mode == ModeWrite {
		names := make([]string, len(p.order))
		for i, e := range p.order {
			names[i] = e.name
		}
		return names
	}
	names := make([]string, 0, len(p.toc))
	for name := range p.toc {
		names = append(names, name)
	}
	return names
}

// GetFile returns a stream reading exactly name's bytes, starting at
// logical offset zero, composed as: base source stream -> bounded
// section reader over (entry.offset, entry.size).
func (p *Pack) GetFile(name string) (*iostream.SectionReader, error) {
	if p.mode != ModeRead {
		return nil, ErrWrongMode
	}
	e, ok := p.toc[name]
	if !ok {
		return nil, fmt.Errorf("pack: %q: %w", name, ErrNotFound)
	}
	return iostream.NewSectionReader(p.src, e.offset, e.size), nil
}

// ExtractFile copies name's bytes to outputPath.
func (p *Pack) ExtractFile(name, outputPath string) (err error) {
	defer func() { metrics.RecordPackIO("extract", err) }()

	r, err := p.GetFile(name)
	if err != nil {
		return err
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("pack: create %q: %w", outputPath, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("pack: extract %q: %w", name, err)
	}
	return nil
}

// Close finalises a write-mode pack (writing the TOC and rewriting the
// header) or releases a read-mode pack's resources.
func (p *Pack) Close() (err error) {
	defer func() { metrics.RecordPackIO("close", err) }()

	switch p.mode {
	case ModeWrite:
		return p.closeWrite()
	case ModeRead:
		p.mode = ModeClosed
		return p.src.Close()
	default:
		return nil
	}
}

func (p *Pack) closeWrite() error {
	defer func() { p.mode = ModeClosed }()

	tocOffset := p.dataSize
	cw := newCRCWriter(p.sink)
	for _, e := range p.order {
		if err := writeVarint(cw, uint64(len(e.name))); err != nil {
			return fmt.Errorf("pack: write TOC name length: %w", err)
		}
		if _, err := cw.Write([]byte(e.name)); err != nil {
			return fmt.Errorf("pack: write TOC name: %w", err)
		}
		if err := writeVarint(cw, uint64(e.size)); err != nil {
			return fmt.Errorf("pack: write TOC size: %w", err)
		}
	}
	checksum := cw.Sum32()

	if _, err := p.sink.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("pack: seek to header: %w", err)
	}
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	binary.LittleEndian.PutUint64(hdr[4:12], uint64(tocOffset))
	binary.LittleEndian.PutUint32(hdr[12:16], checksum)
	if _, err := p.sink.Write(hdr[:]); err != nil {
		return fmt.Errorf("pack: rewrite header: %w", err)
	}

	if p.sinkClose != nil {
		if err := p.sinkClose.Close(); err != nil {
			return err
		}
	}
	if p.fileForClose != nil {
		return p.fileForClose.Close()
	}
	return nil
}
