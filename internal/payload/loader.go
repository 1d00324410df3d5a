package payload

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"nvgtcore/internal/crypto"
	"nvgtcore/internal/iostream"
	"nvgtcore/internal/metrics"
)

// Result is everything Load recovers from a compiled binary's payload,
// per spec.md §4.8 step 5. PropertyBlock and Manifest are left opaque
// (the scripting engine and plugin system that interpret them are
// external to this module, SPEC_FULL.md §12); Bytecode is an
// *iostream.InflateStream positioned at the start of the raw bytecode
// section, ready for the scripting engine's load-bytecode call.
type Result struct {
	Manifest       []byte
	PropertyBlock  []byte
	BuildTimestamp uint64
	Bytecode       *iostream.InflateStream
	Embeds         *EmbedIndex
}

// ManifestLen and PropertyBlockLen tell Load where the opaque manifest
// and property sections end within the decompressed plaintext; both
// are determined by formats external to this module (SPEC_FULL.md
// §12), so a caller that knows how to parse them passes their lengths
// explicitly rather than Load guessing framing it cannot interpret.
type SectionLengths struct {
	ManifestLen      int
	PropertyBlockLen int
}

// Load opens selfPath (normally the running executable, os.Args[0])
// and recovers its appended payload: on Windows it walks the PE
// section table to find the payload start; elsewhere it reads the
// trailing 4-byte little-endian offset spec.md §4.8 step 5 describes.
func Load(selfPath string, sections SectionLengths) (*Result, error) {
	started := time.Now()
	defer func() { metrics.RecordPayloadLoad(time.Since(started)) }()

	f, err := os.Open(selfPath)
	if err != nil {
		return nil, fmt.Errorf("payload: open %q: %w", selfPath, err)
	}
	defer f.Close()

	start, err := payloadStart(f)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("payload: seek to payload start: %w", err)
	}

	embeds := NewEmbedIndex()
	if err := embeds.LoadRuntimeEmbeds(f); err != nil {
		return nil, err
	}

	maskedLen, err := readVarint(f)
	if err != nil {
		return nil, fmt.Errorf("payload: read bytecode length: %w", err)
	}
	ciphertextLen := maskedLen ^ bytecodeNumberXOR

	ciphertext := make([]byte, ciphertextLen)
	if _, err := io.ReadFull(f, ciphertext); err != nil {
		return nil, fmt.Errorf("payload: read bytecode: %w", err)
	}

	plaintext, err := crypto.DecryptBytecode(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("payload: decrypt bytecode: %w", err)
	}

	inflated := iostream.NewInflateStream(plaintext)
	manifest := make([]byte, sections.ManifestLen)
	if _, err := io.ReadFull(inflated, manifest); err != nil {
		return nil, fmt.Errorf("payload: read plugin manifest: %w", err)
	}
	propertyBlock := make([]byte, sections.PropertyBlockLen)
	if _, err := io.ReadFull(inflated, propertyBlock); err != nil {
		return nil, fmt.Errorf("payload: read engine properties: %w", err)
	}
	var ts [8]byte
	if _, err := io.ReadFull(inflated, ts[:]); err != nil {
		return nil, fmt.Errorf("payload: read build timestamp: %w", err)
	}
	inflated.ResetCursor()

	return &Result{
		Manifest:       manifest,
		PropertyBlock:  propertyBlock,
		BuildTimestamp: binary.LittleEndian.Uint64(ts[:]),
		Bytecode:       inflated,
		Embeds:         embeds,
	}, nil
}

// payloadStart implements spec.md §4.8 step 2: on Windows, the maximum
// (PointerToRawData + SizeOfRawData) across PE sections; elsewhere,
// the trailing 4-byte little-endian offset the writer appended.
func payloadStart(f *os.File) (int64, error) {
	if runtime.GOOS == "windows" {
		return peSectionPayloadStart(f)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("payload: stat: %w", err)
	}
	if info.Size() < 4 {
		return 0, ErrFormat
	}
	if _, err := f.Seek(-4, io.SeekEnd); err != nil {
		return 0, err
	}
	var offset uint32
	if err := binary.Read(f, binary.LittleEndian, &offset); err != nil {
		return 0, err
	}
	return int64(offset), nil
}
