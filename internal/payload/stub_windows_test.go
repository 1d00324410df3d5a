package payload

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// memFile adapts a bytes.Buffer's backing slice to io.ReadWriteSeeker
// for exercising fixStubWindows/peSectionPayloadStart without a real
// file.
type memFile struct {
	data []byte
	pos  int64
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		m.pos = offset
	case 1:
		m.pos += offset
	case 2:
		m.pos = int64(len(m.data)) + offset
	}
	return m.pos, nil
}
func (m *memFile) Read(p []byte) (int, error) {
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}
func (m *memFile) Write(p []byte) (int, error) {
	need := int(m.pos) + len(p)
	if need > len(m.data) {
		grown := make([]byte, need)
		copy(grown, m.data)
		m.data = grown
	}
	n := copy(m.data[m.pos:], p)
	m.pos += int64(n)
	return n, nil
}

func TestFixStubWindowsRestoresMZ(t *testing.T) {
	f := &memFile{data: []byte{0x00, 0x00, 0xAA, 0xBB}}
	if err := fixStubWindows(f, false); err != nil {
		t.Fatalf("fixStubWindows: %v", err)
	}
	if f.data[0] != 'M' || f.data[1] != 'Z' {
		t.Fatalf("first two bytes = %q, want MZ", f.data[:2])
	}
}

// buildSyntheticPE constructs the minimal byte layout
// peSectionPayloadStart walks: a PE offset at file offset 60, a COFF
// header at that offset+4 naming one section, and that section's
// header immediately after the (zero-length, for simplicity)
// optional header.
func buildSyntheticPE(sectionPointerToRawData, sectionSizeOfRawData uint32) []byte {
	const peOffset = 128
	buf := make([]byte, peOffset+4+20+40)
	binary.LittleEndian.PutUint32(buf[60:], uint32(peOffset))

	coff := buf[peOffset+4:]
	binary.LittleEndian.PutUint16(coff[2:], 1) // NumberOfSections
	binary.LittleEndian.PutUint16(coff[16:], 0) // SizeOfOptionalHeader

	sectionTable := buf[peOffset+4+20:]
	binary.LittleEndian.PutUint32(sectionTable[16:], sectionSizeOfRawData)
	binary.LittleEndian.PutUint32(sectionTable[20:], sectionPointerToRawData)
	return buf
}

func TestPeSectionPayloadStartFindsMaxSectionEnd(t *testing.T) {
	buf := buildSyntheticPE(512, 1024)
	f := &memFile{data: buf}
	got, err := peSectionPayloadStart(f)
	if err != nil {
		t.Fatalf("peSectionPayloadStart: %v", err)
	}
	if got != 512+1024 {
		t.Fatalf("payload start = %d, want %d", got, 512+1024)
	}
}

func TestFixStubWindowsSetsConsoleSubsystem(t *testing.T) {
	buf := buildSyntheticPE(512, 1024)
	f := &memFile{data: append([]byte{0, 0}, buf[2:]...)}
	if err := fixStubWindows(f, true); err != nil {
		t.Fatalf("fixStubWindows: %v", err)
	}
	var peOffset int32
	binary.Read(bytes.NewReader(f.data[60:]), binary.LittleEndian, &peOffset)
	subsystem := binary.LittleEndian.Uint16(f.data[peOffset+92:])
	if subsystem != 3 {
		t.Fatalf("subsystem = %d, want 3 (console)", subsystem)
	}
}
