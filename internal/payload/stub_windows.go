package payload

import (
	"encoding/binary"
	"io"
)

// fixStubWindows repairs the Windows stub's PE header, mirroring
// original_source/src/bundling.cpp's nvgt_compilation_output_windows::
// open_output_stream: NVGT ships its Windows stubs with the first two
// bytes zeroed out so the bundled stub isn't flagged by an AV scan
// before compilation finishes; the first real write to the copy
// restores them. If console is true the PE optional header's subsystem
// word (at the PE header offset, itself read from file offset 60, plus
// 92) is set to 3 (console) instead of the stub's default GUI value.
func fixStubWindows(f io.ReadWriteSeeker, console bool) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write([]byte("MZ")); err != nil {
		return err
	}
	if !console {
		return nil
	}
	if _, err := f.Seek(60, io.SeekStart); err != nil {
		return err
	}
	var peOffset int32
	if err := binary.Read(f, binary.LittleEndian, &peOffset); err != nil {
		return err
	}
	if _, err := f.Seek(int64(peOffset)+92, io.SeekStart); err != nil {
		return err
	}
	return binary.Write(f, binary.LittleEndian, uint16(3))
}

// peSectionPayloadStart walks a PE image's section table and returns
// the maximum (PointerToRawData + SizeOfRawData) across all sections,
// i.e. the first byte past every section's on-disk data, where the
// stub build's loader expects the payload to begin. Mirrors spec.md
// §4.8 step 2 of the loader path.
func peSectionPayloadStart(f io.ReadSeeker) (int64, error) {
	if _, err := f.Seek(60, io.SeekStart); err != nil {
		return 0, err
	}
	var peOffset int32
	if err := binary.Read(f, binary.LittleEndian, &peOffset); err != nil {
		return 0, err
	}

	// PE signature (4 bytes) + COFF file header (20 bytes); section
	// count is the COFF header's NumberOfSections at +2, optional
	// header size is at +16.
	if _, err := f.Seek(int64(peOffset)+4, io.SeekStart); err != nil {
		return 0, err
	}
	var coff struct {
		Machine              uint16
		NumberOfSections      uint16
		TimeDateStamp         uint32
		PointerToSymbolTable  uint32
		NumberOfSymbols       uint32
		SizeOfOptionalHeader  uint16
		Characteristics       uint16
	}
	if err := binary.Read(f, binary.LittleEndian, &coff); err != nil {
		return 0, ErrNoPE
	}

	sectionTableOffset := int64(peOffset) + 4 + 20 + int64(coff.SizeOfOptionalHeader)
	if _, err := f.Seek(sectionTableOffset, io.SeekStart); err != nil {
		return 0, err
	}

	var maxEnd int64
	type sectionHeader struct {
		Name                 [8]byte
		VirtualSize          uint32
		VirtualAddress       uint32
		SizeOfRawData        uint32
		PointerToRawData     uint32
		PointerToRelocations uint32
		PointerToLinenumbers uint32
		NumberOfRelocations  uint16
		NumberOfLinenumbers  uint16
		Characteristics      uint32
	}
	for i := 0; i < int(coff.NumberOfSections); i++ {
		var sh sectionHeader
		if err := binary.Read(f, binary.LittleEndian, &sh); err != nil {
			return 0, ErrNoPE
		}
		end := int64(sh.PointerToRawData) + int64(sh.SizeOfRawData)
		if end > maxEnd {
			maxEnd = end
		}
	}
	if maxEnd == 0 {
		return 0, ErrNoPE
	}
	return maxEnd, nil
}
