package payload

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, appDir, platform string, contents []byte) {
	t.Helper()
	stubDir := filepath.Join(appDir, "stub")
	if err := os.MkdirAll(stubDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	path := filepath.Join(stubDir, "nvgt_"+platform+".bin")
	if err := os.WriteFile(path, contents, 0644); err != nil {
		t.Fatalf("WriteFile stub: %v", err)
	}
}

func TestWriteThenLoadRoundTrip(t *testing.T) {
	appDir := t.TempDir()
	stubContents := []byte("FAKESTUBBYTES\x00\x00")
	writeStub(t, appDir, "linux", stubContents)

	outPath := filepath.Join(t.TempDir(), "app")
	manifest := []byte("manifest-bytes")
	props := []byte("properties-bytes")
	bytecode := []byte("this is the compiled bytecode payload, long enough to compress")

	w := &Writer{Platform: "linux"}
	stubSize, err := w.Write(appDir, outPath, manifest, props, 0x0102030405060708, bytecode)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if stubSize != int64(len(stubContents)) {
		t.Fatalf("stubSize = %d, want %d", stubSize, len(stubContents))
	}

	result, err := load(outPath, SectionLengths{ManifestLen: len(manifest), PropertyBlockLen: len(props)})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(result.Manifest) != string(manifest) {
		t.Errorf("Manifest = %q, want %q", result.Manifest, manifest)
	}
	if string(result.PropertyBlock) != string(props) {
		t.Errorf("PropertyBlock = %q, want %q", result.PropertyBlock, props)
	}
	if result.BuildTimestamp != 0x0102030405060708 {
		t.Errorf("BuildTimestamp = %x, want %x", result.BuildTimestamp, 0x0102030405060708)
	}
	got, err := io.ReadAll(result.Bytecode)
	if err != nil {
		t.Fatalf("read bytecode: %v", err)
	}
	if string(got) != string(bytecode) {
		t.Errorf("Bytecode = %q, want %q", got, bytecode)
	}
	if result.Bytecode.BytesRead() != int64(len(bytecode)) {
		t.Errorf("BytesRead() = %d, want %d (ResetCursor should zero it relative to bytecode start)", result.Bytecode.BytesRead(), len(bytecode))
	}
}

func TestWriteMissingStubFails(t *testing.T) {
	appDir := t.TempDir()
	w := &Writer{Platform: "linux"}
	_, err := w.Write(appDir, filepath.Join(t.TempDir(), "app"), nil, nil, 0, []byte("x"))
	if err == nil {
		t.Fatal("expected error for missing stub")
	}
}

func TestWriteWithEmbeddedPack(t *testing.T) {
	appDir := t.TempDir()
	writeStub(t, appDir, "linux", []byte("STUB"))

	packPath := filepath.Join(t.TempDir(), "data.dat")
	packBytes := []byte("pretend this is a whole pack container")
	if err := os.WriteFile(packPath, packBytes, 0644); err != nil {
		t.Fatalf("WriteFile pack: %v", err)
	}

	embeds := NewEmbedIndex()
	embeds.EmbedPack(packPath, "data")

	outPath := filepath.Join(t.TempDir(), "app")
	w := &Writer{Platform: "linux", Embeds: embeds}
	if _, err := w.Write(appDir, outPath, nil, nil, 42, []byte("bc")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	result, err := load(outPath, SectionLengths{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	name, offset, size, err := result.Embeds.ResolveEmbedPath("*data", outPath)
	if err != nil {
		t.Fatalf("ResolveEmbedPath: %v", err)
	}
	if name != outPath {
		t.Errorf("resolved filename = %q, want %q", name, outPath)
	}
	if size != int64(len(packBytes)) {
		t.Errorf("resolved size = %d, want %d", size, len(packBytes))
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got := make([]byte, size)
	if _, err := io.ReadFull(f, got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(got) != string(packBytes) {
		t.Errorf("embedded pack bytes = %q, want %q", got, packBytes)
	}
}

func TestResolveEmbedPathRejectsNonEmbedPath(t *testing.T) {
	embeds := NewEmbedIndex()
	if _, _, _, err := embeds.ResolveEmbedPath("plain/path.dat", "self"); err != ErrNotEmbed {
		t.Fatalf("err = %v, want ErrNotEmbed", err)
	}
}

// load is a test-local alias that works around Load's Windows-only PE
// walk: on the linux/darwin test platform Load already takes the
// trailing-4-bytes branch, so this simply documents that the exported
// entry point is what's under test here.
func load(path string, sections SectionLengths) (*Result, error) {
	return Load(path, sections)
}
