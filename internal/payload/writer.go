// Package payload implements the compiled-application payload format
// (§4.8 of SPEC_FULL.md): a platform stub binary with the platform-
// agnostic bytecode payload appended after it. Writer is the producer
// side (the non-stub compiler build); Load is the consumer side (the
// stub build, running as the compiled application itself).
package payload

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"nvgtcore/internal/crypto"
	"nvgtcore/internal/iostream"
)

// PostBuildHook wraps the finished binary in whatever per-platform
// packaging the caller needs (codesign, zip, .dmg, .apk sign). Per
// SPEC_FULL.md §12 those platform bundler SDK invocations are out of
// scope for this module; Writer only guarantees the hook runs last,
// with the fully-written binary already on disk at outputPath.
type PostBuildHook func(outputPath string) error

// defaultPostBuildRetries bounds how many times in total Write calls a
// failing PostBuild hook (a codesign/notarize/APK-sign shell-exec is the usual
// caller, and those occasionally fail on transient network or signing-
// service hiccups) before giving up and surfacing the error.
const defaultPostBuildRetries = 3

// Writer produces a compiled-application binary from a platform stub
// plus an already-compiled bytecode payload.
type Writer struct {
	// Platform names the stub variant to copy: "windows", "linux",
	// "darwin", "android", matching the <platform> segment of
	// <appdir>/stub/nvgt_<platform>[_<stub_name>].bin.
	Platform string
	// StubName selects a non-default stub variant (e.g. a headless
	// build), appended to the stub filename when non-empty.
	StubName string
	// WindowsConsole requests a console subsystem binary instead of
	// the stub's default GUI subsystem; Windows only.
	WindowsConsole bool
	// Embeds supplies the embedded-pack block written into the
	// payload. A nil Embeds writes an empty block (zero packs).
	Embeds *EmbedIndex
	// PostBuild runs last, once the binary is fully written, and
	// may rewrite outputPath in a wrapper (e.g. a .app or .apk);
	// its error aborts Write with no further cleanup performed.
	// PostBuild retries are paced by PostBuildLimiter rather than
	// run back-to-back, since a shell-exec failure here is usually
	// an external service rejecting rapid retries.
	PostBuild PostBuildHook
	// PostBuildLimiter paces PostBuild retries; a nil limiter runs
	// PostBuild once with no retry.
	PostBuildLimiter *rate.Limiter
	// PostBuildRetries overrides defaultPostBuildRetries when positive.
	PostBuildRetries int
}

// runPostBuild calls PostBuild up to PostBuildRetries times in total
// (paced by PostBuildLimiter), stopping at the first success.
func (w *Writer) runPostBuild(outputPath string) error {
	if w.PostBuild == nil {
		return nil
	}
	if w.PostBuildLimiter == nil {
		return w.PostBuild(outputPath)
	}
	retries := w.PostBuildRetries
	if retries <= 0 {
		retries = defaultPostBuildRetries
	}
	var err error
	for attempt := 0; attempt < retries; attempt++ {
		if waitErr := w.PostBuildLimiter.Wait(context.Background()); waitErr != nil {
			return waitErr
		}
		if err = w.PostBuild(outputPath); err == nil {
			return nil
		}
	}
	return fmt.Errorf("payload: post-build hook failed after %d attempts: %w", retries, err)
}

// StubPath resolves the stub binary location within appDir.
func (w *Writer) StubPath(appDir string) string {
	name := "nvgt_" + w.Platform
	if w.StubName != "" {
		name += "_" + w.StubName
	}
	return filepath.Join(appDir, "stub", name+".bin")
}

func (w *Writer) copyStub(stubPath, outputPath string) error {
	src, err := os.Open(stubPath)
	if err != nil {
		return fmt.Errorf("payload: %w: %v", ErrNoStub, err)
	}
	defer src.Close()

	dst, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("payload: create %q: %w", outputPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("payload: copy stub to %q: %w", outputPath, err)
	}
	if w.Platform != "windows" && w.Platform != "android" {
		if err := os.Chmod(outputPath, 0755); err != nil {
			return fmt.Errorf("payload: mark %q executable: %w", outputPath, err)
		}
	}
	return nil
}

// buildPlaintext concatenates the payload's plaintext sections in the
// order spec.md §4.8 step 4c names them. manifest and propertyBlock are
// opaque, pre-encoded byte sections the caller supplies: the plugin
// manifest format and the scripting engine's property enumeration are
// both external to this module (SPEC_FULL.md §12).
func buildPlaintext(manifest, propertyBlock []byte, buildTimestamp uint64, bytecode []byte) []byte {
	out := make([]byte, 0, len(manifest)+len(propertyBlock)+8+len(bytecode))
	out = append(out, manifest...)
	out = append(out, propertyBlock...)
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], buildTimestamp)
	out = append(out, ts[:]...)
	out = append(out, bytecode...)
	return out
}

// Write copies the platform stub to outputPath, applies platform
// fix-ups, and appends the encrypted, compressed bytecode payload. It
// returns the stub's size in bytes (the payload-start offset), which
// non-Windows platforms also record in the output's final 4 bytes.
func (w *Writer) Write(appDir, outputPath string, manifest, propertyBlock []byte, buildTimestamp uint64, bytecode []byte) (stubSize int64, err error) {
	stubPath := w.StubPath(appDir)
	if _, statErr := os.Stat(stubPath); statErr != nil {
		return 0, fmt.Errorf("payload: %w: %s", ErrNoStub, stubPath)
	}
	if err := w.copyStub(stubPath, outputPath); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(outputPath, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("payload: reopen %q: %w", outputPath, err)
	}
	defer f.Close()

	if w.Platform == "windows" {
		if err := fixStubWindows(f, w.WindowsConsole); err != nil {
			return 0, fmt.Errorf("payload: fix up windows stub: %w", err)
		}
	}

	stubSize, err = f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("payload: seek to stub end: %w", err)
	}

	embeds := w.Embeds
	if embeds == nil {
		embeds = NewEmbedIndex()
	}
	if err := embeds.WriteEmbeddedPacks(f); err != nil {
		return 0, err
	}

	plaintext := buildPlaintext(manifest, propertyBlock, buildTimestamp, bytecode)
	dw, err := iostream.NewDeflateWriter()
	if err != nil {
		return 0, fmt.Errorf("payload: start bytecode deflate: %w", err)
	}
	if _, err := dw.Write(plaintext); err != nil {
		return 0, fmt.Errorf("payload: deflate bytecode: %w", err)
	}
	deflated, err := dw.Finish()
	if err != nil {
		return 0, fmt.Errorf("payload: finish bytecode deflate: %w", err)
	}

	ciphertext, err := crypto.EncryptBytecode(deflated)
	if err != nil {
		return 0, fmt.Errorf("payload: encrypt bytecode: %w", err)
	}

	masked := uint64(len(ciphertext)) ^ bytecodeNumberXOR
	if err := writeVarint(f, masked); err != nil {
		return 0, fmt.Errorf("payload: write bytecode length: %w", err)
	}
	if _, err := f.Write(ciphertext); err != nil {
		return 0, fmt.Errorf("payload: write bytecode: %w", err)
	}

	if w.Platform != "windows" {
		if err := binary.Write(f, binary.LittleEndian, uint32(stubSize)); err != nil {
			return 0, fmt.Errorf("payload: write trailer offset: %w", err)
		}
	}

	if err := w.runPostBuild(outputPath); err != nil {
		return 0, err
	}

	return stubSize, nil
}
