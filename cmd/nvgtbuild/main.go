// Command nvgtbuild produces a compiled-application payload binary
// (spec.md §4.8): a platform stub with an appended, encrypted and
// compressed bytecode payload. The bytecode itself, and the plugin
// manifest / engine-property sections that precede it in the payload
// plaintext, are supplied as pre-built files — the scripting engine
// and plugin system that produce them are out of scope for this
// module (SPEC_FULL.md §12).
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"nvgtcore/internal/payload"
)

func main() {
	appDir := flag.String("appdir", ".", "directory containing stub/")
	out := flag.String("out", "", "output binary path")
	platform := flag.String("platform", "linux", "target platform: windows, linux, darwin, android")
	stubName := flag.String("stub-name", "", "stub variant suffix (optional)")
	console := flag.Bool("console", false, "windows: request a console subsystem binary")
	manifestPath := flag.String("manifest", "", "path to the pre-built plugin manifest (optional)")
	propertiesPath := flag.String("properties", "", "path to the pre-built engine-property block (optional)")
	bytecodePath := flag.String("bytecode", "", "path to the compiled bytecode")
	embedName := flag.String("embed-name", "", "name to embed a pack container under (optional)")
	embedPath := flag.String("embed-pack", "", "path to the pack container to embed (optional)")
	flag.Parse()

	if *out == "" || *bytecodePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(buildArgs{
		appDir:         *appDir,
		out:            *out,
		platform:       *platform,
		stubName:       *stubName,
		console:        *console,
		manifestPath:   *manifestPath,
		propertiesPath: *propertiesPath,
		bytecodePath:   *bytecodePath,
		embedName:      *embedName,
		embedPath:      *embedPath,
	}); err != nil {
		errorExit(err)
	}
}

type buildArgs struct {
	appDir, out, platform, stubName                string
	console                                         bool
	manifestPath, propertiesPath, bytecodePath      string
	embedName, embedPath                            string
}

func run(a buildArgs) error {
	manifest, err := readOptional(a.manifestPath)
	if err != nil {
		return errors.Wrap(err, "read manifest")
	}
	properties, err := readOptional(a.propertiesPath)
	if err != nil {
		return errors.Wrap(err, "read engine properties")
	}
	bytecode, err := os.ReadFile(a.bytecodePath)
	if err != nil {
		return errors.Wrapf(err, "read bytecode %q", a.bytecodePath)
	}

	var embeds *payload.EmbedIndex
	if a.embedName != "" && a.embedPath != "" {
		embeds = payload.NewEmbedIndex()
		embeds.EmbedPack(a.embedPath, a.embedName)
	}

	w := &payload.Writer{
		Platform:         a.platform,
		StubName:         a.stubName,
		WindowsConsole:   a.console,
		Embeds:           embeds,
		PostBuildLimiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}

	stubSize, err := w.Write(a.appDir, a.out, manifest, properties, uint64(time.Now().Unix()), bytecode)
	if err != nil {
		return errors.Wrap(err, "write payload")
	}

	fmt.Printf("wrote %s, stub size %d\n", a.out, stubSize)
	return nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// errorExit prints err with its pkg/errors stack trace (%+v) rather
// than just its message, since a build failure is rare enough that the
// extra diagnostic detail is worth the noise.
func errorExit(err error) {
	fmt.Fprintf(os.Stderr, "nvgtbuild: %+v\n", err)
	os.Exit(1)
}
