// Command nvgtpack creates, lists, and extracts NVGT pack containers
// (spec.md §3/§4.1/§6).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"nvgtcore/internal/pack"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  nvgtpack create -out OUT.dat [-key KEY] FILE...
  nvgtpack list -in IN.dat [-key KEY]
  nvgtpack extract -in IN.dat [-key KEY] -name NAME -out OUT
  nvgtpack add -in IN.dat [-key KEY] FILE...`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "extract":
		err = runExtract(os.Args[2:])
	case "add":
		err = runAdd(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("nvgtpack: %v", err)
	}
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	out := fs.String("out", "", "output pack path")
	key := fs.String("key", "", "encryption key (empty = unencrypted)")
	fs.Parse(args)
	if *out == "" || fs.NArg() == 0 {
		usage()
	}

	p, err := pack.Create(*out, *key)
	if err != nil {
		return fmt.Errorf("create %q: %w", *out, err)
	}
	for _, path := range fs.Args() {
		if err := p.AddFile(path, filepath.Base(path)); err != nil {
			p.Close()
			return fmt.Errorf("add %q: %w", path, err)
		}
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("finalize %q: %w", *out, err)
	}
	fmt.Printf("wrote %s (%d files)\n", *out, fs.NArg())
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	in := fs.String("in", "", "pack path")
	key := fs.String("key", "", "decryption key")
	fs.Parse(args)
	if *in == "" {
		usage()
	}

	p, err := pack.Open(*in, *key, 0, 0)
	if err != nil {
		return fmt.Errorf("open %q: %w", *in, err)
	}
	defer p.Close()
	for _, name := range p.ListFiles() {
		fmt.Printf("%10d  %s\n", p.GetFileSize(name), name)
	}
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	in := fs.String("in", "", "pack path")
	key := fs.String("key", "", "decryption key")
	name := fs.String("name", "", "internal file name")
	out := fs.String("out", "", "output file path")
	fs.Parse(args)
	if *in == "" || *name == "" || *out == "" {
		usage()
	}

	p, err := pack.Open(*in, *key, 0, 0)
	if err != nil {
		return fmt.Errorf("open %q: %w", *in, err)
	}
	defer p.Close()
	if err := p.ExtractFile(*name, *out); err != nil {
		return fmt.Errorf("extract %q: %w", *name, err)
	}
	fmt.Printf("extracted %s -> %s\n", *name, *out)
	return nil
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	in := fs.String("in", "", "pack path (rewritten in place)")
	key := fs.String("key", "", "encryption key")
	fs.Parse(args)
	if *in == "" || fs.NArg() == 0 {
		usage()
	}

	tmp := *in + ".tmp"
	p, err := pack.Create(tmp, *key)
	if err != nil {
		return fmt.Errorf("create %q: %w", tmp, err)
	}
	if existing, openErr := pack.Open(*in, *key, 0, 0); openErr == nil {
		for _, name := range existing.ListFiles() {
			r, err := existing.GetFile(name)
			if err != nil {
				existing.Close()
				p.Close()
				return fmt.Errorf("read existing %q: %w", name, err)
			}
			if err := p.AddStream(name, r); err != nil {
				existing.Close()
				p.Close()
				return fmt.Errorf("copy existing %q: %w", name, err)
			}
		}
		existing.Close()
	}
	for _, path := range fs.Args() {
		if err := p.AddFile(path, filepath.Base(path)); err != nil {
			p.Close()
			return fmt.Errorf("add %q: %w", path, err)
		}
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("finalize %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, *in); err != nil {
		return fmt.Errorf("replace %q: %w", *in, err)
	}
	fmt.Printf("updated %s (+%d files)\n", *in, fs.NArg())
	return nil
}
