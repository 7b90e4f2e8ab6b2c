package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-memview/descriptor"
	"github.com/wippyai/wasm-memview/wasmhost"
)

type options struct {
	wasm        string
	desc        string
	wit         string
	typeName    string
	global      string
	call        string
	allocator   string
	addr        uint64
	count       int
	depth       int
	list        bool
	interactive bool
}

func main() {
	var (
		o       options
		schema  = flag.Bool("schema", false, "Print the descriptor JSON Schema and exit")
		verbose = flag.Bool("v", false, "Debug logging to stderr")
	)
	flag.StringVar(&o.wasm, "wasm", "", "Path to a core wasm module")
	flag.StringVar(&o.desc, "desc", "", "Structure descriptor (TOML)")
	flag.StringVar(&o.wit, "wit", "", "WIT package in JSON form")
	flag.StringVar(&o.typeName, "type", "", "Structure to inspect")
	flag.Uint64Var(&o.addr, "addr", 0, "Address of the structure in linear memory")
	flag.StringVar(&o.global, "global", "", "Exported global holding the address")
	flag.IntVar(&o.count, "len", 0, "Element count of slice structures")
	flag.StringVar(&o.call, "call", "", "Exported functions to call before inspecting (comma-separated)")
	flag.StringVar(&o.allocator, "allocator", wasmhost.DefaultAllocator, "Guest allocator export, empty to grow memory instead")
	flag.IntVar(&o.depth, "depth", 4, "Maximum nesting depth when printing")
	flag.BoolVar(&o.list, "list", false, "List structures and exit")
	flag.BoolVar(&o.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()

	if *schema {
		out, err := descriptor.Schema()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	if o.desc == "" && o.wit == "" {
		fmt.Fprintln(os.Stderr, "Usage: memview -desc <types.toml> [-wasm <module.wasm>] -type <name> [-addr n | -global name] [-len n]")
		fmt.Fprintln(os.Stderr, "       memview -wit <package.wit.json> -list")
		fmt.Fprintln(os.Stderr, "       memview -desc <types.toml> -wasm <module.wasm> -type <name> -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       memview -schema")
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			logger = l
		}
	}
	defer func() { _ = logger.Sync() }()

	if err := run(&o, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(o *options, logger *zap.Logger) error {
	ctx := context.Background()

	sess, err := open(ctx, o, logger)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	styled := term.IsTerminal(int(os.Stdout.Fd()))
	if o.list || o.typeName == "" {
		printTypes(os.Stdout, sess.ctors, styled)
		return nil
	}

	obj, err := sess.resolve(o)
	if err != nil {
		return err
	}
	if o.interactive {
		return runInteractive(sess, obj, o.typeName)
	}
	return newPrinter(os.Stdout, o.depth, styled).print(o.typeName, obj)
}
