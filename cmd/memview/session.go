package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	memview "github.com/wippyai/wasm-memview"
	"github.com/wippyai/wasm-memview/descriptor"
	"github.com/wippyai/wasm-memview/memhost"
	"github.com/wippyai/wasm-memview/object"
	"github.com/wippyai/wasm-memview/structure"
	"github.com/wippyai/wasm-memview/wasmhost"
	"github.com/wippyai/wasm-memview/witimport"
)

// session holds the loaded module and the structures defined over it.
// Without a module, objects live in an in-process arena.
type session struct {
	rt     wazero.Runtime
	wasm   *wasmhost.Host
	env    *object.Env
	ctors  map[string]*object.Constructor
	logger *zap.Logger
	source string
}

func open(ctx context.Context, o *options, logger *zap.Logger) (*session, error) {
	s := &session{logger: logger, ctors: make(map[string]*object.Constructor), source: "arena"}

	var host object.Host = memhost.New()
	if o.wasm != "" {
		h, err := s.instantiate(ctx, o)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		host, s.wasm, s.source = h, h, o.wasm
	}

	var file *descriptor.File
	var envOpts []object.EnvOption
	if o.desc != "" {
		f, err := descriptor.Load(o.desc)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		file = f
		envOpts = append(envOpts, f.Options()...)
	}
	s.env = object.NewEnv(host, append(envOpts, object.WithLogger(logger))...)

	if file != nil {
		ctors, err := file.Build(s.env)
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("%s: %w", o.desc, err)
		}
		for name, c := range ctors {
			s.ctors[name] = c
		}
	}
	if o.wit != "" {
		res, err := wit.LoadJSON(o.wit)
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("load WIT: %w", err)
		}
		ctors, err := witimport.New(s.env).ImportAll(res)
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("%s: %w", o.wit, err)
		}
		for name, c := range ctors {
			s.ctors[name] = c
		}
	}
	logger.Debug("session opened", zap.String("source", s.source), zap.Int("structures", len(s.ctors)))
	return s, nil
}

// instantiate runs the module with WASI preview1 but without its start
// function, then calls the requested initializers.
func (s *session) instantiate(ctx context.Context, o *options) (*wasmhost.Host, error) {
	data, err := os.ReadFile(o.wasm)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	s.rt = wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, s.rt); err != nil {
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}
	mod, err := s.rt.InstantiateWithConfig(ctx, data,
		wazero.NewModuleConfig().WithName("guest").WithStartFunctions().WithStdout(os.Stderr).WithStderr(os.Stderr))
	if err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}

	for _, name := range splitList(o.call) {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			return nil, fmt.Errorf("no exported function %q", name)
		}
		if _, err := fn.Call(ctx); err != nil {
			return nil, fmt.Errorf("call %s: %w", name, err)
		}
		s.logger.Debug("called", zap.String("func", name))
	}

	return wasmhost.New(ctx, mod, wasmhost.WithAllocator(o.allocator), wasmhost.WithLogger(s.logger))
}

// resolve returns the object to inspect. With a module it is cast over
// linear memory at the given address; without one it is a fresh instance.
func (s *session) resolve(o *options) (*object.Object, error) {
	c, ok := s.ctors[o.typeName]
	if !ok {
		return nil, fmt.Errorf("unknown structure %q (see -list)", o.typeName)
	}
	if s.wasm == nil {
		return c.New(nil, object.Fixed())
	}

	addr := memview.Address(o.addr)
	if o.global != "" {
		a, err := s.wasm.RecreateAddress(object.Handle(o.global))
		if err != nil {
			return nil, err
		}
		addr = a
	}

	st := c.Structure()
	size := st.ByteSize
	if st.Kind == structure.KindSlice {
		el := st.Element().ByteSize
		n := o.count
		if st.Sentinel != nil {
			if n == 0 {
				found, err := s.wasm.FindSentinel(addr, st.Sentinel.Value, el)
				if err != nil {
					return nil, err
				}
				if found < 0 {
					return nil, fmt.Errorf("no terminator for %s at %#x", st.Name, addr)
				}
				n = found
			}
			n++
		}
		size = n * el
	}

	v, err := s.env.ObtainView(addr, size, true)
	if err != nil {
		return nil, err
	}
	return c.Cast(v)
}

// Close releases the wazero runtime.
func (s *session) Close(ctx context.Context) {
	if s.rt != nil {
		_ = s.rt.Close(ctx)
		s.rt = nil
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
