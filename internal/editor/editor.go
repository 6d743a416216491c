// Package editor is the mutation façade over a decoded shader program.
//
// An Editor owns one container and the program decoded from it. Edits go
// through the Editor so that pools stay append-only, side-table patches are
// scheduled next to the metadata they mirror, and Finish can serialize a
// blob that is consistent on both sides. An Editor is used by one goroutine
// for one pass and then discarded.
package editor

import (
	"bytes"
	"context"
	"fmt"

	"ampcap/internal/bitcode"
	"ampcap/internal/container"
	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/trace"
	"ampcap/internal/types"
)

// Options configures an Editor.
type Options struct {
	// File names the blob in diagnostics.
	File string
	// Reporter receives warnings and fatal errors; nil drops them.
	Reporter diag.Reporter
}

// Editor edits one program blob.
type Editor struct {
	ctx  context.Context
	opts Options
	loc  diag.Location

	cont *container.Container
	prog *ir.Program

	psv      *container.PipelineState
	psvDirty bool

	features      uint64
	featuresDirty bool

	pending []ResourceDecl

	dirty     bool
	baseSizes poolSizes
}

type poolSizes struct {
	types, consts, globals, funcs, blocks, instrs, meta, named int
}

func (e *Editor) sizes() poolSizes {
	p := e.prog
	return poolSizes{
		types: p.Types.Len(), consts: len(p.Consts), globals: len(p.Globals), funcs: len(p.Funcs),
		blocks: len(p.Blocks), instrs: len(p.Instrs), meta: len(p.Meta), named: len(p.Named),
	}
}

// New decodes blob and returns an Editor over it. The blob is not modified.
func New(ctx context.Context, blob []byte, opts Options) (*Editor, error) {
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := trace.Start(ctx, trace.ScopeEdit, "editor_open")
	defer span.End("")

	e := &Editor{ctx: ctx, opts: opts, loc: diag.At(opts.File).InChunk(container.ChunkProgram.String())}
	cont, err := container.Decode(bytes.Clone(blob))
	if err != nil {
		return nil, e.fail(err)
	}
	e.cont = cont
	data, err := cont.MustChunk(container.ChunkProgram)
	if err != nil {
		return nil, e.fail(err)
	}
	prog, err := bitcode.Decode(data)
	if err != nil {
		return nil, e.fail(err)
	}
	e.prog = prog
	e.baseSizes = e.sizes()
	span.WithExtra("funcs", fmt.Sprint(len(prog.Funcs)))
	return e, nil
}

// fail reports err and returns it.
func (e *Editor) fail(err error) error {
	diag.ReportErr(e.opts.Reporter, diag.UnknownCode, err)
	return err
}

// errorf builds a fatal error located in the program chunk, reports it, and
// returns it.
func (e *Editor) errorf(code diag.Code, format string, args ...any) error {
	return e.fail(diag.Errorf(code, e.loc, format, args...))
}

func (e *Editor) errorfIn(code diag.Code, fn ir.FuncID, format string, args ...any) error {
	loc := e.loc
	if f := e.prog.Func(fn); f != nil {
		loc = loc.InFunc(f.Name)
	}
	return e.fail(diag.Errorf(code, loc, format, args...))
}

func (e *Editor) warnf(code diag.Code, format string, args ...any) {
	diag.ReportWarning(e.opts.Reporter, code, e.loc, fmt.Sprintf(format, args...)).Emit()
}

func (e *Editor) touch(name, detail string) {
	e.dirty = true
	trace.Point(e.ctx, trace.ScopeEdit, name, detail)
}

// Program exposes the decoded program for read access.
func (e *Editor) Program() *ir.Program { return e.prog }

// Types returns the type arena.
func (e *Editor) Types() *types.Interner { return e.prog.Types }

// Version returns the shader model of the blob.
func (e *Editor) Version() container.Version { return e.cont.Version }

// Context returns the context the Editor traces into.
func (e *Editor) Context() context.Context { return e.ctx }

// Reporter returns the diagnostics sink of the Editor.
func (e *Editor) Reporter() diag.Reporter { return e.opts.Reporter }

// Location returns the diagnostic location of the program chunk.
func (e *Editor) Location() diag.Location { return e.loc }

// Modified reports whether the program was changed since New.
func (e *Editor) Modified() bool {
	return e.dirty || e.sizes() != e.baseSizes
}

// Finish validates the edited program and serializes the blob. Unedited
// chunks keep their original bytes.
func (e *Editor) Finish() ([]byte, error) {
	_, span := trace.Start(e.ctx, trace.ScopeEdit, "editor_finish")
	defer span.End("")

	if len(e.pending) > 0 {
		if err := e.applyResources(); err != nil {
			return nil, err
		}
	}
	if e.Modified() {
		if err := ir.Check(e.prog); err != nil {
			return nil, e.errorf(diag.EdtStructure, "%w", err)
		}
		data, err := bitcode.Encode(e.prog)
		if err != nil {
			return nil, e.fail(err)
		}
		e.cont.SetChunk(container.ChunkProgram, data)
	}
	if e.psvDirty {
		data, err := e.psv.Encode()
		if err != nil {
			return nil, e.fail(err)
		}
		e.cont.SetChunk(container.ChunkPipeline, data)
	}
	if e.featuresDirty {
		e.cont.SetChunk(container.ChunkFeatures, container.EncodeFeatures(e.features))
	}
	out, err := e.cont.Encode()
	if err != nil {
		return nil, e.fail(err)
	}
	span.WithExtra("bytes", fmt.Sprint(len(out)))
	return out, nil
}
