// Package sim is a reference executor for amplification programs.
//
// Each group runs its threads cooperatively: a thread executes until it
// returns or reaches a barrier or the dispatch, where it parks. Once every
// live thread is parked, barrier waiters are released first; when only
// dispatch waiters remain the group dispatches once and all of them resume.
// Groups run concurrently and share nothing but the bound buffers.
package sim

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"ampcap/internal/bitcode"
	"ampcap/internal/container"
	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/trace"
	"ampcap/internal/types"
)

// DefaultStepLimit bounds the instructions one thread may execute.
const DefaultStepLimit = 1 << 20

// Key names a buffer binding.
type Key struct {
	Space    uint32
	Register uint32
}

func (k Key) String() string { return fmt.Sprintf("u%d,space%d", k.Register, k.Space) }

// Program is a decoded blob ready to run.
type Program struct {
	file    string
	prog    *ir.Program
	entry   ir.FuncID
	name    string
	threads [3]uint32
	// uavs maps UAV ids of the entry resource list to their binding.
	uavs   map[uint32]Key
	blocks map[ir.BlockID]int
}

// Load decodes blob for execution. The thread group size comes from the
// pipeline state chunk.
func Load(blob []byte, file string) (*Program, error) {
	c, err := container.Decode(blob)
	if err != nil {
		return nil, err
	}
	raw, err := c.MustChunk(container.ChunkProgram)
	if err != nil {
		return nil, err
	}
	prog, err := bitcode.Decode(raw)
	if err != nil {
		return nil, err
	}
	psvRaw, err := c.MustChunk(container.ChunkPipeline)
	if err != nil {
		return nil, err
	}
	psv, err := container.DecodePipelineState(psvRaw)
	if err != nil {
		return nil, err
	}
	p := &Program{file: file, prog: prog, threads: psv.NumThreads, uavs: make(map[uint32]Key)}
	if p.threads[0] == 0 || p.threads[1] == 0 || p.threads[2] == 0 {
		return nil, p.errorf(diag.SimFault, diag.At(file), "thread group %v is empty", p.threads)
	}
	if err := p.resolveEntry(); err != nil {
		return nil, err
	}
	fn := prog.Func(p.entry)
	p.name = fn.Name
	p.blocks = make(map[ir.BlockID]int, len(fn.Blocks))
	for i, b := range fn.Blocks {
		p.blocks[b] = i
	}
	return p, nil
}

func (p *Program) errorf(code diag.Code, loc diag.Location, format string, args ...any) error {
	return diag.Errorf(code, loc, format, args...)
}

// resolveEntry reads the entry function and its UAV records.
func (p *Program) resolveEntry() error {
	loc := diag.At(p.file)
	named := p.prog.NamedMeta(ir.MetaEntryPoints)
	if named == nil || len(named.Roots) == 0 {
		return p.errorf(diag.EdtNoEntryPoint, loc, "%s is missing or empty", ir.MetaEntryPoints)
	}
	entry := p.prog.MetaNode(named.Roots[0])
	if entry == nil || entry.Kind != ir.MetaList || len(entry.Children) < ir.EntryFieldCount {
		return p.errorf(diag.EdtBadMetadata, loc, "entry point record is malformed")
	}
	fnNode := p.prog.MetaNode(entry.Children[ir.EntryFunc])
	if fnNode == nil || fnNode.Kind != ir.MetaValue {
		return p.errorf(diag.EdtBadMetadata, loc, "entry point does not reference a function")
	}
	fn, ok := fnNode.Value.Func()
	if !ok || p.prog.Func(fn) == nil || p.prog.Func(fn).External {
		return p.errorf(diag.EdtBadMetadata, loc, "entry point does not reference a defined function")
	}
	p.entry = fn

	res := p.prog.MetaNode(entry.Children[ir.EntryResources])
	if res == nil || res.Kind != ir.MetaList || len(res.Children) <= ir.ResClassUAV {
		return nil
	}
	uavs := p.prog.MetaNode(res.Children[ir.ResClassUAV])
	if uavs == nil {
		return nil
	}
	for _, rec := range uavs.Children {
		n := p.prog.MetaNode(rec)
		if n == nil || n.Kind != ir.MetaList || len(n.Children) <= ir.UAVFieldBase {
			continue
		}
		id, ok1 := p.prog.MetaU32(n.Children[ir.UAVFieldID])
		space, ok2 := p.prog.MetaU32(n.Children[ir.UAVFieldSpace])
		base, ok3 := p.prog.MetaU32(n.Children[ir.UAVFieldBase])
		if ok1 && ok2 && ok3 {
			p.uavs[id] = Key{Space: space, Register: base}
		}
	}
	return nil
}

// Types returns the type table of the program.
func (p *Program) Types() *types.Interner { return p.prog.Types }

// Name returns the entry function name.
func (p *Program) Name() string { return p.name }

// NumThreads returns the thread group size.
func (p *Program) NumThreads() [3]uint32 { return p.threads }

// Config describes one run.
type Config struct {
	Groups  [3]uint32
	Buffers map[Key]*Buffer
	// Workers bounds the groups run at once; 0 means GOMAXPROCS.
	Workers int
	// StepLimit bounds the instructions of one thread; 0 means
	// DefaultStepLimit.
	StepLimit int
}

// Dispatch is the dispatch performed by one group.
type Dispatch struct {
	Group [3]uint32
	Dims  [3]uint32
	// Payload is the payload memory at the time of the dispatch, laid out
	// naturally as PayloadType.
	Payload     []byte
	PayloadType types.TypeID
}

// Run executes every group of cfg.Groups and returns their dispatches ordered
// by x + y*X + z*X*Y.
func (p *Program) Run(ctx context.Context, cfg Config) ([]Dispatch, error) {
	ctx, span := trace.Start(ctx, trace.ScopeEdit, "sim_run")
	defer span.End("")

	total := uint64(cfg.Groups[0]) * uint64(cfg.Groups[1]) * uint64(cfg.Groups[2])
	if total == 0 || total > 1<<24 {
		return nil, p.errorf(diag.CapBadDispatch, diag.At(p.file), "cannot run %dx%dx%d groups",
			cfg.Groups[0], cfg.Groups[1], cfg.Groups[2])
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.StepLimit <= 0 {
		cfg.StepLimit = DefaultStepLimit
	}
	span.WithExtra("groups", fmt.Sprint(total))

	out := make([]Dispatch, total)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Workers)
	xy := uint64(cfg.Groups[0]) * uint64(cfg.Groups[1])
	for slot := range total {
		id := [3]uint32{
			uint32(slot % uint64(cfg.Groups[0])),      //nolint:gosec // bounded by Groups
			uint32(slot % xy / uint64(cfg.Groups[0])), //nolint:gosec // bounded by Groups
			uint32(slot / xy),                         //nolint:gosec // bounded by Groups
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := newGroup(p, cfg, id).run()
			if err != nil {
				return err
			}
			out[slot] = d
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
