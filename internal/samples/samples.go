// Package samples builds amplification shader blobs used by tests and by
// `ampcap sample`.
package samples

import (
	"fmt"
	"math"
	"strings"

	"fortio.org/safecast"

	"ampcap/internal/bitcode"
	"ampcap/internal/container"
	"ampcap/internal/ir"
	"ampcap/internal/layout"
	"ampcap/internal/payload"
	"ampcap/internal/types"
)

// PayloadKind selects the payload type of a sample.
type PayloadKind uint8

const (
	// PayloadBasic is {float a, i32 b[2]}.
	PayloadBasic PayloadKind = iota
	// PayloadWide covers every supported scalar width, nested aggregates,
	// arrays of aggregates and a zero-length array.
	PayloadWide
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadBasic:
		return "basic"
	case PayloadWide:
		return "wide"
	default:
		return fmt.Sprintf("PayloadKind(%d)", k)
	}
}

// ParsePayloadKind maps a name to a PayloadKind.
func ParsePayloadKind(s string) (PayloadKind, error) {
	switch strings.ToLower(s) {
	case "basic", "":
		return PayloadBasic, nil
	case "wide":
		return PayloadWide, nil
	}
	return 0, fmt.Errorf("unknown payload kind %q (want basic or wide)", s)
}

// Options describes a sample.
type Options struct {
	Version    container.Version
	NumThreads [3]uint32
	Payload    PayloadKind
	// ExistingUAVs lists the ids of UAV records declared before capture.
	// Each is bound to register id in space 0.
	ExistingUAVs []uint32
	// Flags is the shader flags tag value; zero omits the tag.
	Flags    uint64
	Features uint64
	Name     string
}

// DefaultOptions returns a 4-thread sample with the basic payload.
func DefaultOptions() Options {
	return Options{
		Version:    container.Version{Major: 6, Minor: 5},
		NumThreads: [3]uint32{4, 1, 1},
		Payload:    PayloadBasic,
		Name:       "main",
	}
}

// Amplification builds a sample and serializes it.
func Amplification(opts Options) ([]byte, error) {
	p, err := Program(opts)
	if err != nil {
		return nil, err
	}
	prog, err := bitcode.Encode(p)
	if err != nil {
		return nil, err
	}
	layoutSize, err := payloadSize(p)
	if err != nil {
		return nil, err
	}
	ps := &container.PipelineState{
		LayoutVersion: 1,
		Stage:         container.StageAmplification,
		NumThreads:    opts.NumThreads,
		PayloadSize:   layoutSize,
		EntryName:     opts.Name,
	}
	for _, id := range opts.ExistingUAVs {
		ps.Resources = append(ps.Resources, container.PipelineResource{
			Type: container.ResourceUAVRaw, LowerBound: id, UpperBound: id, Shape: container.ShapeRawBuffer,
		})
	}
	psv, err := ps.Encode()
	if err != nil {
		return nil, err
	}
	c := &container.Container{
		Version: opts.Version,
		Chunks: []container.Chunk{
			{Tag: container.ChunkProgram, Data: prog},
			{Tag: container.ChunkPipeline, Data: psv},
			{Tag: container.ChunkFeatures, Data: container.EncodeFeatures(opts.Features)},
		},
	}
	return c.Encode()
}

func payloadSize(p *ir.Program) (uint32, error) {
	for _, g := range p.Globals {
		if g.Name == PayloadGlobal {
			t := p.Types.MustLookup(g.Type)
			return naturalSize(p.Types, t.Elem)
		}
	}
	return 0, fmt.Errorf("samples: payload global missing")
}

// Names used by every sample.
const (
	PayloadGlobal = "payload"
	PayloadType   = "struct.Payload"
)

type builder struct {
	p    *ir.Program
	t    *types.Interner
	i32  types.TypeID
	void types.TypeID
	fn   ir.FuncID
}

func (b *builder) cint(t types.TypeID, n uint64) ir.Value {
	return ir.ConstValue(b.p.AddConst(ir.Const{Kind: ir.ConstInt, Type: t, Bits: n}))
}

func (b *builder) u32(n uint32) ir.Value { return b.cint(b.i32, uint64(n)) }

func (b *builder) cfloat(t types.TypeID, f float64) ir.Value {
	bits := math.Float64bits(f)
	if b.t.MustLookup(t).Width == types.Width32 {
		bits = uint64(math.Float32bits(float32(f)))
	}
	return ir.ConstValue(b.p.AddConst(ir.Const{Kind: ir.ConstFloat, Type: t, Bits: bits}))
}

func (b *builder) declare(name string, ret types.TypeID, attrs ir.Attr, params ...types.TypeID) ir.FuncID {
	return b.p.AddFunc(&ir.Func{Name: name, Result: ret, Params: params, Attrs: attrs, External: true})
}

func (b *builder) emit(block ir.BlockID, in ir.Instr) ir.Value {
	id := b.p.AddInstr(in)
	blk := b.p.Block(block)
	blk.Instrs = append(blk.Instrs, id)
	return ir.InstrValue(id)
}

func (b *builder) call(block ir.BlockID, fn ir.FuncID, op ir.DXOp, args ...ir.Value) ir.Value {
	all := append([]ir.Value{b.u32(uint32(op))}, args...)
	return b.emit(block, ir.Instr{Op: ir.OpCall, Type: b.p.Func(fn).Result, Callee: fn, Args: all})
}

func (b *builder) bin(block ir.BlockID, op ir.Op, t types.TypeID, x, y ir.Value) ir.Value {
	return b.emit(block, ir.Instr{Op: op, Type: t, Args: []ir.Value{x, y}})
}

func (b *builder) meta(n ir.MetaNode) ir.MetaID { return b.p.AddMeta(n) }

func (b *builder) metaU32(n uint32) ir.MetaID {
	return b.meta(ir.MetaNode{Kind: ir.MetaValue, Value: b.u32(n)})
}

func (b *builder) metaList(children ...ir.MetaID) ir.MetaID {
	return b.meta(ir.MetaNode{Kind: ir.MetaList, Children: children})
}

// Program builds the sample program without serializing it.
//
// Every thread derives a seed from its group and thread index. Leaf k of the
// payload is written by thread k modulo the group size, then all threads
// dispatch (gx+1, gy+1, 2) mesh groups with the payload.
func Program(opts Options) (*ir.Program, error) {
	threads := uint64(opts.NumThreads[0]) * uint64(opts.NumThreads[1]) * uint64(opts.NumThreads[2])
	if threads == 0 || threads > 1024 {
		return nil, fmt.Errorf("samples: %v threads per group out of range", opts.NumThreads)
	}
	name := opts.Name
	if name == "" {
		name = "main"
	}

	p := ir.NewProgram()
	b := &builder{p: p, t: p.Types, i32: p.Types.Int(types.Width32), void: p.Types.Void()}
	payloadT := buildPayloadType(p.Types, opts.Payload)
	payloadPtr := p.Types.Pointer(payloadT, types.AddrGroupShared)
	gv := p.AddGlobal(ir.Global{
		Name: PayloadGlobal, Type: payloadPtr, Space: types.AddrGroupShared,
		Init: ir.ConstValue(p.AddConst(ir.Const{Kind: ir.ConstUndef, Type: payloadT})), Align: ir.EncodeAlign(8),
	})

	flatFn := b.declare("dx.op.flattenedThreadIdInGroup.i32", b.i32, ir.AttrNoUnwind|ir.AttrReadNone, b.i32)
	groupFn := b.declare("dx.op.groupId.i32", b.i32, ir.AttrNoUnwind|ir.AttrReadNone, b.i32, b.i32)
	dispatchFn := b.declare(ir.FuncDispatchMeshPrefix+"."+PayloadType, b.void, ir.AttrNoUnwind,
		b.i32, b.i32, b.i32, b.i32, payloadPtr)
	mainFn := &ir.Func{Name: name, Result: b.void}
	b.fn = p.AddFunc(mainFn)

	entry := p.AddBlock()
	final := p.AddBlock()

	tid := b.call(entry, flatFn, ir.DXOpFlattenedThreadIDInGroup)
	gx := b.call(entry, groupFn, ir.DXOpGroupID, b.u32(0))
	gy := b.call(entry, groupFn, ir.DXOpGroupID, b.u32(1))
	gz := b.call(entry, groupFn, ir.DXOpGroupID, b.u32(2))
	seed := b.bin(entry, ir.OpMul, b.i32, gx, b.u32(7919))
	seed = b.bin(entry, ir.OpAdd, b.i32, seed, b.bin(entry, ir.OpMul, b.i32, gy, b.u32(104729)))
	seed = b.bin(entry, ir.OpAdd, b.i32, seed, b.bin(entry, ir.OpMul, b.i32, gz, b.u32(1299709)))
	seed = b.bin(entry, ir.OpAdd, b.i32, seed, b.bin(entry, ir.OpMul, b.i32, tid, b.u32(31)))

	leaves, err := payload.Leaves(p.Types, payloadT)
	if err != nil {
		return nil, fmt.Errorf("samples: %w", err)
	}
	owners := make(map[uint64][]int)
	for k := range leaves {
		owners[uint64(k)%threads] = append(owners[uint64(k)%threads], k)
	}
	sw := ir.Instr{Op: ir.OpSwitch, Type: b.void, Args: []ir.Value{tid, ir.BlockValue(final)}}
	blocks := []ir.BlockID{entry}
	for t := range threads {
		ks := owners[t]
		if len(ks) == 0 {
			continue
		}
		blk := p.AddBlock()
		blocks = append(blocks, blk)
		tv, err := safecast.Conv[uint32](t)
		if err != nil {
			return nil, err
		}
		sw.Args = append(sw.Args, b.u32(tv), ir.BlockValue(blk))
		for _, k := range ks {
			b.storeLeaf(blk, gv, leaves[k], k, seed)
		}
		b.emit(blk, ir.Instr{Op: ir.OpBr, Type: b.void, Args: []ir.Value{ir.BlockValue(final)}})
	}
	b.emit(entry, sw)

	dx := b.bin(final, ir.OpAdd, b.i32, gx, b.u32(1))
	dy := b.bin(final, ir.OpAdd, b.i32, gy, b.u32(1))
	b.call(final, dispatchFn, ir.DXOpDispatchMesh, dx, dy, b.u32(2), ir.GlobalValue(gv))
	b.emit(final, ir.Instr{Op: ir.OpRet, Type: b.void})
	mainFn.Blocks = append(blocks, final)

	if err := b.metadata(opts, name, payloadT); err != nil {
		return nil, err
	}
	if err := ir.Check(p); err != nil {
		return nil, fmt.Errorf("samples: %w", err)
	}
	return p, nil
}

// storeLeaf computes a value for leaf k from seed and stores it.
func (b *builder) storeLeaf(blk ir.BlockID, gv ir.GlobalID, leaf payload.Leaf, k int, seed ir.Value) {
	salt := uint32((uint64(k) + 1) * 0x9E3779B1 & math.MaxUint32)
	v := b.bin(blk, ir.OpAdd, b.i32, seed, b.u32(salt))
	t := leaf.Type
	switch {
	case leaf.Float:
		v = b.emit(blk, ir.Instr{Op: ir.OpUIToFP, Type: t, Args: []ir.Value{v}})
		if leaf.Width == types.Width32 {
			v = b.bin(blk, ir.OpFAdd, t, v, b.cfloat(t, 0.5))
		} else {
			v = b.bin(blk, ir.OpFMul, t, v, b.cfloat(t, 1.000244140625))
		}
	case leaf.Width == types.Width64:
		v = b.emit(blk, ir.Instr{Op: ir.OpZExt, Type: t, Args: []ir.Value{v}})
		v = b.bin(blk, ir.OpMul, t, v, b.cint(t, 0x1_0000_0001))
	case leaf.Width < types.Width32:
		v = b.emit(blk, ir.Instr{Op: ir.OpTrunc, Type: t, Args: []ir.Value{v}})
	}
	ptr := b.p.Types.Pointer(t, types.AddrGroupShared)
	elems := []ir.Value{ir.GlobalValue(gv), b.u32(0)}
	for _, idx := range leaf.Path {
		elems = append(elems, b.u32(idx))
	}
	gep := ir.ConstValue(b.p.AddConst(ir.Const{Kind: ir.ConstGEP, Type: ptr, Elems: elems}))
	b.emit(blk, ir.Instr{
		Op: ir.OpStore, Type: b.void, Args: []ir.Value{gep, v}, Align: ir.EncodeAlign(leaf.Bytes()),
	})
}

func buildPayloadType(in *types.Interner, kind PayloadKind) types.TypeID {
	i8, i16, i32, i64 := in.Int(types.Width8), in.Int(types.Width16), in.Int(types.Width32), in.Int(types.Width64)
	f32, f64 := in.Float(types.Width32), in.Float(types.Width64)
	if kind == PayloadWide {
		inner := in.Struct("struct.Inner", i16, in.Array(i8, 2))
		pair := in.Struct("struct.Pair", i32, f32)
		return in.Struct(PayloadType, i8, i16, i32, i64, f32, f64, in.Array(i32, 0), inner, in.Array(pair, 2))
	}
	return in.Struct(PayloadType, f32, in.Array(i32, 2))
}

func (b *builder) metadata(opts Options, name string, payloadT types.TypeID) error {
	p := b.p
	size, err := naturalSize(p.Types, payloadT)
	if err != nil {
		return err
	}
	sm := b.metaList(
		b.meta(ir.MetaNode{Kind: ir.MetaString, Str: "as"}),
		b.metaU32(uint32(opts.Version.Major)),
		b.metaU32(uint32(opts.Version.Minor)),
	)
	p.Named = append(p.Named, ir.NamedMeta{Name: ir.MetaShaderModel, Roots: []ir.MetaID{sm}})

	resources := ir.NoMetaID
	if len(opts.ExistingUAVs) > 0 {
		buffer := p.Types.Struct(ir.TypeRWByteAddress, b.i32)
		bufPtr := p.Types.Pointer(buffer, types.AddrDefault)
		i1 := p.Types.Bool()
		falseV := b.meta(ir.MetaNode{Kind: ir.MetaValue, Value: b.cint(i1, 0)})
		var recs []ir.MetaID
		for _, id := range opts.ExistingUAVs {
			fields := make([]ir.MetaID, ir.UAVFieldTotal)
			fields[ir.UAVFieldID] = b.metaU32(id)
			fields[ir.UAVFieldVariable] = b.meta(ir.MetaNode{
				Kind:  ir.MetaValue,
				Value: ir.ConstValue(p.AddConst(ir.Const{Kind: ir.ConstUndef, Type: bufPtr})),
			})
			fields[ir.UAVFieldName] = b.meta(ir.MetaNode{Kind: ir.MetaString, Str: fmt.Sprintf("u%d", id)})
			fields[ir.UAVFieldSpace] = b.metaU32(0)
			fields[ir.UAVFieldBase] = b.metaU32(id)
			fields[ir.UAVFieldCount] = b.metaU32(1)
			fields[ir.UAVFieldShape] = b.metaU32(container.ShapeRawBuffer)
			fields[ir.UAVFieldGloballyCoherent] = falseV
			fields[ir.UAVFieldHiddenCounter] = falseV
			fields[ir.UAVFieldRasterOrder] = falseV
			fields[ir.UAVFieldTags] = ir.NoMetaID
			recs = append(recs, b.metaList(fields...))
		}
		uavs := b.metaList(recs...)
		resources = b.metaList(ir.NoMetaID, uavs, ir.NoMetaID, ir.NoMetaID)
		p.Named = append(p.Named, ir.NamedMeta{Name: ir.MetaResources, Roots: []ir.MetaID{resources}})
	}

	var tags []ir.MetaID
	if opts.Flags != 0 {
		flags := b.meta(ir.MetaNode{Kind: ir.MetaValue, Value: b.cint(p.Types.Int(types.Width64), opts.Flags)})
		tags = append(tags, b.metaU32(ir.TagShaderFlags), flags)
	}
	dims := b.metaList(b.metaU32(opts.NumThreads[0]), b.metaU32(opts.NumThreads[1]), b.metaU32(opts.NumThreads[2]))
	tags = append(tags, b.metaU32(ir.TagAmplification), b.metaList(dims, b.metaU32(size)))

	entry := b.metaList(
		b.meta(ir.MetaNode{Kind: ir.MetaValue, Value: ir.FuncValue(b.fn)}),
		b.meta(ir.MetaNode{Kind: ir.MetaString, Str: name}),
		ir.NoMetaID,
		resources,
		b.metaList(tags...),
	)
	p.Named = append(p.Named, ir.NamedMeta{Name: ir.MetaEntryPoints, Roots: []ir.MetaID{entry}})
	return nil
}

func naturalSize(in *types.Interner, t types.TypeID) (uint32, error) {
	n, err := layout.New(layout.GroupShared(), in).SizeOf(t)
	if err != nil {
		return 0, err
	}
	return safecast.Conv[uint32](n)
}
