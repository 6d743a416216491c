package editor_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ampcap/internal/container"
	"ampcap/internal/diag"
	"ampcap/internal/editor"
	"ampcap/internal/ir"
	"ampcap/internal/samples"
	"ampcap/internal/types"
)

func sample(t *testing.T, mutate func(*samples.Options)) []byte {
	t.Helper()
	opts := samples.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	blob, err := samples.Amplification(opts)
	require.NoError(t, err)
	return blob
}

func open(t *testing.T, blob []byte, bag *diag.Bag) *editor.Editor {
	t.Helper()
	opts := editor.Options{File: "sample.sxbc"}
	if bag != nil {
		opts.Reporter = diag.BagReporter{Bag: bag}
	}
	ed, err := editor.New(context.Background(), blob, opts)
	require.NoError(t, err)
	return ed
}

func codeOf(t *testing.T, err error) diag.Code {
	t.Helper()
	require.Error(t, err)
	code, ok := diag.CodeOf(err)
	require.True(t, ok, "not a diagnostic error: %v", err)
	return code
}

func TestFinishUneditedIsBitExact(t *testing.T) {
	for _, v := range []container.Version{{Major: 6, Minor: 5}, {Major: 6, Minor: 7}} {
		blob := sample(t, func(o *samples.Options) {
			o.Version = v
			o.Payload = samples.PayloadWide
			o.ExistingUAVs = []uint32{0}
		})
		ed := open(t, blob, nil)
		require.False(t, ed.Modified())
		out, err := ed.Finish()
		require.NoError(t, err)
		require.True(t, bytes.Equal(blob, out), "unedited blob changed for %s", v)
	}
}

func TestEntryPoint(t *testing.T) {
	ed := open(t, sample(t, func(o *samples.Options) { o.Name = "amp_main" }), nil)
	entry, err := ed.EntryPoint()
	require.NoError(t, err)
	require.Equal(t, "amp_main", entry.Name)
	require.Equal(t, "amp_main", ed.Func(entry.Func).Name)

	amp, err := ed.AmplificationTag()
	require.NoError(t, err)
	require.Equal(t, [3]uint32{4, 1, 1}, amp.NumThreads)
	require.EqualValues(t, 12, amp.PayloadSize)
}

func TestRegisterResourceBindingNextSlot(t *testing.T) {
	bag := diag.NewBag(16)
	ed := open(t, sample(t, func(o *samples.Options) { o.ExistingUAVs = []uint32{0, 2} }), bag)

	decl, err := ed.RegisterResourceBinding(editor.Binding{
		Type: container.ResourceUAVRaw, Space: 7, Base: 1, Count: 1, Shape: container.ShapeRawBuffer,
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, decl.Slot)
	require.True(t, bag.HasWarnings(), "out-of-order id should warn")
	require.Equal(t, diag.EdtResourceSlot, bag.Items()[0].Code)

	out, err := ed.Finish()
	require.NoError(t, err)

	again := open(t, out, nil)
	ps, err := again.PipelineState()
	require.NoError(t, err)
	require.Len(t, ps.Resources, 3)
	idx, ok := ps.FindResource(container.ResourceUAVRaw, 7, 1)
	require.True(t, ok)
	require.Equal(t, 2, idx)

	p := again.Program()
	res := p.NamedMeta(ir.MetaResources)
	require.NotNil(t, res)
	uavs := p.MetaNode(p.MetaNode(res.Roots[0]).Children[ir.ResClassUAV])
	require.Len(t, uavs.Children, 3)
	id, ok := p.MetaU32(p.MetaNode(uavs.Children[2]).Children[ir.UAVFieldID])
	require.True(t, ok)
	require.EqualValues(t, 3, id)
}

func TestRegisterResourceBindingCreatesList(t *testing.T) {
	ed := open(t, sample(t, nil), nil)
	decl, err := ed.RegisterResourceBinding(editor.Binding{
		Type: container.ResourceUAVRaw, Space: 2, Base: 1, Count: 1, Shape: container.ShapeRawBuffer,
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, decl.Slot)

	entry, err := ed.EntryPoint()
	require.NoError(t, err)
	p := ed.Program()
	reslist := p.MetaNode(entry.Node).Children[ir.EntryResources]
	require.NotEqual(t, ir.NoMetaID, reslist)
	named := p.NamedMeta(ir.MetaResources)
	require.NotNil(t, named)
	require.Equal(t, reslist, named.Roots[0])

	_, err = ed.Finish()
	require.NoError(t, err)
}

func TestFinishDetectsResourceMismatch(t *testing.T) {
	ed := open(t, sample(t, nil), nil)
	decl, err := ed.RegisterResourceBinding(editor.Binding{
		Type: container.ResourceUAVRaw, Space: 2, Base: 1, Count: 1, Shape: container.ShapeRawBuffer,
	})
	require.NoError(t, err)
	other := ed.MetaU32(3)
	ed.Program().MetaNode(decl.Record).Children[ir.UAVFieldSpace] = other

	_, err = ed.Finish()
	require.Equal(t, diag.EdtResourceMismatch, codeOf(t, err))
}

func TestPatchEntryTag(t *testing.T) {
	ed := open(t, sample(t, nil), nil)
	flags, err := ed.GlobalFlags()
	require.NoError(t, err)
	require.Zero(t, flags)

	require.NoError(t, ed.PatchGlobalFlags(func(f uint64) uint64 { return f | ir.ShaderFlagRawBuffers }))
	entry, err := ed.EntryPoint()
	require.NoError(t, err)
	p := ed.Program()
	tags := p.MetaNode(p.MetaNode(entry.Node).Children[ir.EntryTags])
	first, ok := p.MetaU32(tags.Children[0])
	require.True(t, ok)
	require.Equal(t, ir.TagShaderFlags, first, "missing tag goes to the front")
	require.Len(t, tags.Children, 4)

	require.NoError(t, ed.PatchGlobalFlags(func(f uint64) uint64 { return f | ir.ShaderFlagUAVsAtEveryStage }))
	tags = p.MetaNode(p.MetaNode(entry.Node).Children[ir.EntryTags])
	require.Len(t, tags.Children, 4, "existing tag is replaced in place")
	flags, err = ed.GlobalFlags()
	require.NoError(t, err)
	require.Equal(t, ir.ShaderFlagRawBuffers|ir.ShaderFlagUAVsAtEveryStage, flags)
}

func TestSideTablePatches(t *testing.T) {
	ed := open(t, sample(t, nil), nil)
	require.NoError(t, ed.SetNumThreads(1, 1, 1))
	require.NoError(t, ed.SetPayloadSize(28))
	require.NoError(t, ed.PatchFeatures(func(f uint64) uint64 { return f | container.FeatureRawBuffers }))
	out, err := ed.Finish()
	require.NoError(t, err)

	again := open(t, out, nil)
	amp, err := again.AmplificationTag()
	require.NoError(t, err)
	require.Equal(t, [3]uint32{1, 1, 1}, amp.NumThreads)
	require.EqualValues(t, 28, amp.PayloadSize)
	ps, err := again.PipelineState()
	require.NoError(t, err)
	require.Equal(t, [3]uint32{1, 1, 1}, ps.NumThreads)
	require.EqualValues(t, 28, ps.PayloadSize)
	features, ok, err := again.Features()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, container.FeatureRawBuffers, features)
}

func TestDeclareFunction(t *testing.T) {
	ed := open(t, sample(t, nil), nil)
	params := []types.TypeID{ed.I32(), ed.I32()}
	a, err := ed.DeclareFunction("dx.op.barrier", ed.Void(), params, ir.AttrNoUnwind)
	require.NoError(t, err)
	b, err := ed.DeclareFunction("dx.op.barrier", ed.Void(), params, ir.AttrNoUnwind)
	require.NoError(t, err)
	require.Equal(t, a, b)

	_, err = ed.DeclareFunction("dx.op.barrier", ed.I32(), nil, 0)
	require.Equal(t, diag.EdtTypeMismatch, codeOf(t, err))

	_, err = ed.FuncByName("dx.op.nope")
	require.Equal(t, diag.EdtFuncNotFound, codeOf(t, err))
}
