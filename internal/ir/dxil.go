package ir

// DXOp is the operation number passed as the first argument of every
// dx.op intrinsic call.
type DXOp uint32

const (
	DXOpCreateHandle             DXOp = 57
	DXOpBarrier                  DXOp = 80
	DXOpThreadID                 DXOp = 93
	DXOpGroupID                  DXOp = 94
	DXOpThreadIDInGroup          DXOp = 95
	DXOpFlattenedThreadIDInGroup DXOp = 96
	DXOpRawBufferLoad            DXOp = 139
	DXOpRawBufferStore           DXOp = 140
	DXOpDispatchMesh             DXOp = 173
	DXOpAnnotateHandle           DXOp = 216
	DXOpCreateHandleFromBinding  DXOp = 217
)

var dxopNames = map[DXOp]string{
	DXOpCreateHandle:             "createHandle",
	DXOpBarrier:                  "barrier",
	DXOpThreadID:                 "threadId",
	DXOpGroupID:                  "groupId",
	DXOpThreadIDInGroup:          "threadIdInGroup",
	DXOpFlattenedThreadIDInGroup: "flattenedThreadIdInGroup",
	DXOpRawBufferLoad:            "rawBufferLoad",
	DXOpRawBufferStore:           "rawBufferStore",
	DXOpDispatchMesh:             "dispatchMesh",
	DXOpAnnotateHandle:           "annotateHandle",
	DXOpCreateHandleFromBinding:  "createHandleFromBinding",
}

func (op DXOp) String() string {
	if name, ok := dxopNames[op]; ok {
		return name
	}
	return "dxop"
}

// DXOpOf returns the operation number of a dx.op call.
func (p *Program) DXOpOf(in *Instr) (DXOp, bool) {
	if in == nil || in.Op != OpCall || len(in.Args) == 0 {
		return 0, false
	}
	bits, ok := p.IntConst(in.Args[0])
	if !ok {
		return 0, false
	}
	return DXOp(bits), true
}

// Names of the well-known metadata, functions and types.
const (
	MetaEntryPoints = "dx.entryPoints"
	MetaResources   = "dx.resources"
	MetaShaderModel = "dx.shaderModel"

	FuncDispatchMeshPrefix = "dx.op.dispatchMesh"

	TypeHandle             = "dx.types.Handle"
	TypeResBind            = "dx.types.ResBind"
	TypeResourceProperties = "dx.types.ResourceProperties"
	TypeResRetPrefix       = "dx.types.ResRet."
	TypeRWByteAddress      = "struct.RWByteAddressBuffer"
)

// Entry point record fields.
const (
	EntryFunc = iota
	EntryName
	EntrySignatures
	EntryResources
	EntryTags
	// EntryFieldCount is the length of an entry point record.
	EntryFieldCount
)

// Entry point tags.
const (
	TagShaderFlags   uint32 = 0
	TagAmplification uint32 = 10
)

// Resource list classes inside the dx.resources record.
const (
	ResClassSRV = iota
	ResClassUAV
	ResClassCBV
	ResClassSampler
	ResClassCount
)

// UAV record fields.
const (
	UAVFieldID = iota
	UAVFieldVariable
	UAVFieldName
	UAVFieldSpace
	UAVFieldBase
	UAVFieldCount
	UAVFieldShape
	UAVFieldGloballyCoherent
	UAVFieldHiddenCounter
	UAVFieldRasterOrder
	UAVFieldTags
	UAVFieldTotal
)

// HandleKindUAV is the resource class operand of handle creation.
const HandleKindUAV = 1

// ResourcePropertyUAV marks a UAV in the annotateHandle properties word.
const ResourcePropertyUAV = 1 << 12

// Metadata-encoded shader flag bits.
const (
	ShaderFlagRawBuffers       uint64 = 0x10
	ShaderFlagUAVsAtEveryStage uint64 = 0x10000
	ShaderFlagWaveOps          uint64 = 0x80000
)
