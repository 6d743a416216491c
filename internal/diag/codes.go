package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка
	UnknownCode Code = 0

	// Container and chunk decoding
	BlobInfo          Code = 1000
	BlobBadMagic      Code = 1001
	BlobTruncated     Code = 1002
	BlobSizeMismatch  Code = 1003
	BlobChunkLayout   Code = 1004
	BlobMissingChunk  Code = 1005
	BlobBadVersion    Code = 1006
	BlobBadPipeline   Code = 1007
	BlobProgramDecode Code = 1008
	BlobProgramEncode Code = 1009

	// Program editor
	EdtInfo             Code = 2000
	EdtNoEntryPoint     Code = 2001
	EdtFuncNotFound     Code = 2002
	EdtBadPosition      Code = 2003
	EdtBlockTerminated  Code = 2004
	EdtBadOperandArity  Code = 2005
	EdtBadMetadata      Code = 2006
	EdtResourceSlot     Code = 2007
	EdtResourceMismatch Code = 2008
	EdtTypeMismatch     Code = 2009
	EdtStructure        Code = 2010

	// Payload copier
	CpyInfo            Code = 3000
	CpyUnsupportedLeaf Code = 3001
	CpyBadPath         Code = 3002

	// Capture passes
	CapInfo             Code = 4000
	CapNoDispatch       Code = 4001
	CapMultipleDispatch Code = 4002
	CapDispatchArity    Code = 4003
	CapPayloadNotShared Code = 4004
	CapPayloadType      Code = 4005
	CapPayloadSize      Code = 4006
	CapUnavailable      Code = 4007
	CapBadDispatch      Code = 4008

	// Reference executor
	SimInfo        Code = 5000
	SimFault       Code = 5001
	SimUnsupported Code = 5002
	SimMismatch    Code = 5003

	IOLoadFileError  Code = 6001
	IOWriteFileError Code = 6002

	ObsInfo    Code = 7000
	ObsTimings Code = 7001
)

var (
	codeDescription = map[Code]string{
		UnknownCode:         "Unknown error",
		BlobInfo:            "Blob information",
		BlobBadMagic:        "Not a shader container",
		BlobTruncated:       "Truncated container",
		BlobSizeMismatch:    "Container size mismatch",
		BlobChunkLayout:     "Invalid chunk layout",
		BlobMissingChunk:    "Required chunk missing",
		BlobBadVersion:      "Invalid shader model version",
		BlobBadPipeline:     "Malformed pipeline state chunk",
		BlobProgramDecode:   "Cannot decode program chunk",
		BlobProgramEncode:   "Cannot encode program chunk",
		EdtInfo:             "Editor information",
		EdtNoEntryPoint:     "Entry point list missing",
		EdtFuncNotFound:     "Function not found",
		EdtBadPosition:      "Instruction position out of range",
		EdtBlockTerminated:  "Block already terminated",
		EdtBadOperandArity:  "Unexpected operand count",
		EdtBadMetadata:      "Malformed metadata",
		EdtResourceSlot:     "Irregular resource slot id",
		EdtResourceMismatch: "Resource table out of sync with metadata",
		EdtTypeMismatch:     "Type mismatch",
		EdtStructure:        "Program structure check failed",
		CpyInfo:             "Copier information",
		CpyUnsupportedLeaf:  "Unsupported payload leaf type",
		CpyBadPath:          "Invalid payload access path",
		CapInfo:             "Capture information",
		CapNoDispatch:       "Dispatch call not found",
		CapMultipleDispatch: "More than one dispatch call",
		CapDispatchArity:    "Dispatch call has wrong argument count",
		CapPayloadNotShared: "Payload is not a groupshared variable",
		CapPayloadType:      "Payload is not an aggregate",
		CapPayloadSize:      "Payload does not fit the declared size",
		CapUnavailable:      "Capture unavailable",
		CapBadDispatch:      "Invalid dispatch size",
		SimInfo:             "Executor information",
		SimFault:            "Execution fault",
		SimUnsupported:      "Unsupported instruction",
		SimMismatch:         "Replay mismatch",
		IOLoadFileError:     "I/O load file error",
		IOWriteFileError:    "I/O write file error",
		ObsInfo:             "Observability information",
		ObsTimings:          "Pipeline timings",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("BLB%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("EDT%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("CPY%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("CAP%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("SIM%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
