package bitcode

// Current schema version - increment when the record layout changes
const schemaVersion uint16 = 1

type programRecord struct {
	Schema  uint16         `msgpack:"v"`
	Types   []typeRecord   `msgpack:"t"`
	Consts  []constRecord  `msgpack:"c"`
	Globals []globalRecord `msgpack:"g"`
	Funcs   []funcRecord   `msgpack:"f"`
	Meta    []metaRecord   `msgpack:"m"`
	Named   []namedRecord  `msgpack:"n"`
}

type typeRecord struct {
	_msgpack struct{} `msgpack:",as_array"`
	Kind     uint8
	Width    uint8
	Elem     uint32
	Count    uint32
	Space    uint8
	Name     string
	Members  []uint32
}

// valueRecord references a pool entry. Instruction results and blocks are
// numbered locally to the enclosing function.
type valueRecord struct {
	_msgpack struct{} `msgpack:",as_array"`
	Kind     uint8
	ID       uint32
}

type constRecord struct {
	_msgpack struct{} `msgpack:",as_array"`
	Kind     uint8
	Type     uint32
	Bits     uint64
	Elems    []valueRecord
}

type globalRecord struct {
	_msgpack struct{} `msgpack:",as_array"`
	Name     string
	Type     uint32
	Space    uint8
	Init     valueRecord
	Align    uint8
}

type funcRecord struct {
	_msgpack struct{} `msgpack:",as_array"`
	Name     string
	Result   uint32
	Params   []uint32
	Attrs    uint32
	External bool
	Blocks   []blockRecord
}

type blockRecord struct {
	_msgpack struct{} `msgpack:",as_array"`
	Instrs   []instrRecord
}

type instrRecord struct {
	_msgpack struct{} `msgpack:",as_array"`
	Op       uint8
	Type     uint32
	Args     []valueRecord
	Callee   int32
	Align    uint8
	Flags    uint8
}

type metaRecord struct {
	_msgpack struct{} `msgpack:",as_array"`
	Kind     uint8
	Str      string
	Value    valueRecord
	Children []int32
}

type namedRecord struct {
	_msgpack struct{} `msgpack:",as_array"`
	Name     string
	Roots    []int32
}
