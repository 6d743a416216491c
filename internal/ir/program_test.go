package ir

import (
	"bytes"
	"strings"
	"testing"

	"ampcap/internal/types"
)

func buildTiny(t *testing.T) (*Program, FuncID) {
	t.Helper()
	p := NewProgram()
	i32 := p.Types.Int(types.Width32)
	void := p.Types.Void()
	one := p.AddConst(Const{Kind: ConstInt, Type: i32, Bits: 1})
	fn := p.AddFunc(&Func{Name: "main", Result: void})
	b0 := p.AddBlock()
	b1 := p.AddBlock()
	add := p.AddInstr(Instr{Op: OpAdd, Type: i32, Args: []Value{ConstValue(one), ConstValue(one)}})
	br := p.AddInstr(Instr{Op: OpBr, Type: void, Args: []Value{BlockValue(b1)}})
	ret := p.AddInstr(Instr{Op: OpRet, Type: void})
	p.Block(b0).Instrs = []InstrID{add, br}
	p.Block(b1).Instrs = []InstrID{ret}
	p.Func(fn).Blocks = []BlockID{b0, b1}
	return p, fn
}

func TestAddConstInterns(t *testing.T) {
	p := NewProgram()
	i32 := p.Types.Int(types.Width32)
	a := p.AddConst(Const{Kind: ConstInt, Type: i32, Bits: 7})
	b := p.AddConst(Const{Kind: ConstInt, Type: i32, Bits: 7})
	if a != b {
		t.Fatalf("expected interned constant, got %d and %d", a, b)
	}
	c := p.AppendConst(Const{Kind: ConstInt, Type: i32, Bits: 7})
	if c == a {
		t.Fatalf("AppendConst must not dedupe")
	}
	if got := p.AddConst(Const{Kind: ConstInt, Type: i32, Bits: 7}); got != a {
		t.Fatalf("first occurrence must own the key, got %d", got)
	}
}

func TestFuncLookup(t *testing.T) {
	p := NewProgram()
	void := p.Types.Void()
	p.AddFunc(&Func{Name: "dx.op.rawBufferStore.i32", Result: void, External: true})
	id := p.AddFunc(&Func{Name: "dx.op.dispatchMesh.struct.Payload", Result: void, External: true})
	if got, ok := p.FuncByPrefix("dx.op.dispatchMesh"); !ok || got != id {
		t.Fatalf("FuncByPrefix = %d, %v", got, ok)
	}
	if _, ok := p.FuncByName("missing"); ok {
		t.Fatalf("unexpected match")
	}
}

func TestLocate(t *testing.T) {
	p, fn := buildTiny(t)
	tests := []struct {
		pos        int
		block, off int
		wantErr    bool
	}{
		{pos: 0, block: 0, off: 0},
		{pos: 1, block: 0, off: 1},
		{pos: 2, block: 1, off: 0},
		{pos: 3, block: 1, off: 1},
		{pos: 4, wantErr: true},
		{pos: -1, wantErr: true},
	}
	for _, tt := range tests {
		b, off, err := p.Locate(fn, tt.pos)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Locate(%d): expected error", tt.pos)
			}
			continue
		}
		if err != nil || b != tt.block || off != tt.off {
			t.Errorf("Locate(%d) = %d,%d,%v want %d,%d", tt.pos, b, off, err, tt.block, tt.off)
		}
	}
	if got := len(p.Stream(fn)); got != 3 {
		t.Fatalf("stream length = %d, want 3", got)
	}
}

func TestCheckValid(t *testing.T) {
	p, _ := buildTiny(t)
	if err := Check(p); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheckReportsEveryBrokenBlock(t *testing.T) {
	p, fn := buildTiny(t)
	i32 := p.Types.Int(types.Width32)
	extra := p.AddBlock()
	p.Block(extra).Instrs = []InstrID{p.AddInstr(Instr{Op: OpMul, Type: i32, Args: []Value{InstrValue(0), InstrValue(0)}})}
	empty := p.AddBlock()
	p.Func(fn).Blocks = append(p.Func(fn).Blocks, extra, empty)
	err := Check(p)
	if err == nil {
		t.Fatalf("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{"unterminated block", "empty block"} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in %q", want, msg)
		}
	}
}

func TestCheckRejectsForeignBranch(t *testing.T) {
	p, fn := buildTiny(t)
	other := p.AddBlock()
	blk := p.Block(p.Func(fn).Blocks[0])
	br := p.Instr(blk.Instrs[1])
	br.Args = []Value{BlockValue(other)}
	if err := Check(p); err == nil || !strings.Contains(err.Error(), "outside the function") {
		t.Fatalf("expected foreign branch error, got %v", err)
	}
}

func TestDumpProgram(t *testing.T) {
	p, _ := buildTiny(t)
	var buf bytes.Buffer
	if err := DumpProgram(&buf, p, DumpOptions{}); err != nil {
		t.Fatalf("dump: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"define void @main()", "%0 = add i32 i32 1, i32 1", "br label bb1", "ret"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}

func TestAlignEncoding(t *testing.T) {
	for _, bytes := range []uint32{1, 2, 4, 8, 16} {
		if got := DecodeAlign(EncodeAlign(bytes)); got != bytes {
			t.Errorf("align %d round-trips to %d", bytes, got)
		}
	}
	if EncodeAlign(0) != 0 {
		t.Errorf("zero alignment must stay unspecified")
	}
}
