package testutil

// Memory layout of canned guests: constant payloads are laid out from
// DataBase upwards and allocate always hands out AllocPtr.
const (
	DataBase = 1024
	AllocPtr = 32 * 1024
)

var (
	sigPacked  = [2][]ValType{{I32, I32}, {I64}}
	sigHandler = [2][]ValType{{I32, I32}, nil}
)

// GuestImport declares a host function a canned guest imports.
type GuestImport struct {
	Module  string
	Name    string
	Params  []ValType
	Results []ValType
}

// Guest is a canned plugin following the packed ptr+len ABI. Import i of
// NewGuest has function index i.
type Guest struct {
	mod  *Module
	next uint32
}

// NewGuest returns a guest exporting memory and allocate.
func NewGuest(imports ...GuestImport) *Guest {
	g := &Guest{mod: NewModule(), next: DataBase}
	for _, imp := range imports {
		g.mod.Import(imp.Module, imp.Name, imp.Params, imp.Results)
	}
	alloc := g.mod.Func([]ValType{I32}, []ValType{I32}, nil, I32Const(AllocPtr)...)
	g.mod.Export("allocate", alloc)
	return g
}

// Module exposes the underlying builder for custom sections or raw functions.
func (g *Guest) Module() *Module {
	return g.mod
}

// place stores data in memory and returns its packed ptr+len.
func (g *Guest) place(data []byte) int64 {
	ptr := g.next
	g.mod.Data(ptr, data)
	g.next += uint32(len(data))
	return Packed(ptr, uint32(len(data)))
}

// Const exports name as (i32,i32)->i64 always returning response.
func (g *Guest) Const(name string, response string) *Guest {
	idx := g.mod.Func(sigPacked[0], sigPacked[1], nil, I64Const(g.place([]byte(response)))...)
	g.mod.Export(name, idx)
	return g
}

// TrapAbove exports name like Const, but traps with unreachable when the
// input is longer than limit bytes.
func (g *Guest) TrapAbove(name string, limit int32, response string) *Guest {
	body := Concat(
		LocalGet(1), I32Const(limit), []byte{OpI32GtU},
		[]byte{OpIf, BlockVoid, OpUnreachable, OpEnd},
		I64Const(g.place([]byte(response))),
	)
	g.mod.Export(name, g.mod.Func(sigPacked[0], sigPacked[1], nil, body...))
	return g
}

// Calls exports name as (i32,i32)->i64: it invokes the packed-ABI import fn
// with request, drops the reply and returns response.
func (g *Guest) Calls(name string, fn uint32, request, response string) *Guest {
	body := Concat(
		I64Const(g.place([]byte(request))), Call(fn), []byte{OpDrop},
		I64Const(g.place([]byte(response))),
	)
	g.mod.Export(name, g.mod.Func(sigPacked[0], sigPacked[1], nil, body...))
	return g
}

// Handler exports name as (i32,i32)->() doing nothing.
func (g *Guest) Handler(name string) *Guest {
	g.mod.Export(name, g.mod.Func(sigHandler[0], sigHandler[1], nil))
	return g
}

// Responder exports name as (i32,i32)->() calling the raw import set with
// its second argument and response, like a processor answering a request.
func (g *Guest) Responder(name string, set uint32, response string) *Guest {
	body := Concat(
		LocalGet(1), I64Const(g.place([]byte(response))), Call(set), []byte{OpDrop},
	)
	g.mod.Export(name, g.mod.Func(sigHandler[0], sigHandler[1], nil, body...))
	return g
}

// Bytes encodes the guest.
func (g *Guest) Bytes() []byte {
	return g.mod.Bytes()
}
