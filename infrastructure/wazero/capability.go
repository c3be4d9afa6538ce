package wazero

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// MemoryExport is the linear memory every guest must export.
const MemoryExport = "memory"

// Signature is a wasm function type.
type Signature struct {
	Params  []api.ValueType
	Results []api.ValueType
}

func (s Signature) String() string {
	return fmt.Sprintf("(%s) -> (%s)", typeNames(s.Params), typeNames(s.Results))
}

func typeNames(types []api.ValueType) string {
	out := ""
	for i, t := range types {
		if i > 0 {
			out += ","
		}
		out += api.ValueTypeName(t)
	}
	return out
}

// CheckImports verifies that every function compiled imports resolves to an
// export of one of the allowed modules already instantiated in runtime, with
// a matching signature. Imported memories, tables and globals are rejected.
// All problems are reported together.
func CheckImports(runtime wazero.Runtime, compiled wazero.CompiledModule, allowed ...string) error {
	var errs []error
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if !slices.Contains(allowed, module) {
			errs = append(errs, fmt.Errorf("import %s.%s: module %q is not linked", module, name, module))
			continue
		}
		host := runtime.Module(module)
		if host == nil {
			errs = append(errs, fmt.Errorf("import %s.%s: module %q is not instantiated", module, name, module))
			continue
		}
		export, ok := host.ExportedFunctionDefinitions()[name]
		if !ok {
			errs = append(errs, fmt.Errorf("import %s.%s: no such function", module, name))
			continue
		}
		want := Signature{Params: export.ParamTypes(), Results: export.ResultTypes()}
		got := Signature{Params: def.ParamTypes(), Results: def.ResultTypes()}
		if !sameSignature(want, got) {
			errs = append(errs, fmt.Errorf("import %s.%s: signature %s, host provides %s", module, name, got, want))
		}
	}
	for _, def := range compiled.ImportedMemories() {
		module, name, _ := def.Import()
		errs = append(errs, fmt.Errorf("import %s.%s: memory imports are not supported", module, name))
	}
	return errors.Join(errs...)
}

// CheckExports verifies that compiled exports a linear memory and every
// function in required with the given signature.
func CheckExports(compiled wazero.CompiledModule, required map[string]Signature) error {
	var errs []error
	if _, ok := compiled.ExportedMemories()[MemoryExport]; !ok {
		errs = append(errs, fmt.Errorf("missing %q export", MemoryExport))
	}

	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}
	sort.Strings(names)

	exports := compiled.ExportedFunctions()
	for _, name := range names {
		want := required[name]
		def, ok := exports[name]
		if !ok {
			errs = append(errs, fmt.Errorf("missing %q export", name))
			continue
		}
		got := Signature{Params: def.ParamTypes(), Results: def.ResultTypes()}
		if !sameSignature(want, got) {
			errs = append(errs, fmt.Errorf("export %q has signature %s, want %s", name, got, want))
		}
	}
	return errors.Join(errs...)
}

func sameSignature(a, b Signature) bool {
	return slices.Equal(a.Params, b.Params) && slices.Equal(a.Results, b.Results)
}
