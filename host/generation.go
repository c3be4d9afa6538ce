package host

import (
	"fmt"
	"slices"

	"github.com/blang/semver/v4"
	"github.com/tetratelabs/wazero/api"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	domainerrors "github.com/tsuki-dev/tsuki-host/domain/errors"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
	wazeroadapter "github.com/tsuki-dev/tsuki-host/infrastructure/wazero"
)

// Guest export names.
const (
	ExportFilters         = "filters"
	ExportSearch          = "search"
	ExportSeriesInfo      = "get-series-info"
	ExportSeriesEpisodes  = "get-series-episodes"
	ExportSeriesVideos    = "get-series-videos"
	ExportResolveResource = "resolve-resource"
	ExportHandleRequest   = "handle-request"
)

type generationID int

const (
	genExtensionV001 generationID = iota + 1
	genExtensionV010Draft
	genProcessorV010Draft
)

var (
	sigPacked = wazeroadapter.Signature{
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI64},
	}
	sigHandler = wazeroadapter.Signature{
		Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
	}
	sigAllocate = wazeroadapter.Signature{
		Params:  []api.ValueType{api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
)

// Generation is one version-floored import/export surface of a contract.
type Generation struct {
	bundles  func() []hostfuncs.HostFuncBundle
	exports  map[string]wazeroadapter.Signature
	Contract entities.Contract
	Module   string
	Floor    semver.Version
	id       generationID
	keyValue bool
	inbound  bool
}

func (g *Generation) String() string {
	return fmt.Sprintf("%s@%s", g.Contract, g.Floor)
}

// Exports returns the sorted names of the functions a guest must export.
func (g *Generation) Exports() []string {
	names := make([]string, 0, len(g.exports))
	for name := range g.exports {
		if name != wazeroadapter.AllocateExport {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Imports returns the sorted names of the host functions linked for g.
func (g *Generation) Imports() []string {
	var names []string
	for _, b := range g.bundles() {
		for name := range b.Handlers() {
			names = append(names, name)
		}
	}
	if g.inbound {
		names = append(names, hostfuncs.FuncResponseOutparamSet)
	}
	slices.Sort(names)
	return names
}

// generations lists every known generation, oldest first within a contract.
var generations = []*Generation{
	{
		id:       genExtensionV001,
		Contract: entities.ContractExtension,
		Floor:    semver.MustParse("0.0.1"),
		Module:   "tsuki:extension/host@0.0.1",
		exports: map[string]wazeroadapter.Signature{
			ExportSearch:                 sigPacked,
			ExportSeriesInfo:             sigPacked,
			ExportSeriesEpisodes:         sigPacked,
			ExportSeriesVideos:           sigPacked,
			wazeroadapter.AllocateExport: sigAllocate,
		},
		bundles: func() []hostfuncs.HostFuncBundle {
			return []hostfuncs.HostFuncBundle{hostfuncs.EgressBundle(), hostfuncs.LoggingBundle()}
		},
	},
	{
		id:       genExtensionV010Draft,
		Contract: entities.ContractExtension,
		Floor:    semver.MustParse("0.1.0-draft"),
		Module:   "tsuki:extension/host@0.1.0-draft",
		keyValue: true,
		exports: map[string]wazeroadapter.Signature{
			ExportFilters:                sigPacked,
			ExportSearch:                 sigPacked,
			ExportSeriesInfo:             sigPacked,
			ExportSeriesEpisodes:         sigPacked,
			ExportSeriesVideos:           sigPacked,
			wazeroadapter.AllocateExport: sigAllocate,
		},
		bundles: func() []hostfuncs.HostFuncBundle {
			return []hostfuncs.HostFuncBundle{
				hostfuncs.EgressBundle(), hostfuncs.LoggingBundle(),
				hostfuncs.KeyValueBundle(), hostfuncs.CacheBundle(),
			}
		},
	},
	{
		id:       genProcessorV010Draft,
		Contract: entities.ContractProcessor,
		Floor:    semver.MustParse("0.1.0-draft"),
		Module:   "tsuki:processor/host@0.1.0-draft",
		keyValue: true,
		inbound:  true,
		exports: map[string]wazeroadapter.Signature{
			ExportResolveResource:        sigPacked,
			ExportHandleRequest:          sigHandler,
			wazeroadapter.AllocateExport: sigAllocate,
		},
		bundles: func() []hostfuncs.HostFuncBundle {
			return []hostfuncs.HostFuncBundle{
				hostfuncs.EgressBundle(), hostfuncs.LoggingBundle(),
				hostfuncs.KeyValueBundle(), hostfuncs.CacheBundle(),
				hostfuncs.ProcessBundle(), hostfuncs.InboundBundle(),
			}
		},
	},
}

// Generations returns every known generation.
func Generations() []*Generation {
	return slices.Clone(generations)
}

// SelectGeneration returns the generation of contract with the highest floor
// not above version.
func SelectGeneration(contract entities.Contract, version string) (*Generation, error) {
	v, err := semver.Parse(version)
	if err != nil {
		return nil, &domainerrors.ValidationError{Reason: fmt.Sprintf("invalid version %q", version), Err: err}
	}

	var best *Generation
	for _, g := range generations {
		if g.Contract != contract || g.Floor.GT(v) {
			continue
		}
		if best == nil || g.Floor.GT(best.Floor) {
			best = g
		}
	}
	if best == nil {
		return nil, &domainerrors.VersionUnsupportedError{Contract: contract, Version: version}
	}
	return best, nil
}
