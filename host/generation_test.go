package host

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	domainerrors "github.com/tsuki-dev/tsuki-host/domain/errors"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
)

func TestSelectGeneration(t *testing.T) {
	tests := []struct {
		contract entities.Contract
		version  string
		want     string
	}{
		{entities.ContractExtension, "0.0.1", "extension@0.0.1"},
		{entities.ContractExtension, "0.0.9", "extension@0.0.1"},
		{entities.ContractExtension, "0.1.0-alpha", "extension@0.0.1"},
		{entities.ContractExtension, "0.1.0-draft", "extension@0.1.0-draft"},
		{entities.ContractExtension, "0.1.0", "extension@0.1.0-draft"},
		{entities.ContractExtension, "0.1.0-rc.1", "extension@0.1.0-draft"},
		{entities.ContractExtension, "3.2.1", "extension@0.1.0-draft"},
		{entities.ContractProcessor, "0.1.0", "processor@0.1.0-draft"},
		{entities.ContractProcessor, "1.0.0", "processor@0.1.0-draft"},
	}
	for _, tt := range tests {
		t.Run(string(tt.contract)+"@"+tt.version, func(t *testing.T) {
			gen, err := SelectGeneration(tt.contract, tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.want, gen.String())
		})
	}
}

func TestSelectGeneration_Unsupported(t *testing.T) {
	tests := []struct {
		contract entities.Contract
		version  string
	}{
		{entities.ContractExtension, "0.0.0"},
		{entities.ContractProcessor, "0.0.1"},
		{entities.ContractProcessor, "0.1.0-alpha"},
		{"theme", "1.0.0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.contract)+"@"+tt.version, func(t *testing.T) {
			_, err := SelectGeneration(tt.contract, tt.version)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domainerrors.ErrVersionUnsupported))

			var vu *domainerrors.VersionUnsupportedError
			require.ErrorAs(t, err, &vu)
			assert.Equal(t, tt.contract, vu.Contract)
			assert.Equal(t, tt.version, vu.Version)
		})
	}
}

func TestSelectGeneration_InvalidVersion(t *testing.T) {
	_, err := SelectGeneration(entities.ContractExtension, "latest")
	var ve *domainerrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.False(t, errors.Is(err, domainerrors.ErrVersionUnsupported))
}

func TestGenerationSurface(t *testing.T) {
	v001 := generation(t, entities.ContractExtension, "0.0.1")
	assert.Equal(t, "tsuki:extension/host@0.0.1", v001.Module)
	assert.Equal(t, []string{ExportSeriesEpisodes, ExportSeriesInfo, ExportSeriesVideos, ExportSearch}, v001.Exports())
	assert.NotContains(t, v001.Imports(), hostfuncs.FuncKVOpen)
	assert.Contains(t, v001.Imports(), hostfuncs.FuncHTTPSend)
	assert.Contains(t, v001.Imports(), hostfuncs.FuncLog)

	v010 := generation(t, entities.ContractExtension, "0.1.0")
	assert.Contains(t, v010.Exports(), ExportFilters)
	assert.Contains(t, v010.Imports(), hostfuncs.FuncKVListKeys)
	assert.Contains(t, v010.Imports(), hostfuncs.FuncCacheGet)
	assert.NotContains(t, v010.Imports(), hostfuncs.FuncResponseOutparamSet)

	proc := generation(t, entities.ContractProcessor, "0.1.0")
	assert.Equal(t, []string{ExportHandleRequest, ExportResolveResource}, proc.Exports())
	for _, name := range []string{
		hostfuncs.FuncProcessSpawn, hostfuncs.FuncFFmpegPath,
		hostfuncs.FuncIncomingRequestRead, hostfuncs.FuncResponseOutparamSet,
	} {
		assert.Contains(t, proc.Imports(), name)
	}
}

func TestGenerations_ReturnsCopy(t *testing.T) {
	gens := Generations()
	require.Len(t, gens, 3)
	gens[0] = nil
	assert.NotNil(t, Generations()[0])
}
