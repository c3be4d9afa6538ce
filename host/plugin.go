package host

import (
	"context"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
)

// Plugin is a loaded plugin of either contract. Exactly one of Extension and
// Processor reports ok.
type Plugin struct {
	extension *Extension
	processor *Processor
}

func newPlugin(t *Template) *Plugin {
	if t.gen.Contract == entities.ContractProcessor {
		return &Plugin{processor: &Processor{Template: t}}
	}
	return &Plugin{extension: &Extension{Template: t}}
}

func (p *Plugin) template() *Template {
	if p.processor != nil {
		return p.processor.Template
	}
	return p.extension.Template
}

// Kind returns the contract the plugin fulfils.
func (p *Plugin) Kind() entities.Contract {
	return p.template().gen.Contract
}

// Metadata returns what the plugin declared about itself.
func (p *Plugin) Metadata() entities.PluginMetadata {
	return p.template().meta
}

// Generation returns the interface generation the plugin was linked against.
func (p *Plugin) Generation() *Generation {
	return p.template().gen
}

// HostFunctions lists the host functions available to the plugin.
func (p *Plugin) HostFunctions() []string {
	return p.template().HostFunctions()
}

// Extension returns the extension facade.
func (p *Plugin) Extension() (*Extension, bool) {
	return p.extension, p.extension != nil
}

// Processor returns the processor facade.
func (p *Plugin) Processor() (*Processor, bool) {
	return p.processor, p.processor != nil
}

// Close releases the compiled module. Calls in flight are not interrupted.
func (p *Plugin) Close(ctx context.Context) error {
	return p.template().Close(ctx)
}
