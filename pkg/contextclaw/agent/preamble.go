package agent

import (
	"sort"
	"strings"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

// PromptLayer orders the sections of the system preamble. Lower values come
// first.
type PromptLayer int

const (
	LayerCore     PromptLayer = 0  // Base identity.
	LayerIdentity PromptLayer = 10 // Custom instructions.
)

type layerEntry struct {
	layer   PromptLayer
	content string
}

// ComposePreamble assembles the system preamble from the configured layers.
// The result only depends on cfg, so it is stable across turns and the loop
// can recognise an already-injected preamble by content.
func ComposePreamble(cfg Config) string {
	core := cfg.Preamble
	if strings.TrimSpace(core) == "" {
		core = DefaultPreamble
	}
	layers := []layerEntry{{layer: LayerCore, content: core}}

	if s := strings.TrimSpace(cfg.Instructions); s != "" {
		layers = append(layers, layerEntry{
			layer:   LayerIdentity,
			content: "## Custom Instructions\n\n" + s,
		})
	}
	return assembleLayers(layers)
}

func assembleLayers(layers []layerEntry) string {
	sort.SliceStable(layers, func(i, j int) bool {
		return layers[i].layer < layers[j].layer
	})
	parts := make([]string, 0, len(layers))
	for _, l := range layers {
		parts = append(parts, l.content)
	}
	return strings.Join(parts, "\n\n")
}

// EnsurePreamble returns log with a leading system message holding preamble.
// If the first message already is that preamble, log is returned as is.
func EnsurePreamble(log conversation.Log, preamble string) (conversation.Log, bool) {
	if log.StartsWithSystem(preamble) {
		return log, false
	}
	out := make(conversation.Log, 0, len(log)+1)
	out = append(out, conversation.NewSystem(preamble))
	out = append(out, log...)
	return out, true
}
