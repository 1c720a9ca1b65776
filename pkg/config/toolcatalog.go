package config

import (
	"fmt"

	"github.com/tarsiersync/forgecode/pkg/outline"
)

// ResolveTools converts a YAML tool-name list (as found in Defaults.Tools
// or a per-chain override) into the closed outline.ToolType set the
// inference engine is built with (§6).
func ResolveTools(names []string) ([]outline.ToolType, error) {
	tools := make([]outline.ToolType, 0, len(names))
	for _, name := range names {
		t, ok := outline.ParseToolType(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
		}
		tools = append(tools, t)
	}
	return tools, nil
}
