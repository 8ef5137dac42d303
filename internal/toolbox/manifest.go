// ABOUTME: Caller-facing manifest derived from the registry on every request.
// ABOUTME: Renders the Required sentinel as "REQUIRED" and adds an MCP inputSchema.

package toolbox

// ManifestParam describes one parameter in the manifest.
// Default is RequiredLabel for parameters the caller must supply.
type ManifestParam struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Default     any      `json:"default"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

// SchemaProperty is a JSON Schema property for one parameter.
type SchemaProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// InputSchema is the JSON Schema object MCP clients expect in tools/list.
type InputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// ManifestEntry is the caller-facing description of a single tool.
type ManifestEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ManifestParam `json:"parameters"`
	InputSchema InputSchema     `json:"inputSchema"`
}

// Manifest snapshots every registered tool in registration order.
// It is recomputed on each call and never cached.
func (r *Registry) Manifest() []ManifestEntry {
	tools := r.List()
	entries := make([]ManifestEntry, 0, len(tools))
	for _, t := range tools {
		entries = append(entries, manifestEntry(t))
	}
	return entries
}

func manifestEntry(t *Tool) ManifestEntry {
	entry := ManifestEntry{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  make([]ManifestParam, 0, len(t.Parameters)),
		InputSchema: InputSchema{
			Type:       "object",
			Properties: make(map[string]SchemaProperty, len(t.Parameters)),
		},
	}

	for _, p := range t.Parameters {
		param := ManifestParam{
			Name:        p.Name,
			Type:        string(p.Type),
			Default:     p.Default,
			Enum:        p.Enum,
			Description: p.Description,
		}
		prop := SchemaProperty{
			Type:        p.Type.jsonSchemaType(),
			Description: p.Description,
			Enum:        p.Enum,
		}
		if p.IsRequired() {
			param.Default = RequiredLabel
			entry.InputSchema.Required = append(entry.InputSchema.Required, p.Name)
		} else {
			prop.Default = p.Default
		}
		entry.Parameters = append(entry.Parameters, param)
		entry.InputSchema.Properties[p.Name] = prop
	}
	return entry
}
