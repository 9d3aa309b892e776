package tau

// GeneratedToolArtifact is what the tool builder persists for one
// successfully built WASM tool.
type GeneratedToolArtifact struct {
	ToolName     string `json:"tool_name"`
	ManifestID   string `json:"manifest_id"`
	ManifestPath string `json:"manifest_path"`
	ModulePath   string `json:"module_path"` // .wasm
	SourcePath   string `json:"source_path"` // .wat
	MetadataPath string `json:"metadata_path"`
}

// ToolDefinition describes a tool callable by an LLM, in provider-neutral
// JSON-schema form.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON schema object
}
