package outline

// Snippet is a materialized view of a symbol's text at a point in time.
// It is owned by the session, not the parser: it gets recreated whenever
// the session refreshes its view of a file, and two Snippets for the same
// symbol taken at different times are expected to differ.
type Snippet struct {
	SymbolName        string `json:"symbol_name"`
	FsFilePath        string `json:"fs_file_path"`
	Range             Range  `json:"range"`
	Content           string `json:"content"`
	Language          string `json:"language,omitempty"`
	OutlineNodeContent string `json:"outline_node_content"`
}
