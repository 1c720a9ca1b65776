package outline

// ActionObservation is the result of executing an action, attached to the
// node that produced it. Metadata keys are semantically
// `FileContentUpdated(fs_file_path)`; since that is currently the only
// variant in the metadata key's tagged union, it is represented directly
// as a map keyed by fs_file_path rather than a wrapper struct.
type ActionObservation struct {
	Message          string            `json:"message"`
	Summary          string            `json:"summary,omitempty"`
	Thinking         string            `json:"thinking,omitempty"`
	Terminal         bool              `json:"terminal"`
	ExpectCorrection bool              `json:"expect_correction"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// FileContentUpdated records that fsFilePath's content changed to
// newContent as a side effect of this observation.
func (o *ActionObservation) FileContentUpdated(fsFilePath, newContent string) {
	if o.Metadata == nil {
		o.Metadata = make(map[string]string)
	}
	o.Metadata[fsFilePath] = newContent
}

// UpdatedFileContent returns the recorded post-observation content for
// fsFilePath, if this observation updated it.
func (o ActionObservation) UpdatedFileContent(fsFilePath string) (string, bool) {
	content, ok := o.Metadata[fsFilePath]
	return content, ok
}

// ErroredObservation builds a non-terminal observation describing a tool or parse
// failure so the tree can record it and learn from it, per §7.
func ErroredObservation(message string) ActionObservation {
	return ActionObservation{Message: message, Terminal: false}
}
