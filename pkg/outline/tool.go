package outline

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ToolType is the closed set of tools the inference engine may emit. The
// tool registry is keyed by this enum, never by string (§9 "keep the tool
// registry keyed by ToolType enum, not strings").
type ToolType int

const (
	ToolListFiles ToolType = iota
	ToolFindFiles
	ToolSearchFileContentWithRegex
	ToolOpenFile
	ToolCodeEditing
	ToolTerminalCommand
	ToolLSPDiagnostics
	ToolSemanticSearch
	ToolRepoMapGeneration
	ToolTestRunner
	ToolAttemptCompletion
	ToolAskFollowupQuestions
	ToolReasoning
	ToolContextCrunching
	ToolRequestScreenshot
	ToolMcpTool
	ToolThinking
)

var toolTypeNames = [...]string{
	"ListFiles",
	"FindFiles",
	"SearchFileContentWithRegex",
	"OpenFile",
	"CodeEditing",
	"TerminalCommand",
	"LSPDiagnostics",
	"SemanticSearch",
	"RepoMapGeneration",
	"TestRunner",
	"AttemptCompletion",
	"AskFollowupQuestions",
	"Reasoning",
	"ContextCrunching",
	"RequestScreenshot",
	"McpTool",
	"Thinking",
}

func (t ToolType) String() string {
	if int(t) < 0 || int(t) >= len(toolTypeNames) {
		return "Unknown"
	}
	return toolTypeNames[t]
}

// IsTerminal reports whether this tool ends a branch awaiting either
// completion or the user (§4.I step 5.e).
func (t ToolType) IsTerminal() bool {
	return t == ToolAttemptCompletion || t == ToolAskFollowupQuestions
}

// ParseToolType resolves a tool's name (as it would appear in a YAML tool
// catalog) back to its ToolType, for config loading.
func ParseToolType(name string) (ToolType, bool) {
	for i, n := range toolTypeNames {
		if n == name {
			return ToolType(i), true
		}
	}
	return 0, false
}

// ToolInputPartial is the tagged variant over the tool catalog's payloads.
// The set of implementers is closed and known at compile time, so a
// dispatcher pattern-matches on ToolType() rather than using reflection or
// a string registry.
type ToolInputPartial interface {
	ToolType() ToolType
	// CanonicalString returns a deterministic string form used for
	// duplicate-action comparison (§4.E): two sibling actions are
	// duplicates if their ToolType matches and their CanonicalString
	// matches.
	CanonicalString() string
}

type ListFilesInput struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive,omitempty"`
}

func (i ListFilesInput) ToolType() ToolType { return ToolListFiles }
func (i ListFilesInput) CanonicalString() string {
	return fmt.Sprintf("path=%s;recursive=%v", i.Path, i.Recursive)
}

type FindFilesInput struct {
	Glob string `json:"glob"`
}

func (i FindFilesInput) ToolType() ToolType        { return ToolFindFiles }
func (i FindFilesInput) CanonicalString() string   { return "glob=" + i.Glob }

type SearchFileContentWithRegexInput struct {
	Regex     string `json:"regex"`
	PathGlob  string `json:"path_glob,omitempty"`
}

func (i SearchFileContentWithRegexInput) ToolType() ToolType { return ToolSearchFileContentWithRegex }
func (i SearchFileContentWithRegexInput) CanonicalString() string {
	return fmt.Sprintf("regex=%s;path_glob=%s", i.Regex, i.PathGlob)
}

type OpenFileInput struct {
	FsPath string `json:"fs_path"`
	Range  *Range `json:"range,omitempty"`
}

func (i OpenFileInput) ToolType() ToolType { return ToolOpenFile }
func (i OpenFileInput) CanonicalString() string {
	if i.Range == nil {
		return "path=" + i.FsPath
	}
	return fmt.Sprintf("path=%s;range=%+v", i.FsPath, *i.Range)
}

// CodeEditorCommand is the closed set of sub-operations CodeEditing may
// perform.
type CodeEditorCommand int

const (
	CodeEditorCreate CodeEditorCommand = iota
	CodeEditorInsert
	CodeEditorStrReplace
	CodeEditorUndoEdit
	CodeEditorView
)

func (c CodeEditorCommand) String() string {
	switch c {
	case CodeEditorCreate:
		return "Create"
	case CodeEditorInsert:
		return "Insert"
	case CodeEditorStrReplace:
		return "StrReplace"
	case CodeEditorUndoEdit:
		return "UndoEdit"
	case CodeEditorView:
		return "View"
	default:
		return "Unknown"
	}
}

type CodeEditorInput struct {
	Command CodeEditorCommand `json:"command"`
	Path    string             `json:"path"`
	Payload string             `json:"payload,omitempty"`
}

func (i CodeEditorInput) ToolType() ToolType { return ToolCodeEditing }
func (i CodeEditorInput) CanonicalString() string {
	return fmt.Sprintf("command=%s;path=%s;payload=%s", i.Command, i.Path, i.Payload)
}

type TerminalCommandInput struct {
	Command string `json:"command"`
}

func (i TerminalCommandInput) ToolType() ToolType      { return ToolTerminalCommand }
func (i TerminalCommandInput) CanonicalString() string { return "command=" + i.Command }

type LSPDiagnosticsInput struct {
	FsPath string `json:"fs_path"`
}

func (i LSPDiagnosticsInput) ToolType() ToolType      { return ToolLSPDiagnostics }
func (i LSPDiagnosticsInput) CanonicalString() string { return "path=" + i.FsPath }

type SemanticSearchInput struct {
	Query string `json:"query"`
}

func (i SemanticSearchInput) ToolType() ToolType      { return ToolSemanticSearch }
func (i SemanticSearchInput) CanonicalString() string { return "query=" + i.Query }

type RepoMapGenerationInput struct {
	Root string `json:"root"`
}

func (i RepoMapGenerationInput) ToolType() ToolType      { return ToolRepoMapGeneration }
func (i RepoMapGenerationInput) CanonicalString() string { return "root=" + i.Root }

type TestRunnerInput struct {
	Target string `json:"target"`
}

func (i TestRunnerInput) ToolType() ToolType      { return ToolTestRunner }
func (i TestRunnerInput) CanonicalString() string { return "target=" + i.Target }

type AttemptCompletionInput struct {
	FinalMessage string `json:"final_message"`
}

func (i AttemptCompletionInput) ToolType() ToolType      { return ToolAttemptCompletion }
func (i AttemptCompletionInput) CanonicalString() string { return "final_message=" + i.FinalMessage }

type AskFollowupQuestionsInput struct {
	Question string `json:"question"`
}

func (i AskFollowupQuestionsInput) ToolType() ToolType      { return ToolAskFollowupQuestions }
func (i AskFollowupQuestionsInput) CanonicalString() string { return "question=" + i.Question }

type ReasoningInput struct {
	Instruction string `json:"instruction"`
}

func (i ReasoningInput) ToolType() ToolType      { return ToolReasoning }
func (i ReasoningInput) CanonicalString() string { return "instruction=" + i.Instruction }

type ContextCrunchingInput struct {
	Summary string `json:"summary"`
}

func (i ContextCrunchingInput) ToolType() ToolType      { return ToolContextCrunching }
func (i ContextCrunchingInput) CanonicalString() string { return "summary=" + i.Summary }

type RequestScreenshotInput struct{}

func (i RequestScreenshotInput) ToolType() ToolType      { return ToolRequestScreenshot }
func (i RequestScreenshotInput) CanonicalString() string { return "" }

type McpToolInput struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

func (i McpToolInput) ToolType() ToolType { return ToolMcpTool }
func (i McpToolInput) CanonicalString() string {
	keys := make([]string, 0, len(i.Args))
	for k := range i.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := "name=" + i.Name
	for _, k := range keys {
		s += fmt.Sprintf(";%s=%v", k, i.Args[k])
	}
	return s
}

type ThinkingInput struct {
	Text string `json:"text"`
}

func (i ThinkingInput) ToolType() ToolType      { return ToolThinking }
func (i ThinkingInput) CanonicalString() string { return "text=" + i.Text }

// ActionToolParameters is the tagged variant produced by the inference
// engine for a frontier node: either the tool invocation failed to parse
// (Errored) or it carries a concrete tool-use id plus partial input.
type ActionToolParameters struct {
	ErrorReason string           `json:"error_reason,omitempty"`
	ToolUseID   string           `json:"tool_use_id,omitempty"`
	Partial     ToolInputPartial `json:"-"`
}

// Errored constructs the Errored variant.
func Errored(reason string) ActionToolParameters {
	return ActionToolParameters{ErrorReason: reason}
}

// NewActionToolParameters constructs the Tool variant.
func NewActionToolParameters(toolUseID string, partial ToolInputPartial) ActionToolParameters {
	return ActionToolParameters{ToolUseID: toolUseID, Partial: partial}
}

// IsErrored reports whether this is the Errored variant.
func (p ActionToolParameters) IsErrored() bool { return p.Partial == nil }

// ToToolType returns the underlying ToolType, or false for the Errored
// variant.
func (p ActionToolParameters) ToToolType() (ToolType, bool) {
	if p.Partial == nil {
		return 0, false
	}
	return p.Partial.ToolType(), true
}

// CanonicalString returns a deterministic string used for duplicate-action
// comparison; the Errored variant never participates in duplicate
// detection since it has no tool type.
func (p ActionToolParameters) CanonicalString() string {
	if p.Partial == nil {
		return ""
	}
	return p.Partial.CanonicalString()
}

// actionToolParametersWire is the on-disk JSON shape: a discriminated
// union tagged by "tool_type", flattened alongside tool_use_id/error.
type actionToolParametersWire struct {
	ErrorReason string          `json:"error_reason,omitempty"`
	ToolUseID   string          `json:"tool_use_id,omitempty"`
	ToolType    string          `json:"tool_type,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
}

func (p ActionToolParameters) MarshalJSON() ([]byte, error) {
	wire := actionToolParametersWire{
		ErrorReason: p.ErrorReason,
		ToolUseID:   p.ToolUseID,
	}
	if p.Partial != nil {
		wire.ToolType = p.Partial.ToolType().String()
		raw, err := json.Marshal(p.Partial)
		if err != nil {
			return nil, err
		}
		wire.Input = raw
	}
	return json.Marshal(wire)
}

func (p *ActionToolParameters) UnmarshalJSON(data []byte) error {
	var wire actionToolParametersWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.ErrorReason = wire.ErrorReason
	p.ToolUseID = wire.ToolUseID
	if wire.ToolType == "" {
		p.Partial = nil
		return nil
	}
	partial, err := decodeToolInputPartial(wire.ToolType, wire.Input)
	if err != nil {
		return err
	}
	p.Partial = partial
	return nil
}

func decodeToolInputPartial(toolType string, raw json.RawMessage) (ToolInputPartial, error) {
	decode := func(v ToolInputPartial) (ToolInputPartial, error) {
		if len(raw) == 0 {
			return v, nil
		}
		// json.Unmarshal needs an addressable pointer; v is passed by
		// value above only to pick the right concrete type.
		switch p := v.(type) {
		case ListFilesInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case FindFilesInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case SearchFileContentWithRegexInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case OpenFileInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case CodeEditorInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case TerminalCommandInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case LSPDiagnosticsInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case SemanticSearchInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case RepoMapGenerationInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case TestRunnerInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case AttemptCompletionInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case AskFollowupQuestionsInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case ReasoningInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case ContextCrunchingInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case RequestScreenshotInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case McpToolInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		case ThinkingInput:
			err := json.Unmarshal(raw, &p)
			return p, err
		default:
			return nil, fmt.Errorf("outline: unhandled tool input type %T", v)
		}
	}

	switch toolType {
	case ToolListFiles.String():
		return decode(ListFilesInput{})
	case ToolFindFiles.String():
		return decode(FindFilesInput{})
	case ToolSearchFileContentWithRegex.String():
		return decode(SearchFileContentWithRegexInput{})
	case ToolOpenFile.String():
		return decode(OpenFileInput{})
	case ToolCodeEditing.String():
		return decode(CodeEditorInput{})
	case ToolTerminalCommand.String():
		return decode(TerminalCommandInput{})
	case ToolLSPDiagnostics.String():
		return decode(LSPDiagnosticsInput{})
	case ToolSemanticSearch.String():
		return decode(SemanticSearchInput{})
	case ToolRepoMapGeneration.String():
		return decode(RepoMapGenerationInput{})
	case ToolTestRunner.String():
		return decode(TestRunnerInput{})
	case ToolAttemptCompletion.String():
		return decode(AttemptCompletionInput{})
	case ToolAskFollowupQuestions.String():
		return decode(AskFollowupQuestionsInput{})
	case ToolReasoning.String():
		return decode(ReasoningInput{})
	case ToolContextCrunching.String():
		return decode(ContextCrunchingInput{})
	case ToolRequestScreenshot.String():
		return decode(RequestScreenshotInput{})
	case ToolMcpTool.String():
		return decode(McpToolInput{})
	case ToolThinking.String():
		return decode(ThinkingInput{})
	default:
		return nil, fmt.Errorf("outline: unknown tool type %q", toolType)
	}
}
