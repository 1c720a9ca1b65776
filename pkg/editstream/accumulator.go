// Package editstream implements the streaming search/replace accumulator:
// a delta-driven parser that consumes an LLM's append-only token stream
// and turns `<<<<<<< SEARCH ... ======= ... >>>>>>> REPLACE` blocks into a
// sequence of EditDelta events, without ever buffering the full response
// (§4.B).
package editstream

import (
	"context"
	"strings"

	"github.com/tarsiersync/forgecode/pkg/outline"
)

const (
	markerSearchStart = "<<<<<<< SEARCH"
	markerDivider     = "======="
	markerReplaceEnd  = ">>>>>>> REPLACE"
	fence             = "```"
)

// state is the accumulator's current position in a single block's grammar.
// Transitions are driven by complete lines only.
type state int

const (
	stateNoBlock state = iota
	stateBlockStart
	stateBlockAccumulate
	stateBlockFound
)

// EventKind discriminates the events an Accumulator emits on its output
// channel. LockAcquire/LockRelease bracket the caller's exclusive
// per-file permit (§4.C); the rest describe the edit itself.
type EventKind int

const (
	EventLockAcquire EventKind = iota
	EventLockRelease
	EventEditStarted
	EventEditDelta
	EventEditEnd
	EventEndPollingStream
)

// LockReply is the accumulator's synchronous request for the latest file
// content, answered by whatever consumes the Accumulator's event channel
// (normally pkg/applicator). Content is nil when streaming is disabled,
// in which case the accumulator keeps its existing in-memory code lines.
type LockReply struct {
	Content *string
}

// Event is a single item on the Accumulator's output channel. Reply is
// only populated for EventLockAcquire; the consumer must send exactly one
// LockReply on it before the accumulator can proceed.
type Event struct {
	Kind  EventKind
	Range outline.Range
	Text  string
	Reply chan<- LockReply
}

// Accumulator consumes delta text and emits Events describing located
// edits. It is not safe for concurrent use from multiple goroutines; a
// single producer calls AddDelta/EndStreaming while a single consumer
// drains Events().
type Accumulator struct {
	events chan Event

	codeLines []string
	startLine int

	answerUpToNow    strings.Builder
	answerToShow     strings.Builder
	previousLine     int // index of the last complete line already processed, -1 if none
	state            state
	accumulated      string
	blockRange       outline.Range
	blockWasInsertion bool
	updatedBlock     *string
}

// New builds an Accumulator seeded with the current content being edited
// (split into lines) and startLine, the index into those lines from which
// search blocks are matched and at which an empty search block inserts.
func New(codeToEdit string, startLine int) *Accumulator {
	var lines []string
	if codeToEdit != "" {
		lines = strings.Split(codeToEdit, "\n")
	}
	return &Accumulator{
		events:       make(chan Event, 8),
		codeLines:    lines,
		startLine:    startLine,
		previousLine: -1,
		state:        stateNoBlock,
	}
}

// Events returns the channel the consumer must drain. It is closed after
// EndStreaming's EventEndPollingStream has been sent.
func (a *Accumulator) Events() <-chan Event { return a.events }

// CodeLines returns the current reconstruction of the edited region.
func (a *Accumulator) CodeLines() []string { return a.codeLines }

// AnswerToShow returns the human-visible commentary accumulated so far
// (everything outside of search/replace blocks).
func (a *Accumulator) AnswerToShow() string { return a.answerToShow.String() }

// AddDelta appends newly streamed text and processes any newly complete
// lines. It blocks while waiting on lock acquisition or while the output
// channel is full; ctx cancellation aborts the current block.
func (a *Accumulator) AddDelta(ctx context.Context, delta string) error {
	a.answerUpToNow.WriteString(delta)
	return a.processAnswer(ctx)
}

// EndStreaming flushes any trailing state and signals the consumer to
// shut down. Safe to call even if a block never terminated: an
// unterminated block at stream end is non-fatal per §4.B.
func (a *Accumulator) EndStreaming(ctx context.Context) error {
	if err := a.processAnswer(ctx); err != nil {
		return err
	}
	select {
	case a.events <- Event{Kind: EventEndPollingStream}:
	case <-ctx.Done():
		return ctx.Err()
	}
	close(a.events)
	return nil
}

func (a *Accumulator) emit(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case a.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquireLock requests the latest file content via the event channel and
// waits synchronously for the reply, mirroring the source's
// oneshot-channel lock-acquire handshake.
func (a *Accumulator) acquireLock(ctx context.Context) (*string, error) {
	reply := make(chan LockReply, 1)
	if err := a.emit(ctx, Event{Kind: EventLockAcquire, Reply: reply}); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.Content, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func lastCompleteLineIndex(s string) int {
	n := strings.Count(s, "\n")
	if n == 0 {
		return -1
	}
	return n - 1
}

// processAnswer advances the state machine over every line that has
// become complete since the last call. Only complete lines are consumed,
// so the parser is resumable and idempotent across chunk boundaries (§9
// "streaming parsing").
func (a *Accumulator) processAnswer(ctx context.Context) error {
	full := a.answerUpToNow.String()
	lastComplete := lastCompleteLineIndex(full)
	if lastComplete <= a.previousLine {
		return nil
	}
	lines := strings.Split(full, "\n")
	for i := a.previousLine + 1; i <= lastComplete; i++ {
		if err := a.processLine(ctx, lines[i]); err != nil {
			return err
		}
	}
	a.previousLine = lastComplete
	return nil
}

func (a *Accumulator) processLine(ctx context.Context, line string) error {
	switch a.state {
	case stateNoBlock:
		return a.processNoBlock(line)
	case stateBlockStart:
		return a.processBlockStart(ctx, line)
	case stateBlockAccumulate:
		return a.processBlockAccumulate(ctx, line)
	case stateBlockFound:
		return a.processBlockFound(ctx, line)
	default:
		return nil
	}
}

func (a *Accumulator) processNoBlock(line string) error {
	if line == markerSearchStart {
		a.state = stateBlockStart
		a.answerToShow.WriteString("Locating relevant snippet...\n")
		return nil
	}
	if line != fence && !strings.HasPrefix(line, fence) {
		a.answerToShow.WriteString(line)
		a.answerToShow.WriteString("\n")
	}
	return nil
}

func (a *Accumulator) processBlockStart(ctx context.Context, line string) error {
	if line == markerDivider {
		// Empty search block: insertion at start_line, no existing
		// content is matched or replaced (§4.B).
		content, err := a.acquireLock(ctx)
		if err != nil {
			return err
		}
		if content != nil {
			a.reseedCodeLines(*content)
		}
		r := outline.LineRange(a.startLine)
		a.accumulated = ""
		a.blockRange = r
		a.blockWasInsertion = true
		a.state = stateBlockFound
		return a.emit(ctx, Event{Kind: EventEditStarted, Range: r})
	}
	a.accumulated = line
	a.state = stateBlockAccumulate
	return nil
}

func (a *Accumulator) processBlockAccumulate(ctx context.Context, line string) error {
	if line == markerDivider {
		content, err := a.acquireLock(ctx)
		if err != nil {
			return err
		}
		if content != nil {
			a.reseedCodeLines(*content)
		}
		r, found := getRangeForSearchBlock(a.codeLines, a.startLine, a.accumulated)
		if !found {
			a.answerToShow.WriteString("Failed to find relevant code snippet...\n")
			a.state = stateNoBlock
			a.accumulated = ""
			return a.emit(ctx, Event{Kind: EventLockRelease})
		}
		a.blockRange = r
		a.blockWasInsertion = false
		a.state = stateBlockFound
		return a.emit(ctx, Event{Kind: EventEditStarted, Range: r})
	}
	a.accumulated = a.accumulated + "\n" + line
	return nil
}

// blockEndMarkers lists the lines that close a BlockFound state. Per §4.B
// / S3, a lone "=======" is tolerated wherever ">>>>>>> REPLACE" was
// expected — a broken replacement marker ends the block the same way.
var blockEndMarkers = map[string]bool{
	markerReplaceEnd: true,
	markerDivider:    true,
}

func (a *Accumulator) processBlockFound(ctx context.Context, line string) error {
	if blockEndMarkers[line] {
		a.state = stateNoBlock
		a.updateCodeLines()
		if err := a.emit(ctx, Event{Kind: EventEditEnd, Range: a.blockRange}); err != nil {
			return err
		}
		return a.emit(ctx, Event{Kind: EventLockRelease})
	}
	return a.updateBlock(ctx, line)
}

func (a *Accumulator) updateBlock(ctx context.Context, line string) error {
	if a.updatedBlock == nil {
		a.updatedBlock = new(string)
		*a.updatedBlock = line
		return a.emit(ctx, Event{Kind: EventEditDelta, Range: a.blockRange, Text: line})
	}
	*a.updatedBlock = *a.updatedBlock + "\n" + line
	return a.emit(ctx, Event{Kind: EventEditDelta, Range: a.blockRange, Text: "\n" + line})
}

// updateCodeLines splices the accumulated replacement buffer into
// codeLines at blockRange, then resets per-block state.
func (a *Accumulator) updateCodeLines() {
	defer func() { a.updatedBlock = nil }()

	if len(a.codeLines) == 0 {
		if a.updatedBlock != nil {
			a.codeLines = strings.Split(*a.updatedBlock, "\n")
		}
		return
	}

	startIdx := a.blockRange.StartLine()
	endIdx := a.blockRange.EndLine()
	if a.blockWasInsertion {
		// Pure insertion before startIdx; no existing line is removed
		// (spec.md §4.B: "without replacement of any existing line").
		endIdx = startIdx - 1
	}

	var replacement []string
	if a.updatedBlock != nil {
		replacement = strings.Split(*a.updatedBlock, "\n")
	}

	newLines := make([]string, 0, len(a.codeLines)+len(replacement))
	newLines = append(newLines, a.codeLines[:startIdx]...)
	newLines = append(newLines, replacement...)
	if endIdx+1 <= len(a.codeLines) {
		newLines = append(newLines, a.codeLines[endIdx+1:]...)
	}
	a.codeLines = newLines
}

func (a *Accumulator) reseedCodeLines(content string) {
	if content == "" {
		a.codeLines = nil
		return
	}
	a.codeLines = strings.Split(content, "\n")
}

// getRangeForSearchBlock locates searchBlock verbatim (line-for-line)
// within codeLines, scanning forward from startLine. The empty search
// block always resolves to a zero-width range at startLine, matching no
// existing content.
func getRangeForSearchBlock(codeLines []string, startLine int, searchBlock string) (outline.Range, bool) {
	if searchBlock == "" {
		return outline.LineRange(startLine), true
	}
	searchLines := strings.Split(searchBlock, "\n")
	if len(codeLines) < len(searchLines) {
		return outline.Range{}, false
	}
	from := startLine
	if from < 0 {
		from = 0
	}
	for i := from; i+len(searchLines) <= len(codeLines); i++ {
		if linesEqual(codeLines[i:i+len(searchLines)], searchLines) {
			return outline.NewRange(i, 0, 0, i+len(searchLines)-1, 0, 0), true
		}
	}
	return outline.Range{}, false
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
