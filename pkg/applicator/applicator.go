package applicator

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/tarsiersync/forgecode/pkg/editstream"
	"github.com/tarsiersync/forgecode/pkg/filelock"
)

// FileReader fetches the latest content of a file, the same contract as
// the OpenFile tool (§6) — its implementation lives outside the core
// (tool implementations are an external collaborator per §1).
type FileReader interface {
	OpenFile(ctx context.Context, fsFilePath string) (string, error)
}

// Request describes one streaming search/replace apply operation.
type Request struct {
	EditRequestID string
	SessionID     string
	ExchangeID    string
	PlanStepID    string
	FsFilePath    string

	// CodeToEdit and StartLine seed the accumulator: the current content
	// being edited and the line index from which search blocks are
	// matched.
	CodeToEdit string
	StartLine  int

	// ShouldStream controls whether lock-acquire re-fetches the file
	// through FileReader (true) or simply keeps the accumulator's
	// existing in-memory lines (false).
	ShouldStream bool

	// ApplyDirectly, when set, writes the accumulator's final code lines
	// straight to disk after the stream ends (parent dirs created as
	// needed), atomically.
	ApplyDirectly bool
}

// Result is what Apply returns once the stream has fully drained.
type Result struct {
	CodeLines    []string
	AnswerToShow string
}

// Applicator composes the accumulator, the file-lock registry, and the
// editor client, dispatching each editstream.Event to the right editor
// call or lock action (§4.D).
type Applicator struct {
	locks  *filelock.Registry
	editor *EditorClient
	reader FileReader
}

// New builds an Applicator. reader may be nil if no caller ever sets
// ShouldStream on a Request.
func New(locks *filelock.Registry, editor *EditorClient, reader FileReader) *Applicator {
	return &Applicator{locks: locks, editor: editor, reader: reader}
}

// Apply drives deltas (text chunks as the LLM streams them) through the
// accumulator, dispatching every resulting event to the editor, and
// returns once deltas is closed and the stream is fully flushed. ctx
// cancellation aborts the in-flight block; a partially-applied block
// remains applied, per §5 — undo is the caller's responsibility.
func (a *Applicator) Apply(ctx context.Context, req Request, deltas <-chan string) (*Result, error) {
	acc := editstream.New(req.CodeToEdit, req.StartLine)

	consumerErrCh := make(chan error, 1)
	go func() {
		consumerErrCh <- a.consume(ctx, req, acc)
	}()

	var produceErr error
loop:
	for {
		select {
		case text, ok := <-deltas:
			if !ok {
				produceErr = acc.EndStreaming(ctx)
				break loop
			}
			if err := acc.AddDelta(ctx, text); err != nil {
				produceErr = err
				break loop
			}
		case <-ctx.Done():
			produceErr = ctx.Err()
			break loop
		}
	}

	consumerErr := <-consumerErrCh
	if produceErr != nil {
		return nil, produceErr
	}
	if consumerErr != nil {
		return nil, consumerErr
	}

	result := &Result{CodeLines: acc.CodeLines(), AnswerToShow: acc.AnswerToShow()}

	if req.ApplyDirectly {
		if err := writeFileAtomically(req.FsFilePath, strings.Join(result.CodeLines, "\n")); err != nil {
			return result, err
		}
	}
	return result, nil
}

// consume drains acc's event channel, performing the editor calls and
// lock bookkeeping the accumulator's state machine requires.
func (a *Applicator) consume(ctx context.Context, req Request, acc *editstream.Accumulator) error {
	var release filelock.Release
	defer func() {
		if release != nil {
			release()
		}
	}()

	for ev := range acc.Events() {
		switch ev.Kind {
		case editstream.EventLockAcquire:
			r, _, err := a.locks.Acquire(ctx, req.FsFilePath)
			if err != nil {
				if ev.Reply != nil {
					ev.Reply <- editstream.LockReply{}
				}
				return err
			}
			release = r

			var content *string
			if req.ShouldStream && a.reader != nil {
				c, err := a.reader.OpenFile(ctx, req.FsFilePath)
				if err == nil {
					content = &c
				}
			}
			ev.Reply <- editstream.LockReply{Content: content}

		case editstream.EventLockRelease:
			if release != nil {
				release()
				release = nil
			}

		case editstream.EventEditStarted:
			if a.editor == nil {
				continue
			}
			if err := a.editor.SendEdit(ctx, EditedCodeStreamingRequest{
				EditRequestID: req.EditRequestID,
				SessionID:     req.SessionID,
				ExchangeID:    req.ExchangeID,
				PlanStepID:    req.PlanStepID,
				FsFilePath:    req.FsFilePath,
				Range:         ev.Range,
				Kind:          EditKindStart,
			}); err != nil {
				return err
			}
			if err := a.editor.SendEdit(ctx, EditedCodeStreamingRequest{
				EditRequestID: req.EditRequestID,
				SessionID:     req.SessionID,
				ExchangeID:    req.ExchangeID,
				PlanStepID:    req.PlanStepID,
				FsFilePath:    req.FsFilePath,
				Range:         ev.Range,
				Kind:          EditKindDelta,
				Text:          "```\n",
			}); err != nil {
				return err
			}

		case editstream.EventEditDelta:
			if a.editor == nil {
				continue
			}
			if err := a.editor.SendEdit(ctx, EditedCodeStreamingRequest{
				EditRequestID: req.EditRequestID,
				SessionID:     req.SessionID,
				ExchangeID:    req.ExchangeID,
				PlanStepID:    req.PlanStepID,
				FsFilePath:    req.FsFilePath,
				Range:         ev.Range,
				Kind:          EditKindDelta,
				Text:          ev.Text,
			}); err != nil {
				return err
			}

		case editstream.EventEditEnd:
			if a.editor == nil {
				continue
			}
			if err := a.editor.SendEdit(ctx, EditedCodeStreamingRequest{
				EditRequestID: req.EditRequestID,
				SessionID:     req.SessionID,
				ExchangeID:    req.ExchangeID,
				PlanStepID:    req.PlanStepID,
				FsFilePath:    req.FsFilePath,
				Range:         ev.Range,
				Kind:          EditKindDelta,
				Text:          "\n```",
			}); err != nil {
				return err
			}
			if err := a.editor.SendEdit(ctx, EditedCodeStreamingRequest{
				EditRequestID: req.EditRequestID,
				SessionID:     req.SessionID,
				ExchangeID:    req.ExchangeID,
				PlanStepID:    req.PlanStepID,
				FsFilePath:    req.FsFilePath,
				Range:         ev.Range,
				Kind:          EditKindEnd,
			}); err != nil {
				return err
			}

		case editstream.EventEndPollingStream:
			return nil
		}
	}
	return nil
}

func writeFileAtomically(path, content string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
