package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tarsiersync/forgecode/pkg/filelock"
	"github.com/tarsiersync/forgecode/pkg/inference"
	"github.com/tarsiersync/forgecode/pkg/mcts"
	"github.com/tarsiersync/forgecode/pkg/outline"
	"github.com/tarsiersync/forgecode/pkg/reward"
	"github.com/tarsiersync/forgecode/pkg/tracking"
)

// maxReasoningNodes bounds the reasoning-mode side branch before the loop
// forces a return to the normal tool catalog (§4.I "Reasoning mode").
const maxReasoningNodes = 200

// Loop drives one session's hot loop (§4.I): it owns the engine, reward
// generator, tool executor, and filesystem coordination a Turn call needs.
// A Loop is single-owner per session — callers must not call Turn
// concurrently for the same session.
type Loop struct {
	manager  *Manager
	engine   *inference.Engine
	rewards  *reward.Generator
	executor ToolExecutor
	tracker  *tracking.Registry
	locks    *filelock.Registry

	// ReasoningEngine, if set, is used instead of engine while a session's
	// reasoning budget (§4.I) has not yet been exhausted. It is typically
	// built over a stronger model with only outline.ToolReasoning in its
	// catalog.
	ReasoningEngine *inference.Engine

	// StrictEditorMode, when true, ends a turn on the first tool error or
	// malformed action instead of recording an errored observation and
	// continuing (§4.I open question, not exercised by default).
	StrictEditorMode bool
}

// NewLoop wires together a Loop from its components.
func NewLoop(manager *Manager, engine *inference.Engine, rewards *reward.Generator, executor ToolExecutor, tracker *tracking.Registry, locks *filelock.Registry) *Loop {
	return &Loop{
		manager:  manager,
		engine:   engine,
		rewards:  rewards,
		executor: executor,
		tracker:  tracker,
		locks:    locks,
	}
}

// TurnResult reports what a single human turn produced.
type TurnResult struct {
	ExchangeID   string
	FinalMessage string
	Status       Status
}

// Turn runs the full hot loop for one human message against sess (§4.I
// steps 1-6): it truncates hidden exchanges, appends the human exchange,
// allocates a fresh cancellation token, then repeatedly expands the
// frontier node, dispatches the chosen tool, scores and backpropagates the
// result, and persists the session after every iteration — until a
// terminal tool fires, the turn is cancelled, or maxIterations is reached.
func (l *Loop) Turn(ctx context.Context, sess *Session, humanMessage string) (TurnResult, error) {
	sess.mu.Lock()
	kept := make([]Exchange, 0, len(sess.Exchanges))
	for _, e := range sess.Exchanges {
		if !e.Hidden {
			kept = append(kept, e)
		}
	}
	sess.Exchanges = kept
	sess.mu.Unlock()

	sess.appendExchange(Exchange{
		ID:        uuid.New().String(),
		Kind:      ExchangeHuman,
		Content:   humanMessage,
		CreatedAt: time.Now(),
	})

	replyID := uuid.New().String()
	token := l.tracker.RegisterExchange(tracking.ExchangeKey{SessionID: sess.ID, ExchangeID: replyID})

	sess.setStatus(StatusRunning)

	frontier := sess.Tree.RootIndex
	if last, ok := sess.lastVisibleToolUseNodeIndex(""); ok {
		frontier = last
	}

	var finalMessage string
	finalStatus := StatusAwaitingUser

	for iter := 0; sess.Tree.MaxIterations <= 0 || iter < sess.Tree.MaxIterations; iter++ {
		select {
		case <-token.Done():
			finalStatus = StatusCancelled
			goto done
		case <-ctx.Done():
			finalStatus = StatusCancelled
			goto done
		default:
		}

		trajectory := sess.Tree.Trajectory(frontier)

		if sess.ReasoningNodes >= maxReasoningNodes && l.ReasoningEngine != nil {
			l.ReasoningEngine = nil
		}

		engine := l.engine
		if l.ReasoningEngine != nil && sess.ReasoningNodes < maxReasoningNodes {
			engine = l.ReasoningEngine
		}

		result, err := engine.NextAction(ctx, sess.ProblemStatement, trajectory)
		if err != nil {
			finalStatus = StatusFailed
			return TurnResult{ExchangeID: replyID, Status: finalStatus}, err
		}

		if result.Action.IsErrored() {
			node, _ := sess.Tree.Expand(frontier, result.Action)
			obs := outline.ErroredObservation(result.Action.ErrorReason)
			obs.ExpectCorrection = true
			node.Observation = &obs
			node.LLMUsageStats = result.UsageStats

			if l.StrictEditorMode {
				finalMessage = result.Action.ErrorReason
				finalStatus = StatusFailed
				sess.appendExchange(toolExchange(replyID, node.Index, false))
				if err := l.manager.Persist(sess); err != nil {
					return TurnResult{ExchangeID: replyID, Status: finalStatus}, err
				}
				goto done
			}

			sess.appendExchange(toolExchange(replyID, node.Index, false))
			if err := l.manager.Persist(sess); err != nil {
				return TurnResult{ExchangeID: replyID, Status: finalStatus}, err
			}
			frontier = node.Index
			continue
		}

		toolType, _ := result.Action.ToToolType()

		if toolType == outline.ToolContextCrunching {
			summary, usage, err := l.engine.Summarize(ctx, sess.ProblemStatement, trajectory)
			node, _ := sess.Tree.Expand(frontier, result.Action)
			node.LLMUsageStats = usage
			if err != nil {
				obs := outline.ErroredObservation(fmt.Sprintf("context crunching failed: %v", err))
				obs.ExpectCorrection = true
				node.Observation = &obs
			} else {
				node.Observation = &outline.ActionObservation{Message: summary}
				node.Message = summary
			}
			sess.appendExchange(toolExchange(replyID, node.Index, false))
			if err := l.manager.Persist(sess); err != nil {
				return TurnResult{ExchangeID: replyID, Status: finalStatus}, err
			}
			frontier = node.Index
			continue
		}

		if toolType == outline.ToolReasoning {
			node, _ := sess.Tree.Expand(frontier, result.Action)
			node.LLMUsageStats = result.UsageStats
			node.Observation = &outline.ActionObservation{Message: "reasoning step recorded"}
			sess.ReasoningNodes++
			sess.appendExchange(Exchange{
				ID:        uuid.New().String(),
				Kind:      ExchangeReasoning,
				NodeIndex: node.Index,
				CreatedAt: time.Now(),
			})
			if err := l.manager.Persist(sess); err != nil {
				return TurnResult{ExchangeID: replyID, Status: finalStatus}, err
			}
			frontier = node.Index
			continue
		}

		node, _ := sess.Tree.Expand(frontier, result.Action)
		node.LLMUsageStats = result.UsageStats

		obs, execErr := l.executor.Execute(ctx, result.Action)
		if execErr != nil {
			errored := outline.ErroredObservation(execErr.Error())
			errored.ExpectCorrection = true
			node.Observation = &errored

			if l.StrictEditorMode {
				finalMessage = execErr.Error()
				finalStatus = StatusFailed
				sess.appendExchange(toolExchange(replyID, node.Index, false))
				if err := l.manager.Persist(sess); err != nil {
					return TurnResult{ExchangeID: replyID, Status: finalStatus}, err
				}
				goto done
			}

			sess.appendExchange(toolExchange(replyID, node.Index, false))
			if err := l.manager.Persist(sess); err != nil {
				return TurnResult{ExchangeID: replyID, Status: finalStatus}, err
			}
			frontier = node.Index
			continue
		}

		node.Observation = obs

		if !node.IsDuplicate {
			r, err := l.rewards.Score(ctx, sess.ProblemStatement, sess.Tree.Trajectory(node.Index), node)
			if err == nil {
				_ = sess.Tree.Simulate(node.Index, *r)
				sess.Tree.Backpropagate(node.Index)
			}
		}

		hotStreak := node.Reward != nil && node.Reward.Value >= mcts.RewardVeryHighThreshold
		sess.appendExchange(exchangeFor(replyID, node.Index, toolType, hotStreak))

		if err := l.manager.Persist(sess); err != nil {
			return TurnResult{ExchangeID: replyID, Status: finalStatus}, err
		}

		frontier = node.Index

		if toolType.IsTerminal() {
			if toolType == outline.ToolAttemptCompletion {
				if input, ok := result.Action.Partial.(outline.AttemptCompletionInput); ok {
					finalMessage = input.FinalMessage
				}
				finalStatus = StatusCompleted
			} else {
				if input, ok := result.Action.Partial.(outline.AskFollowupQuestionsInput); ok {
					finalMessage = input.Question
				}
				finalStatus = StatusAwaitingUser
			}
			goto done
		}
	}

	finalStatus = StatusAwaitingUser

done:
	sess.setStatus(finalStatus)
	if err := l.manager.Persist(sess); err != nil {
		return TurnResult{ExchangeID: replyID, Status: finalStatus}, err
	}

	if finalStatus == StatusCompleted {
		return l.decide(sess, replyID, finalMessage)
	}
	return TurnResult{ExchangeID: replyID, FinalMessage: finalMessage, Status: finalStatus}, nil
}

// toolExchange builds a tool_use exchange with no content, used for
// errored/non-terminal steps that don't carry a human-facing message.
func toolExchange(replyID string, nodeIndex int, hotStreak bool) Exchange {
	return Exchange{
		ID:              uuid.New().String(),
		Kind:            ExchangeToolUse,
		NodeIndex:       nodeIndex,
		HotStreakWorthy: hotStreak,
		CreatedAt:       time.Now(),
	}
}

// exchangeFor builds the right exchange record for a successfully executed
// tool, tagging AskFollowupQuestions distinctly isn't needed: exchange kind
// is always ExchangeToolUse regardless of tool type; only the node it
// points at and the hot-streak flag vary.
func exchangeFor(replyID string, nodeIndex int, toolType outline.ToolType, hotStreak bool) Exchange {
	return toolExchange(replyID, nodeIndex, hotStreak)
}

// decide picks the best finished trajectory once a turn's frontier reaches
// AttemptCompletion (§4.I step 6). No concrete decider module survives in
// the reference material this was distilled from, so the tie-break rule
// here is an explicit judgment call: rank by reward value descending, and
// among equal rewards prefer the shallower (shorter, more direct)
// trajectory.
func (l *Loop) decide(sess *Session, replyID, finalMessage string) (TurnResult, error) {
	finished := sess.Tree.FinishedNodes()
	if len(finished) == 0 {
		return TurnResult{ExchangeID: replyID, FinalMessage: finalMessage, Status: StatusCompleted}, nil
	}

	sort.SliceStable(finished, func(i, j int) bool {
		ri, rj := 0, 0
		if finished[i].Reward != nil {
			ri = finished[i].Reward.Value
		}
		if finished[j].Reward != nil {
			rj = finished[j].Reward.Value
		}
		if ri != rj {
			return ri > rj
		}
		return sess.Tree.Depth(finished[i].Index) < sess.Tree.Depth(finished[j].Index)
	})

	best := finished[0]
	if input, ok := best.Action.Partial.(outline.AttemptCompletionInput); ok {
		finalMessage = input.FinalMessage
	}

	return TurnResult{ExchangeID: replyID, FinalMessage: finalMessage, Status: StatusCompleted}, nil
}
