// Package session owns the append-only StoryEvent log and drives the
// commit/react/queue loop: one player input becomes a model call, a
// committed event, and a depth-first cascade of NPC reactions, all strictly
// sequential. The log is the source of truth; the World is always derived
// from it by replay, which is what makes undo, redo and save/load safe.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/kvance/estate/internal/game/event"
	"github.com/kvance/estate/internal/game/interp"
	"github.com/kvance/estate/internal/game/schedule"
	"github.com/kvance/estate/internal/game/world"
	"github.com/kvance/estate/internal/llm"
	"github.com/kvance/estate/internal/tags"
)

// maxCascadeDepth bounds reaction recursion. A well-behaved content set
// stays far below this; hitting it means two characters are ping-ponging.
const maxCascadeDepth = 8

// Session is the single writer of the event log and the derived World.
// Run invocations are serialized; there is no parallel turn execution.
type Session struct {
	mu sync.Mutex

	original map[string]*world.Entity
	world    *world.World
	interp   *interp.Interpreter
	parser   *tags.Parser
	client   llm.Client
	rng      *rand.Rand
	logger   *zap.Logger

	log []*event.StoryEvent
	// turnStarts marks the log length at the start of each Run, so undo
	// removes whole logical turns including their cascades.
	turnStarts []int
	// redo holds undone turns, newest last.
	redo [][]*event.StoryEvent

	// lastScheduledDay tracks which game day schedules were generated for.
	lastScheduledDay int
}

// New builds a session over validated content.
//
// Precondition: client, rng and logger must not be nil.
// Postcondition: returns a session with an empty log and a freshly built
// World, or the content's first integrity error.
func New(original map[string]*world.Entity, client llm.Client, rng *rand.Rand, logger *zap.Logger) (*Session, error) {
	w, err := world.New(original, logger)
	if err != nil {
		return nil, fmt.Errorf("building world: %w", err)
	}
	parser := tags.NewParser(logger)
	return &Session{
		original:         original,
		world:            w,
		interp:           interp.New(w, parser, logger),
		parser:           parser,
		client:           client,
		rng:              rng,
		logger:           logger,
		lastScheduledDay: -1,
	}, nil
}

// World exposes the derived world for read-side consumers (UI bindings,
// tests). Callers must not mutate it.
func (s *Session) World() *world.World {
	return s.world
}

// Events returns a copy of the committed log.
func (s *Session) Events() []*event.StoryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*event.StoryEvent, len(s.log))
	copy(out, s.log)
	return out
}

// Run executes one logical player turn: translate the input through the
// player's model call, commit the resulting event, and drain every cascaded
// reaction depth-first. It returns the events committed by this turn, in
// log order.
//
// A failed model call is recorded as a synthetic event carrying llmError;
// the world is left untouched by the failed branch and Run returns nil
// error so the failure renders in-log.
func (s *Session) Run(ctx context.Context, input string) ([]*event.StoryEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.world.Player()
	if !ok {
		return nil, fmt.Errorf("content defines no player entity")
	}

	s.redo = nil
	s.turnStarts = append(s.turnStarts, len(s.log))
	turn := interp.NewTurn()
	start := len(s.log)

	s.tickSchedules()

	raw, err := s.complete(ctx, player, input)
	if err != nil {
		s.appendFailure(player.ID, "translating player input", err)
		return s.log[start:], nil
	}

	ev := s.interp.Interpret(player, raw)
	ev.Input = input
	if err := s.commit(ctx, turn, ev, 0); err != nil {
		return s.log[start:], err
	}
	return s.log[start:], nil
}

// commit appends the event, applies it, then drains its follow-ups
// depth-first: first the requests the interpreter queued on the event
// itself, then every entity's reaction hook. Cascaded events produced by
// committing event N are fully drained before commit(N) returns.
func (s *Session) commit(ctx context.Context, turn *interp.Turn, ev *event.StoryEvent, depth int) error {
	if depth > maxCascadeDepth {
		s.logger.Warn("reaction cascade too deep; dropping follow-ups",
			zap.String("actor", ev.ID), zap.Int("depth", depth))
		return nil
	}

	s.log = append(s.log, ev)
	s.world.ApplyStoryEvent(ev)

	requests := append([]event.ActionRequest{}, ev.ActionRequests...)
	requests = append(requests, s.interp.Dispatch(turn, ev)...)

	for _, req := range requests {
		switch {
		case req.Event != nil:
			if err := s.commit(ctx, turn, req.Event, depth+1); err != nil {
				return err
			}
		case req.Prompt != nil:
			if err := s.runPrompt(ctx, turn, req.Prompt, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// runPrompt executes a queued model call for one entity and commits the
// interpreted result.
func (s *Session) runPrompt(ctx context.Context, turn *interp.Turn, req *event.PromptRequest, depth int) error {
	entity, ok := s.world.Get(req.ID)
	if !ok {
		s.logger.Warn("prompt request targets unknown entity; skipped",
			zap.String("entity", req.ID))
		return nil
	}

	raw, err := s.complete(ctx, entity, req.Input)
	if err != nil {
		s.appendFailure(entity.ID, fmt.Sprintf("prompting %s", entity.ID), err)
		return nil
	}
	return s.commit(ctx, turn, s.interp.Interpret(entity, raw), depth)
}

// complete builds the entity's prompt and performs the model call.
func (s *Session) complete(ctx context.Context, entity *world.Entity, input string) (string, error) {
	strategy := s.interp.StrategyFor(entity.Kind)
	prompt := strategy.BuildPrompt(s.interp, entity, input, s.historyFor(entity.ID))
	return s.client.Complete(ctx, prompt)
}

// historyFor rebuilds the conversation history for one entity from the
// log: the player input (when present) and the raw response of each of its
// prior events.
func (s *Session) historyFor(entityID string) []llm.Message {
	var history []llm.Message
	for _, ev := range s.log {
		if ev.ID != entityID || ev.LLMError != nil {
			continue
		}
		if ev.Input != "" {
			history = append(history, llm.Message{Role: llm.RoleUser, Text: ev.Input})
		}
		if ev.LLMResponse != "" {
			history = append(history, llm.Message{Role: llm.RoleAssistant, Text: ev.LLMResponse})
		}
	}
	return history
}

// appendFailure records a failed model call as a synthetic in-log event.
// It carries no changes, so world state is exactly as before the failure.
func (s *Session) appendFailure(actorID, context string, err error) {
	s.logger.Error("model call failed", zap.String("context", context), zap.Error(err))
	ev := event.New(actorID, "")
	ev.LLMError = &event.LLMError{Context: context, Description: err.Error()}
	s.log = append(s.log, ev)
}

// tickSchedules generates each person's timetable on day rollover and
// synthesizes movement events for people whose schedule has them
// elsewhere, honoring a standing deferSchedule flag.
func (s *Session) tickSchedules() {
	day := s.world.TimestampMinutes / schedule.MinutesPerDay
	if day != s.lastScheduledDay {
		s.world.Each(func(e *world.Entity) {
			if e.Kind != world.KindPerson || len(e.ScheduleTemplate) == 0 {
				return
			}
			e.TodaysSchedule = schedule.GenerateExactSchedule(e.ScheduleTemplate, s.rng)
			s.logger.Debug("daily schedule generated",
				zap.String("entity", e.ID), zap.Int("events", len(e.TodaysSchedule)))
		})
		s.lastScheduledDay = day
	}

	s.world.Each(func(e *world.Entity) {
		if e.Kind != world.KindPerson || e.DeferSchedule {
			return
		}
		entry := schedule.ForTime(e.ScheduleTemplate, e.TodaysSchedule,
			s.world.TimestampMinutes, s.logger)
		if entry == nil || len(entry.Inside) == 0 {
			return
		}
		dest := entry.Inside[0]
		if dest == e.Inside {
			if e.RunningScheduleID != entry.ScheduleID {
				move := event.New(e.ID, e.Inside)
				move.AddChange(e.ID, "runningScheduleId", e.RunningScheduleID, entry.ScheduleID)
				s.log = append(s.log, move)
				s.world.ApplyStoryEvent(move)
			}
			return
		}

		move := event.New(e.ID, e.Inside)
		move.AddChange(e.ID, "inside", e.Inside, dest)
		move.AddChange(e.ID, "runningScheduleId", e.RunningScheduleID, entry.ScheduleID)
		s.log = append(s.log, move)
		s.world.ApplyStoryEvent(move)
		s.logger.Debug("scheduled travel",
			zap.String("entity", e.ID), zap.String("to", dest))
	})
}

// Undo removes the most recent logical turn from the log and rebuilds the
// world by replay.
//
// Postcondition: returns true when a turn was undone. An in-flight model
// call is never cancelled; Undo only affects committed entries.
func (s *Session) Undo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.turnStarts) == 0 {
		return false, nil
	}
	cut := s.turnStarts[len(s.turnStarts)-1]
	s.turnStarts = s.turnStarts[:len(s.turnStarts)-1]

	undone := append([]*event.StoryEvent{}, s.log[cut:]...)
	s.log = s.log[:cut]
	s.redo = append(s.redo, undone)

	if err := s.rebuild(); err != nil {
		return false, err
	}
	return true, nil
}

// Redo re-applies the most recently undone turn.
func (s *Session) Redo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.redo) == 0 {
		return false, nil
	}
	turn := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]

	s.turnStarts = append(s.turnStarts, len(s.log))
	s.log = append(s.log, turn...)
	for _, ev := range turn {
		if ev.LLMError != nil {
			continue
		}
		s.world.ApplyStoryEvent(ev)
	}
	return true, nil
}

// LoadEvents replaces the log wholesale (e.g. from a save) and rebuilds
// the world by replay. Undo history is reset: the loaded log counts as one
// base that cannot be undone past.
func (s *Session) LoadEvents(events []*event.StoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = append([]*event.StoryEvent{}, events...)
	s.turnStarts = nil
	s.redo = nil
	return s.rebuild()
}

// rebuild derives a fresh World from (original, log). The interpreter is
// rebuilt with it so strategies see the new state.
func (s *Session) rebuild() error {
	w, err := world.New(s.original, s.logger)
	if err != nil {
		return fmt.Errorf("rebuilding world: %w", err)
	}
	for _, ev := range s.log {
		if ev.LLMError != nil {
			continue
		}
		w.ApplyStoryEvent(ev)
	}
	s.world = w
	s.interp = interp.New(w, s.parser, s.logger)
	// Daily timetables are derived state, not part of the log; replay leaves
	// them empty. Forgetting the generation day makes the next turn's tick
	// regenerate them instead of treating the day as already scheduled.
	s.lastScheduledDay = -1
	return nil
}
