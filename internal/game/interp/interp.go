// Package interp turns unfolded model directives into StoryEvents and runs
// the per-kind behavior hooks: custom tag handling, prompt assembly, and
// reaction propagation after commit. Directive errors are warn-and-skip; a
// single bad tag never aborts the rest of a turn.
package interp

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kvance/estate/internal/game/event"
	"github.com/kvance/estate/internal/game/world"
	"github.com/kvance/estate/internal/tags"
)

// PlanningContainer is the tag the model may use as a scratchpad. Its
// content is never interpreted, unless the whole response is wrapped in it.
const PlanningContainer = "context"

// AllowedTags is the full directive vocabulary. Player-only directives are
// included here and gated per kind in the player strategy.
var AllowedTags = []string{
	"set", "dialog", "description", "suggestion",
	"deferSchedule", "leaveNow",
	"removeRestriction", "resolveMystery", "trigger",
	"goto", "examine", "action", "actionResolution",
	PlanningContainer,
}

// unfoldOptions is the standard normalization for model responses.
var unfoldOptions = tags.Options{
	IgnoreContainers: []string{PlanningContainer},
	TrimEmpty:        []string{"dialog", "description"},
}

// Interpreter owns the directive switch and the per-kind strategy table.
type Interpreter struct {
	world      *world.World
	parser     *tags.Parser
	strategies map[world.Kind]Strategy
	logger     *zap.Logger
}

// New builds an Interpreter over the given world.
//
// Precondition: w, parser and logger must not be nil.
func New(w *world.World, parser *tags.Parser, logger *zap.Logger) *Interpreter {
	return &Interpreter{
		world:  w,
		parser: parser,
		strategies: map[world.Kind]Strategy{
			world.KindRoom:     baseStrategy{},
			world.KindMystery:  baseStrategy{},
			world.KindPerson:   personStrategy{},
			world.KindNarrator: narratorStrategy{},
			world.KindPlayer:   playerStrategy{},
		},
		logger: logger,
	}
}

// World returns the interpreter's live world.
func (it *Interpreter) World() *world.World { return it.world }

// StrategyFor returns the behavior hooks for a kind.
func (it *Interpreter) StrategyFor(kind world.Kind) Strategy {
	if s, ok := it.strategies[kind]; ok {
		return s
	}
	return baseStrategy{}
}

// Interpret parses one raw model response for the given actor and folds
// every directive into a single StoryEvent.
//
// Postcondition: never returns nil; an unusable response yields an event
// with no changes and no actions.
func (it *Interpreter) Interpret(actor *world.Entity, raw string) *event.StoryEvent {
	roomID := ""
	if room, ok := it.world.RoomOf(actor); ok {
		roomID = room.ID
	}
	ev := event.New(actor.ID, roomID)
	ev.LLMResponse = raw

	nodes := it.parser.UnfoldResponse(raw, AllowedTags, PlanningContainer, unfoldOptions)
	for _, node := range nodes {
		it.applyTag(actor, node, ev)
	}
	return ev
}

func (it *Interpreter) applyTag(actor *world.Entity, tag *tags.Node, ev *event.StoryEvent) {
	switch tag.Type {
	case tags.CommentType, PlanningContainer:
		// Scratchpad and stray prose carry no game effect.
	case "set":
		it.applySet(tag, ev)
	case "dialog":
		it.applyDialog(actor, tag, ev)
	case "description":
		it.applyDescription(actor, tag, ev)
	case "suggestion":
		if text := strings.TrimSpace(tag.Content); text != "" {
			ev.Suggestions = text
		}
	case "deferSchedule":
		// The change is what reaches the entity flag the scheduler
		// consults; the event field only mirrors it for renderers.
		linger := true
		ev.DeferSchedule = &linger
		ev.AddChange(actor.ID, "deferSchedule", actor.DeferSchedule, true)
	case "leaveNow":
		linger := false
		ev.DeferSchedule = &linger
		ev.AddChange(actor.ID, "deferSchedule", actor.DeferSchedule, false)
	case "removeRestriction":
		it.applyRemoveRestriction(actor, tag, ev)
	case "resolveMystery":
		it.applyResolveMystery(actor, tag, ev)
	case "trigger":
		it.applyTrigger(tag, ev)
	default:
		if it.StrategyFor(actor.Kind).HandleTag(it, actor, tag, ev) {
			return
		}
		it.logger.Warn("unrecognized directive ignored",
			zap.String("actor", actor.ID),
			zap.String("tag", tag.Type))
	}
}

// applySet resolves attr="entityId.field", coerces the content to the
// field's declared type, and accumulates the change. Known-bad literal
// values for certain fields are rejected rather than applied.
func (it *Interpreter) applySet(tag *tags.Node, ev *event.StoryEvent) {
	target := tag.Attr("attr")
	dot := strings.LastIndex(target, ".")
	if dot <= 0 || dot == len(target)-1 {
		it.logger.Warn("set directive has malformed attr; skipped",
			zap.String("attr", target))
		return
	}
	entityRef, field := target[:dot], target[dot+1:]

	entity, ok := it.world.Find(entityRef)
	if !ok {
		it.logger.Warn("set directive targets unknown entity; skipped",
			zap.String("entity", entityRef))
		return
	}
	spec, ok := world.FieldSpecFor(field)
	if !ok {
		it.logger.Warn("set directive names unknown field; skipped",
			zap.String("entity", entity.ID), zap.String("field", field))
		return
	}

	text := strings.TrimSpace(tag.Content)
	if reason, bad := rejectSet(field, text); bad {
		it.logger.Warn("set directive value rejected",
			zap.String("entity", entity.ID),
			zap.String("field", field),
			zap.String("value", text),
			zap.String("reason", reason))
		return
	}

	value, err := world.CoerceField(field, text)
	if err != nil {
		it.logger.Warn("set directive coercion failed; skipped",
			zap.String("entity", entity.ID),
			zap.String("field", field),
			zap.Error(err))
		return
	}
	ev.AddChange(entity.ID, field, spec.Get(entity), value)
}

// canonicalPronouns are the only accepted pronoun values.
var canonicalPronouns = map[string]bool{
	"she/her": true, "he/him": true, "they/them": true,
}

// placeholderValues are literals that mean the model does not actually know
// the value; writing them would destroy real state.
var placeholderValues = map[string]bool{
	"unspecified": true, "unknown": true, "not specified": true,
	"n/a": true, "none": true, "tbd": true, "?": true,
	"your name": true, "my name": true, "the player": true,
}

func rejectSet(field, text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch field {
	case "pronouns":
		if !canonicalPronouns[lower] {
			return "pronouns must be she/her, he/him or they/them", true
		}
	case "name", "profession":
		if lower == "" || placeholderValues[lower] {
			return "placeholder value", true
		}
	}
	return "", false
}

func (it *Interpreter) applyDialog(actor *world.Entity, tag *tags.Node, ev *event.StoryEvent) {
	text := strings.TrimSpace(tag.Content)
	if text == "" {
		return
	}

	action := event.Action{
		Kind:    event.ActionDialog,
		ID:      actor.ID,
		Text:    text,
		Minutes: dialogMinutes(text),
	}
	if to := strings.TrimSpace(tag.Attr("to")); to != "" {
		if addressee, ok := it.world.Find(to); ok {
			action.ToID = addressee.ID
		} else {
			action.ToOther = to
		}
	}
	ev.AddAction(action)
}

// dialogMinutes is the time cost of speech: one minute plus one per forty
// words.
func dialogMinutes(text string) int {
	words := len(strings.Fields(text))
	return 1 + int(math.Ceil(float64(words)/40))
}

func (it *Interpreter) applyDescription(actor *world.Entity, tag *tags.Node, ev *event.StoryEvent) {
	text := strings.TrimSpace(tag.Content)
	if text == "" {
		return
	}
	action := event.Action{
		Kind:    event.ActionDescription,
		ID:      actor.ID,
		Text:    text,
		Subject: strings.TrimSpace(tag.Attr("subject")),
	}
	if minutes := tag.Attr("minutes"); minutes != "" {
		n, err := strconv.Atoi(strings.TrimSpace(minutes))
		if err != nil || n < 0 {
			it.logger.Warn("description has invalid minutes attribute; ignored",
				zap.String("minutes", minutes))
		} else {
			action.Minutes = n
		}
	}
	ev.AddAction(action)
}

// applyRemoveRestriction clears the restriction on a named exit of the
// actor's current room, recording the whole exits array before and after.
func (it *Interpreter) applyRemoveRestriction(actor *world.Entity, tag *tags.Node, ev *event.StoryEvent) {
	room, ok := it.world.RoomOf(actor)
	if !ok {
		it.logger.Warn("removeRestriction with no current room; skipped",
			zap.String("actor", actor.ID))
		return
	}

	ref := strings.TrimSpace(tag.Attr("exit"))
	if ref == "" {
		ref = strings.TrimSpace(tag.Content)
	}
	idx, ok := room.ExitByName(ref)
	if !ok {
		it.logger.Warn("removeRestriction names unknown exit; skipped",
			zap.String("room", room.ID), zap.String("exit", ref))
		return
	}
	if room.Exits[idx].Restriction == "" {
		return
	}

	before := world.ExitsAsChange(room.Exits)
	after := make([]world.Exit, len(room.Exits))
	copy(after, room.Exits)
	after[idx].Restriction = ""
	ev.AddChange(room.ID, "exits", before, world.ExitsAsChange(after))
}

func (it *Interpreter) applyResolveMystery(actor *world.Entity, tag *tags.Node, ev *event.StoryEvent) {
	ref := strings.TrimSpace(tag.Attr("id"))
	mystery, ok := it.world.Find(ref)
	if !ok || mystery.Kind != world.KindMystery {
		it.logger.Warn("resolveMystery targets unknown mystery; skipped",
			zap.String("id", ref))
		return
	}

	resolution := strings.TrimSpace(tag.Content)
	ev.AddChange(mystery.ID, "mysteryState", string(mystery.MysteryState), string(world.MysterySolved))
	ev.AddChange(mystery.ID, "resolution", mystery.Resolution, resolution)
	if resolution != "" {
		ev.AddAction(event.Action{
			Kind:    event.ActionDescription,
			ID:      actor.ID,
			Subject: mystery.Name,
			Text:    resolution,
		})
	}
}

func (it *Interpreter) applyTrigger(tag *tags.Node, ev *event.StoryEvent) {
	ref := strings.TrimSpace(tag.Attr("to"))
	target, ok := it.world.Find(ref)
	if !ok {
		it.logger.Warn("trigger targets unknown entity; skipped",
			zap.String("to", ref))
		return
	}
	text := strings.TrimSpace(tag.Content)
	if text == "" {
		return
	}
	ev.AddTrigger(target.ID, text)
}

// Dispatch runs every entity's reaction hook against a committed event, in
// stable entity order, and gathers the follow-up requests.
//
// Precondition: ev must already be applied to the world.
func (it *Interpreter) Dispatch(turn *Turn, ev *event.StoryEvent) []event.ActionRequest {
	var requests []event.ActionRequest
	it.world.Each(func(e *world.Entity) {
		reqs := it.StrategyFor(e.Kind).OnStoryEvent(it, turn, e, ev)
		requests = append(requests, reqs...)
	})
	return requests
}

// Turn scopes one logical player turn: one Run invocation and every
// cascaded reaction it produces. One-shot transitions register an
// idempotency key here so a cascade cannot fire them twice.
type Turn struct {
	fired map[string]bool
}

// NewTurn starts a fresh logical turn.
func NewTurn() *Turn {
	return &Turn{fired: map[string]bool{}}
}

// Once reports true the first time it sees key within this turn.
func (t *Turn) Once(key string) bool {
	if t.fired[key] {
		return false
	}
	t.fired[key] = true
	return true
}

// onceKey builds the idempotency key for a named transition on an entity.
func onceKey(transition, entityID string) string {
	return fmt.Sprintf("%s:%s", transition, entityID)
}
