package interp

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kvance/estate/internal/game/event"
	"github.com/kvance/estate/internal/game/schedule"
	"github.com/kvance/estate/internal/game/world"
	"github.com/kvance/estate/internal/llm"
	"github.com/kvance/estate/internal/tags"
)

// Strategy supplies the per-kind behavior hooks. Entities stay plain
// structs; any kind can override tag handling, reaction policy, and prompt
// assembly through its strategy.
type Strategy interface {
	// HandleTag consumes a directive the base switch does not recognize.
	// Returns true when the tag was handled.
	HandleTag(it *Interpreter, actor *world.Entity, tag *tags.Node, ev *event.StoryEvent) bool

	// OnStoryEvent reacts to a committed event, returning zero or more
	// follow-up requests. The event is already applied to the world.
	OnStoryEvent(it *Interpreter, turn *Turn, self *world.Entity, ev *event.StoryEvent) []event.ActionRequest

	// BuildPrompt assembles the model call for this entity.
	BuildPrompt(it *Interpreter, self *world.Entity, input string, history []llm.Message) llm.Prompt
}

// baseStrategy is the inert default: rooms and mysteries never act.
type baseStrategy struct{}

func (baseStrategy) HandleTag(*Interpreter, *world.Entity, *tags.Node, *event.StoryEvent) bool {
	return false
}

func (baseStrategy) OnStoryEvent(*Interpreter, *Turn, *world.Entity, *event.StoryEvent) []event.ActionRequest {
	return nil
}

func (baseStrategy) BuildPrompt(_ *Interpreter, self *world.Entity, input string, history []llm.Message) llm.Prompt {
	return llm.Prompt{Message: input, History: history, Title: self.ID}
}

// personStrategy carries the default NPC reaction policy and the intake
// promotion check.
type personStrategy struct{}

func (personStrategy) HandleTag(*Interpreter, *world.Entity, *tags.Node, *event.StoryEvent) bool {
	return false
}

func (personStrategy) OnStoryEvent(it *Interpreter, turn *Turn, self *world.Entity, ev *event.StoryEvent) []event.ActionRequest {
	var requests []event.ActionRequest

	if promo := intakePromotion(it, turn, self, ev); promo != nil {
		requests = append(requests, event.ActionRequest{Event: promo})
	}

	if input, ok := reactionInput(it, self, ev); ok {
		if turn.Once(onceKey("react:"+ev.EventID.String(), self.ID)) {
			requests = append(requests, event.ActionRequest{
				Prompt: &event.PromptRequest{ID: self.ID, Input: input},
			})
		}
	}
	return requests
}

// intakePromotion fires the one-time intro-to-prime personality transition
// once every onboarding milestone is true. The event that completed the
// milestones must not itself have set personality, and the transition runs
// at most once per logical turn.
func intakePromotion(it *Interpreter, turn *Turn, self *world.Entity, ev *event.StoryEvent) *event.StoryEvent {
	if self.Personality != "intro" || !allMilestones(self) {
		return nil
	}
	if _, touched := ev.Changes[self.ID]; !touched {
		return nil
	}
	if ev.HasChange(self.ID, "personality") {
		return nil
	}
	if !turn.Once(onceKey("promote", self.ID)) {
		return nil
	}

	roomID := ""
	if room, ok := it.World().RoomOf(self); ok {
		roomID = room.ID
	}
	promo := event.New(self.ID, roomID)
	promo.AddChange(self.ID, "personality", "intro", "prime")
	it.logger.Info("intake complete; personality promoted",
		zap.String("entity", self.ID))
	return promo
}

func allMilestones(e *world.Entity) bool {
	return e.KnowsName && e.KnowsPronouns && e.KnowsProfession &&
		e.SharedSelf && e.SharedIntra && e.SharedDisassociation && e.SharedAge
}

// reactionInput decides whether this person reacts to a committed event,
// and with what stimulus text. Policy: an explicit trigger entry always
// wakes the person; otherwise only player events provoke a reaction, and
// only through dialog addressed to (or not away from) this person, a
// description mentioning them by name, or an attentive schedule entry.
func reactionInput(it *Interpreter, self *world.Entity, ev *event.StoryEvent) (string, bool) {
	if ev.ID == self.ID {
		return "", false
	}

	if text, ok := ev.Triggers[self.ID]; ok {
		return text, true
	}

	actor, ok := it.World().Get(ev.ID)
	if !ok || actor.Kind != world.KindPlayer {
		return "", false
	}
	sameRoom := actor.Inside != "" && actor.Inside == self.Inside

	for _, a := range ev.Actions {
		switch a.Kind {
		case event.ActionDialog:
			if a.ToID == self.ID {
				return fmt.Sprintf("%s says to you: %s", actor.Name, a.Text), true
			}
			if a.ToID == "" && a.ToOther == "" && sameRoom {
				return fmt.Sprintf("%s says: %s", actor.Name, a.Text), true
			}
		case event.ActionDescription:
			if self.Name != "" && strings.Contains(strings.ToLower(a.Text), strings.ToLower(self.Name)) {
				return a.Text, true
			}
		}
	}

	if sameRoom && len(ev.Actions) > 0 {
		entry := schedule.ForTime(self.ScheduleTemplate, self.TodaysSchedule,
			it.World().TimestampMinutes, it.logger)
		if entry != nil && entry.Attentive {
			return fmt.Sprintf("While %s, you notice %s nearby.", entry.Activity, actor.Name), true
		}
	}
	return "", false
}

func (personStrategy) BuildPrompt(it *Interpreter, self *world.Entity, input string, history []llm.Message) llm.Prompt {
	return llm.Prompt{
		System:  personSystem(it, self),
		History: history,
		Message: input,
		Title:   "person:" + self.ID,
	}
}

// narratorStrategy narrates scenes and resolves player attempts. It never
// reacts on its own.
type narratorStrategy struct{}

func (narratorStrategy) HandleTag(*Interpreter, *world.Entity, *tags.Node, *event.StoryEvent) bool {
	return false
}

func (narratorStrategy) OnStoryEvent(*Interpreter, *Turn, *world.Entity, *event.StoryEvent) []event.ActionRequest {
	return nil
}

func (narratorStrategy) BuildPrompt(it *Interpreter, self *world.Entity, input string, history []llm.Message) llm.Prompt {
	return llm.Prompt{
		System:  narratorSystem(it),
		History: history,
		Message: input,
		Title:   "narrator",
	}
}

// playerStrategy handles the directives only the player's translation call
// may emit: goto, examine, action, actionResolution.
type playerStrategy struct{}

func (playerStrategy) HandleTag(it *Interpreter, actor *world.Entity, tag *tags.Node, ev *event.StoryEvent) bool {
	switch tag.Type {
	case "goto":
		handleGoto(it, actor, tag, ev)
	case "examine":
		handleExamine(it, actor, tag, ev)
	case "action":
		handleAction(it, actor, tag, ev)
	case "actionResolution":
		handleActionResolution(it, actor, tag, ev)
	default:
		return false
	}
	return true
}

func (playerStrategy) OnStoryEvent(*Interpreter, *Turn, *world.Entity, *event.StoryEvent) []event.ActionRequest {
	return nil
}

func (playerStrategy) BuildPrompt(it *Interpreter, self *world.Entity, input string, history []llm.Message) llm.Prompt {
	return llm.Prompt{
		System:  playerSystem(it, self),
		History: history,
		Message: input,
		Title:   "player",
	}
}

// handleGoto moves the player along the shortest exit path to the named
// room, charging travel time per room crossed and queueing a narration of
// the arrival.
func handleGoto(it *Interpreter, actor *world.Entity, tag *tags.Node, ev *event.StoryEvent) {
	ref := strings.TrimSpace(tag.Content)
	dest, ok := it.World().Find(ref)
	if !ok || dest.Kind != world.KindRoom {
		it.logger.Warn("goto targets unknown room; skipped", zap.String("room", ref))
		ev.AddAction(event.Action{
			Kind: event.ActionDescription, ID: actor.ID,
			Text: fmt.Sprintf("You look around, but there is no way to %q from here.", ref),
		})
		return
	}

	current, ok := it.World().RoomOf(actor)
	if !ok {
		it.logger.Warn("goto with no current room; skipped", zap.String("actor", actor.ID))
		return
	}
	path, found := it.World().PathTo(current.ID, dest.ID)
	if !found {
		ev.AddAction(event.Action{
			Kind: event.ActionDescription, ID: actor.ID,
			Text: fmt.Sprintf("You can find no way from %s to %s.", current.Name, dest.Name),
		})
		return
	}
	if len(path) == 0 {
		ev.AddAction(event.Action{
			Kind: event.ActionDescription, ID: actor.ID,
			Text: fmt.Sprintf("You are already in %s.", dest.Name),
		})
		return
	}

	ev.AddChange(actor.ID, "inside", actor.Inside, dest.ID)
	ev.TotalTime += 2 * len(path)

	arrival := fmt.Sprintf("The player walks into %s.", dest.Name)
	if dest.Visits == 0 {
		arrival = fmt.Sprintf("The player enters %s for the first time. %s", dest.Name, dest.Description)
	}
	ev.ActionRequests = append(ev.ActionRequests, event.ActionRequest{
		Prompt: &event.PromptRequest{ID: narratorID(it), Input: arrival},
	})
}

func handleExamine(it *Interpreter, actor *world.Entity, tag *tags.Node, ev *event.StoryEvent) {
	subject := strings.TrimSpace(tag.Content)
	if subject == "" {
		return
	}
	ev.TotalTime++
	ev.ActionRequests = append(ev.ActionRequests, event.ActionRequest{
		Prompt: &event.PromptRequest{
			ID:    narratorID(it),
			Input: fmt.Sprintf("The player examines: %s", subject),
		},
	})
}

func handleAction(it *Interpreter, actor *world.Entity, tag *tags.Node, ev *event.StoryEvent) {
	attempt := strings.TrimSpace(tag.Content)
	if attempt == "" {
		return
	}
	ev.AddAction(event.Action{
		Kind: event.ActionAttempt, ID: actor.ID,
		Attempt: attempt, Minutes: 1,
	})
	ev.ActionRequests = append(ev.ActionRequests, event.ActionRequest{
		Prompt: &event.PromptRequest{
			ID:    narratorID(it),
			Input: fmt.Sprintf("The player attempts: %s. Resolve whether it succeeds and narrate the outcome.", attempt),
		},
	})
}

func handleActionResolution(it *Interpreter, actor *world.Entity, tag *tags.Node, ev *event.StoryEvent) {
	action := event.Action{
		Kind: event.ActionAttempt, ID: actor.ID,
		Resolution: strings.TrimSpace(tag.Content),
		Success:    strings.EqualFold(strings.TrimSpace(tag.Attr("success")), "true"),
	}
	if minutes := strings.TrimSpace(tag.Attr("minutes")); minutes != "" {
		if n, err := strconv.Atoi(minutes); err == nil && n >= 0 {
			action.Minutes = n
		} else {
			it.logger.Warn("actionResolution has invalid minutes attribute; ignored",
				zap.String("minutes", minutes))
		}
	}
	ev.AddAction(action)
}

// narratorID resolves the narrator's entity ID, falling back to the
// conventional name when content defines none.
func narratorID(it *Interpreter) string {
	if n, ok := it.World().Narrator(); ok {
		return n.ID
	}
	return "narrator"
}
