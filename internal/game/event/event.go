// Package event defines the StoryEvent log model: the atomic, serializable
// unit of world mutation produced by one model turn or one synthesized
// narrator update. The ordered event log, not derived world state, is the
// persisted source of truth; replaying it from the original content always
// reproduces identical state.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Change is a sparse before/after diff of named attributes on one entity.
type Change struct {
	Before map[string]any `json:"before"`
	After  map[string]any `json:"after"`
}

// ActionKind discriminates the StoryAction variants.
type ActionKind string

const (
	// ActionDialog is speech from one entity, optionally addressed.
	ActionDialog ActionKind = "dialog"
	// ActionDescription is free-text narration.
	ActionDescription ActionKind = "description"
	// ActionAttempt is a player action attempt with a success resolution.
	ActionAttempt ActionKind = "actionAttempt"
)

// Action is one narrated effect carried by a StoryEvent.
type Action struct {
	Kind ActionKind `json:"kind"`

	// ID is the acting/speaking entity.
	ID string `json:"id,omitempty"`
	// ToID is the addressed entity for dialog; empty means untargeted.
	ToID string `json:"toId,omitempty"`
	// ToOther is a free-text addressee that did not resolve to an entity.
	ToOther string `json:"toOther,omitempty"`
	// Text is the spoken or narrated text.
	Text string `json:"text,omitempty"`
	// Minutes is elapsed time attributed to this action.
	Minutes int `json:"minutes,omitempty"`
	// Subject names what a description is about (e.g. an examined object).
	Subject string `json:"subject,omitempty"`
	// Attempt and Resolution describe a player action attempt.
	Attempt    string `json:"attempt,omitempty"`
	Success    bool   `json:"success,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// LLMError records a failed model call so the turn renders in-log instead
// of aborting the pipeline.
type LLMError struct {
	Context     string `json:"context"`
	Description string `json:"description"`
}

// PromptRequest asks the session to run a follow-up model call for the
// named entity.
type PromptRequest struct {
	// ID is the entity to prompt.
	ID string `json:"id"`
	// Input is the payload handed to that entity's prompt builder.
	Input string `json:"input"`
}

// ActionRequest is one follow-up produced by committing a StoryEvent:
// either a fully formed event to apply immediately, or a prompt request to
// queue. Exactly one field is set.
type ActionRequest struct {
	Event  *StoryEvent    `json:"event,omitempty"`
	Prompt *PromptRequest `json:"prompt,omitempty"`
}

// StoryEvent is the atomic unit of world mutation.
type StoryEvent struct {
	// EventID uniquely identifies this log entry.
	EventID uuid.UUID `json:"eventId"`
	// ID is the acting entity.
	ID string `json:"id"`
	// RoomID is where the event took place.
	RoomID string `json:"roomId,omitempty"`
	// Changes maps entity ID to its attribute diff.
	Changes map[string]*Change `json:"changes,omitempty"`
	// Actions are the narrated effects, in order.
	Actions []Action `json:"actions,omitempty"`
	// TotalTime is the elapsed game time in minutes.
	TotalTime int `json:"totalTime,omitempty"`
	// ActionRequests are follow-ups queued by the interpreter itself
	// (as opposed to reaction hooks).
	ActionRequests []ActionRequest `json:"actionRequests,omitempty"`
	// DeferSchedule, when non-nil, records that this event set (true) or
	// cleared (false) the actor's linger flag. The flag itself travels as a
	// deferSchedule change; this field mirrors it for renderers.
	DeferSchedule *bool `json:"deferSchedule,omitempty"`
	// Input is the raw player line that produced this event; set on player
	// events only. Kept in the log so conversation history survives reload.
	Input string `json:"input,omitempty"`
	// LLMResponse is the raw model text this event was interpreted from.
	LLMResponse string `json:"llmResponse,omitempty"`
	// LLMError is set on the synthetic event recorded for a failed call.
	LLMError *LLMError `json:"llmError,omitempty"`
	// Suggestions is hint text for the input placeholder.
	Suggestions string `json:"suggestions,omitempty"`
	// Triggers stashes free text keyed by target entity, consumed by that
	// entity's reaction hook on the next dispatch pass.
	Triggers map[string]string `json:"triggers,omitempty"`
	// CreatedAt is wall-clock time, informational only.
	CreatedAt time.Time `json:"createdAt"`
}

// New creates an empty StoryEvent for the given actor in the given room.
func New(actorID, roomID string) *StoryEvent {
	return &StoryEvent{
		EventID:   uuid.New(),
		ID:        actorID,
		RoomID:    roomID,
		Changes:   map[string]*Change{},
		CreatedAt: time.Now().UTC(),
	}
}

// AddChange records a before/after pair for one field of one entity,
// merging with changes already present in this event. The earliest
// recorded before value for a field is kept; after values overwrite.
func (e *StoryEvent) AddChange(entityID, field string, before, after any) {
	if e.Changes == nil {
		e.Changes = map[string]*Change{}
	}
	ch, ok := e.Changes[entityID]
	if !ok {
		ch = &Change{Before: map[string]any{}, After: map[string]any{}}
		e.Changes[entityID] = ch
	}
	if _, seen := ch.Before[field]; !seen {
		ch.Before[field] = before
	}
	ch.After[field] = after
}

// HasChange reports whether this event already records a change for the
// given entity field.
func (e *StoryEvent) HasChange(entityID, field string) bool {
	ch, ok := e.Changes[entityID]
	if !ok {
		return false
	}
	_, ok = ch.After[field]
	return ok
}

// AddAction appends a narrated action and accumulates its time cost.
func (e *StoryEvent) AddAction(a Action) {
	e.Actions = append(e.Actions, a)
	e.TotalTime += a.Minutes
}

// AddTrigger stashes trigger text for the named entity.
func (e *StoryEvent) AddTrigger(entityID, text string) {
	if e.Triggers == nil {
		e.Triggers = map[string]string{}
	}
	e.Triggers[entityID] = text
}
