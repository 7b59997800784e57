// Package world provides the entity graph of the game: rooms, people,
// mysteries, the narrator and the player, plus the mutable World that is
// rebuilt from static content and an ordered StoryEvent log.
package world

import "github.com/kvance/estate/internal/game/schedule"

// Kind tags an entity's variant. Behavior differences between kinds live in
// per-kind strategies looked up by Kind, not in a type hierarchy.
type Kind string

const (
	KindRoom     Kind = "room"
	KindPerson   Kind = "person"
	KindMystery  Kind = "mystery"
	KindNarrator Kind = "narrator"
	KindPlayer   Kind = "player"
)

// MysteryState is the lifecycle of a mystery entity.
type MysteryState string

const (
	MysteryVeiled    MysteryState = "veiled"
	MysteryAvailable MysteryState = "available"
	MysteryRevealed  MysteryState = "revealed"
	MysterySolved    MysteryState = "solved"
)

// Exit is a directed passage from one room to another.
type Exit struct {
	// RoomID is the destination room.
	RoomID string `yaml:"roomId" json:"roomId"`
	// Name is the display name of the exit ("the oak door").
	Name string `yaml:"name" json:"name,omitempty"`
	// Aliases are alternative names accepted when resolving the exit.
	Aliases []string `yaml:"aliases" json:"aliases,omitempty"`
	// Restriction is a natural-language gate ("locked until Ama trusts
	// you"). It is lifted explicitly by a directive, never evaluated by
	// code.
	Restriction string `yaml:"restriction" json:"restriction,omitempty"`
}

// Entity is one node of the world graph. A single struct carries every
// kind's fields; which ones are meaningful depends on Kind.
type Entity struct {
	ID               string `json:"id"`
	Kind             Kind   `json:"kind"`
	Name             string `json:"name"`
	ShortDescription string `json:"shortDescription,omitempty"`
	Description      string `json:"description,omitempty"`
	// Color is a display tag only; it never affects logic.
	Color string `json:"color,omitempty"`
	// Inside references the containing entity by ID; empty means
	// uncontained. Containment is purely by reference.
	Inside    string `json:"inside,omitempty"`
	Invisible bool   `json:"invisible,omitempty"`

	// Room fields.
	Exits []Exit `json:"exits,omitempty"`
	// Visits counts player entries into this room; drives first-visit
	// versus seen-before narration.
	Visits int `json:"visits,omitempty"`

	// Person fields.
	Pronouns          string              `json:"pronouns,omitempty"`
	Profession        string              `json:"profession,omitempty"`
	Personality       string              `json:"personality,omitempty"`
	Age               int                 `json:"age,omitempty"`
	Relationships     map[string]string   `json:"relationships,omitempty"`
	ScheduleTemplate  []schedule.Template `json:"scheduleTemplate,omitempty"`
	TodaysSchedule    []schedule.Event    `json:"todaysSchedule,omitempty"`
	RunningScheduleID string              `json:"runningScheduleId,omitempty"`
	// DeferSchedule tells the scheduler this person lingers instead of
	// traveling to their next scheduled room.
	DeferSchedule bool `json:"deferSchedule,omitempty"`

	// Intake milestones for the onboarding flow. They form an ordered
	// sequence of booleans; once all are true a one-time personality
	// promotion fires.
	KnowsName            bool `json:"knowsName,omitempty"`
	KnowsPronouns        bool `json:"knowsPronouns,omitempty"`
	KnowsProfession      bool `json:"knowsProfession,omitempty"`
	SharedSelf           bool `json:"sharedSelf,omitempty"`
	SharedIntra          bool `json:"sharedIntra,omitempty"`
	SharedDisassociation bool `json:"sharedDisassociation,omitempty"`
	SharedAge            bool `json:"sharedAge,omitempty"`

	// Mystery fields.
	MysteryState MysteryState `json:"mysteryState,omitempty"`
	Resolution   string       `json:"resolution,omitempty"`
	// Hints maps character ID to the hint text that character can reveal.
	Hints map[string]string `json:"hints,omitempty"`
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	dup := *e

	if e.Exits != nil {
		dup.Exits = make([]Exit, len(e.Exits))
		copy(dup.Exits, e.Exits)
		for i, ex := range e.Exits {
			if ex.Aliases != nil {
				dup.Exits[i].Aliases = append([]string(nil), ex.Aliases...)
			}
		}
	}
	if e.Relationships != nil {
		dup.Relationships = make(map[string]string, len(e.Relationships))
		for k, v := range e.Relationships {
			dup.Relationships[k] = v
		}
	}
	if e.ScheduleTemplate != nil {
		dup.ScheduleTemplate = append([]schedule.Template(nil), e.ScheduleTemplate...)
	}
	if e.TodaysSchedule != nil {
		dup.TodaysSchedule = append([]schedule.Event(nil), e.TodaysSchedule...)
	}
	if e.Hints != nil {
		dup.Hints = make(map[string]string, len(e.Hints))
		for k, v := range e.Hints {
			dup.Hints[k] = v
		}
	}
	return &dup
}

// ExitByName resolves an exit on this room by destination ID, display name,
// or alias, case-insensitively.
//
// Postcondition: returns (index, true) if found, or (-1, false).
func (e *Entity) ExitByName(name string) (int, bool) {
	for i, ex := range e.Exits {
		if equalFold(ex.RoomID, name) || equalFold(ex.Name, name) {
			return i, true
		}
		for _, alias := range ex.Aliases {
			if equalFold(alias, name) {
				return i, true
			}
		}
	}
	return -1, false
}

// IsPerson reports whether the entity is a person or the player.
func (e *Entity) IsPerson() bool {
	return e.Kind == KindPerson || e.Kind == KindPlayer
}
