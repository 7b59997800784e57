package world

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kvance/estate/internal/game/event"
)

// World is the live, mutable entity graph. It owns a cloned working copy of
// the immutable original content; correct state is always (original +
// ordered event log replayed through ApplyStoryEvent), never out-of-band
// mutation. That invariant is what makes undo, redo and save/load safe.
type World struct {
	entities map[string]*Entity
	original map[string]*Entity
	roomIDs  []string

	// TimestampMinutes is absolute game time: minutes since the fixed
	// epoch, not time of day.
	TimestampMinutes int

	logger *zap.Logger
}

// New validates the original content and builds a fresh World from it.
//
// Referential integrity is checked eagerly and fatally: every inside
// reference, every exit target, and every schedule candidate room must
// exist. A violation here is an authoring bug in static content, not a
// recoverable runtime condition.
//
// Precondition: logger must not be nil.
// Postcondition: returns a World whose entities are deep copies of
// original, or an error naming the first integrity violation.
func New(original map[string]*Entity, logger *zap.Logger) (*World, error) {
	if logger == nil {
		panic("world.New: logger must not be nil")
	}
	if err := validate(original); err != nil {
		return nil, err
	}

	w := &World{
		entities: make(map[string]*Entity, len(original)),
		original: original,
		logger:   logger,
	}
	for id, e := range original {
		w.entities[id] = e.Clone()
	}
	for _, id := range sortedIDs(original) {
		if original[id].Kind == KindRoom {
			w.roomIDs = append(w.roomIDs, id)
		}
	}
	return w, nil
}

func validate(original map[string]*Entity) error {
	for id, e := range original {
		if e.ID != id {
			return fmt.Errorf("entity key %q does not match entity ID %q", id, e.ID)
		}
		if e.Inside != "" {
			if _, ok := original[e.Inside]; !ok {
				return fmt.Errorf("entity %q: inside references unknown entity %q", id, e.Inside)
			}
		}
		for _, ex := range e.Exits {
			if _, ok := original[ex.RoomID]; !ok {
				return fmt.Errorf("room %q: exit targets unknown room %q", id, ex.RoomID)
			}
		}
		for _, tmpl := range e.ScheduleTemplate {
			for _, roomID := range tmpl.Inside {
				if _, ok := original[roomID]; !ok {
					return fmt.Errorf("entity %q: schedule %q references unknown room %q", id, tmpl.ID, roomID)
				}
			}
		}
	}
	return nil
}

// Get returns the live entity with the given ID.
func (w *World) Get(id string) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// Original returns the immutable template map the world was built from.
func (w *World) Original() map[string]*Entity {
	return w.original
}

// Rooms returns all room IDs in stable order.
func (w *World) Rooms() []string {
	return w.roomIDs
}

// Player returns the player entity.
//
// Postcondition: returns (entity, true) when the content defines a player.
func (w *World) Player() (*Entity, bool) {
	return w.byKind(KindPlayer)
}

// Narrator returns the narrator entity.
func (w *World) Narrator() (*Entity, bool) {
	return w.byKind(KindNarrator)
}

func (w *World) byKind(kind Kind) (*Entity, bool) {
	for _, id := range sortedIDs(w.entities) {
		if w.entities[id].Kind == kind {
			return w.entities[id], true
		}
	}
	return nil, false
}

// Each visits every live entity in stable ID order.
func (w *World) Each(fn func(*Entity)) {
	for _, id := range sortedIDs(w.entities) {
		fn(w.entities[id])
	}
}

// Find resolves an entity by ID or by fuzzy name: exact ID, then
// case-insensitive name, then unique case-insensitive name prefix.
//
// Postcondition: returns (entity, true) on an unambiguous match.
func (w *World) Find(ref string) (*Entity, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, false
	}
	if e, ok := w.entities[ref]; ok {
		return e, true
	}

	var match *Entity
	for _, id := range sortedIDs(w.entities) {
		e := w.entities[id]
		if equalFold(e.Name, ref) {
			return e, true
		}
		if strings.HasPrefix(strings.ToLower(e.Name), strings.ToLower(ref)) {
			if match != nil {
				return nil, false // ambiguous prefix
			}
			match = e
		}
	}
	if match != nil {
		return match, true
	}
	return nil, false
}

// RoomOf returns the room entity containing e, following at most one
// inside hop (people stand in rooms directly).
func (w *World) RoomOf(e *Entity) (*Entity, bool) {
	if e.Kind == KindRoom {
		return e, true
	}
	if e.Inside == "" {
		return nil, false
	}
	room, ok := w.entities[e.Inside]
	if !ok || room.Kind != KindRoom {
		return nil, false
	}
	return room, true
}

// ApplyStoryEvent applies one event's changes to the live entities and
// advances game time.
//
// Missing entities and unknown fields are logged and skipped, never fatal:
// one bad directive must not abort replay of the rest of the log. The
// exits attribute merges by destination room; relationships is a sparse
// map edit where nil deletes a key; all other attributes overwrite through
// the field schema. Player movement increments the destination room's
// visit counter.
//
// Postcondition: replaying the same log from the same original always
// produces identical entity state.
func (w *World) ApplyStoryEvent(ev *event.StoryEvent) {
	for _, entityID := range sortedChangeIDs(ev.Changes) {
		change := ev.Changes[entityID]
		entity, ok := w.entities[entityID]
		if !ok {
			w.logger.Warn("change targets unknown entity; skipped",
				zap.String("entity", entityID))
			continue
		}

		for _, field := range sortedFieldKeys(change.After) {
			value := change.After[field]
			switch field {
			case "exits":
				w.applyExits(entity, value)
			case "relationships":
				w.applyRelationships(entity, value)
			case "inside":
				w.applyInside(entity, value)
			default:
				spec, ok := FieldSpecFor(field)
				if !ok {
					w.logger.Warn("change names unknown field; skipped",
						zap.String("entity", entityID),
						zap.String("field", field))
					continue
				}
				spec.Set(entity, value)
			}
		}
	}

	w.TimestampMinutes += ev.TotalTime
}

// applyInside moves an entity and maintains the player visit counter.
func (w *World) applyInside(entity *Entity, value any) {
	dest, ok := asString(value)
	if !ok {
		w.logger.Warn("inside change is not a string; skipped",
			zap.String("entity", entity.ID))
		return
	}
	if dest == entity.Inside {
		return
	}
	entity.Inside = dest

	if entity.Kind != KindPlayer {
		return
	}
	if room, ok := w.entities[dest]; ok && room.Kind == KindRoom {
		room.Visits++
	}
}

// exitPatch is the wire shape of one element of an exits change.
type exitPatch struct {
	RoomID      string   `json:"roomId"`
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases"`
	Restriction string   `json:"restriction"`
	Deleted     bool     `json:"deleted"`
}

// applyExits merges an exits change list by destination room: existing
// entries are replaced (or removed via the deleted sentinel), new entries
// appended.
func (w *World) applyExits(entity *Entity, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		w.logger.Warn("exits change not serializable; skipped",
			zap.String("entity", entity.ID), zap.Error(err))
		return
	}
	var patches []exitPatch
	if err := json.Unmarshal(raw, &patches); err != nil {
		w.logger.Warn("exits change is not a list; skipped",
			zap.String("entity", entity.ID), zap.Error(err))
		return
	}

	for _, patch := range patches {
		idx := -1
		for i, ex := range entity.Exits {
			if ex.RoomID == patch.RoomID {
				idx = i
				break
			}
		}
		switch {
		case patch.Deleted:
			if idx >= 0 {
				entity.Exits = append(entity.Exits[:idx], entity.Exits[idx+1:]...)
			}
		case idx >= 0:
			entity.Exits[idx] = Exit{
				RoomID:      patch.RoomID,
				Name:        patch.Name,
				Aliases:     patch.Aliases,
				Restriction: patch.Restriction,
			}
		default:
			entity.Exits = append(entity.Exits, Exit{
				RoomID:      patch.RoomID,
				Name:        patch.Name,
				Aliases:     patch.Aliases,
				Restriction: patch.Restriction,
			})
		}
	}
}

// applyRelationships performs a sparse map edit: nil values delete keys,
// everything else overwrites.
func (w *World) applyRelationships(entity *Entity, value any) {
	edits, ok := value.(map[string]any)
	if !ok {
		w.logger.Warn("relationships change is not a map; skipped",
			zap.String("entity", entity.ID))
		return
	}
	if entity.Relationships == nil {
		entity.Relationships = map[string]string{}
	}
	for _, key := range sortedFieldKeys(edits) {
		v := edits[key]
		if v == nil {
			delete(entity.Relationships, key)
			continue
		}
		if s, ok := asString(v); ok {
			entity.Relationships[key] = s
		} else {
			w.logger.Warn("relationship value is not a string; skipped",
				zap.String("entity", entity.ID), zap.String("key", key))
		}
	}
}

// ExitsAsChange renders a room's current exits in the wire shape used by
// exits changes, for coarse whole-array before/after diffs.
func ExitsAsChange(exits []Exit) []any {
	out := make([]any, 0, len(exits))
	for _, ex := range exits {
		m := map[string]any{"roomId": ex.RoomID}
		if ex.Name != "" {
			m["name"] = ex.Name
		}
		if len(ex.Aliases) > 0 {
			aliases := make([]any, len(ex.Aliases))
			for i, a := range ex.Aliases {
				aliases[i] = a
			}
			m["aliases"] = aliases
		}
		if ex.Restriction != "" {
			m["restriction"] = ex.Restriction
		}
		out = append(out, m)
	}
	return out
}

func sortedIDs(m map[string]*Entity) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedChangeIDs(m map[string]*event.Change) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedFieldKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
