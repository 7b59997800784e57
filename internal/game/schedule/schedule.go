// Package schedule turns templated recurring activities into one concrete,
// contiguous daily timetable per character, and answers "what is this
// character doing right now".
package schedule

import (
	"math/rand"
	"sort"

	"go.uber.org/zap"
)

// Canonical day boundaries, in minutes since midnight. Characters are only
// scheduled between these; outside them they are wherever their first/last
// activity left them.
const (
	DayStart = 6 * 60  // 06:00
	DayEnd   = 22 * 60 // 22:00

	// MinutesPerDay is the modulus for time-of-day arithmetic.
	MinutesPerDay = 24 * 60
)

// Template is a recurring daily activity with a randomizable start window.
type Template struct {
	// ID identifies the template within one character's schedule.
	ID string `yaml:"id" json:"id"`
	// Time is the nominal start, minutes since midnight.
	Time int `yaml:"time" json:"time"`
	// Activity is a short label ("working in the greenhouse").
	Activity string `yaml:"activity" json:"activity"`
	// Description elaborates the activity for prompt text.
	Description string `yaml:"description" json:"description"`
	// MinuteLength is the nominal duration.
	MinuteLength int `yaml:"minuteLength" json:"minuteLength"`
	// Inside lists candidate rooms, in preference order before shuffling.
	Inside []string `yaml:"inside" json:"inside"`
	// Attentive marks the character as reactive to nearby events while
	// performing this activity.
	Attentive bool `yaml:"attentive" json:"attentive"`
	// Early and Late widen the start window to [Time-Early, Time+Late].
	Early int `yaml:"early" json:"early"`
	Late  int `yaml:"late" json:"late"`
	// Secret activities are hidden from other characters' prompts.
	Secret       bool   `yaml:"secret" json:"secret"`
	SecretReason string `yaml:"secretReason" json:"secretReason"`
}

// Event is one concrete scheduled activity for a single day.
type Event struct {
	// ScheduleID references the Template this was instantiated from.
	ScheduleID string `yaml:"scheduleId" json:"scheduleId"`
	// Time is the actual start, minutes since midnight.
	Time int `yaml:"time" json:"time"`
	// Inside is the shuffled candidate room list.
	Inside []string `yaml:"inside" json:"inside"`
	// MinuteLength is the actual duration after the contiguity sweep.
	MinuteLength int `yaml:"minuteLength" json:"minuteLength"`
}

// Entry is an Event enriched with its template's static fields, as returned
// by ForTime.
type Entry struct {
	Event
	Activity     string
	Description  string
	Attentive    bool
	Secret       bool
	SecretReason string
}

// GenerateExactSchedule instantiates one concrete day from the given
// templates.
//
// Policy:
//  1. Two templates sharing an identical nominal time collide; a fair coin
//     decides which one survives (they are never merged).
//  2. Each survivor draws a uniform start in [Time-Early, Time+Late] and a
//     random permutation of its candidate rooms.
//  3. Events are sorted by actual start.
//  4. A chronological sweep makes the day contiguous: each event is
//     shortened or stretched to end exactly at the next event's start.
//  5. The day is clamped to [DayStart, DayEnd]: leading events wholly
//     superseded before DayStart are dropped, the first survivor is moved
//     to start at DayStart, and trailing events that would need negative
//     length to end by DayEnd are dropped.
//
// Postcondition: the result is sorted, non-overlapping, and gap-free; when
// non-empty it starts at DayStart.
func GenerateExactSchedule(templates []Template, rng *rand.Rand) []Event {
	if len(templates) == 0 {
		return []Event{}
	}

	byTime := make(map[int]Template)
	for _, tmpl := range templates {
		held, collision := byTime[tmpl.Time]
		if !collision {
			byTime[tmpl.Time] = tmpl
			continue
		}
		if rng.Intn(2) == 0 {
			byTime[tmpl.Time] = tmpl
		} else {
			byTime[tmpl.Time] = held
		}
	}

	// Deterministic iteration order so the rng draws are reproducible for
	// a given seed.
	nominalTimes := make([]int, 0, len(byTime))
	for t := range byTime {
		nominalTimes = append(nominalTimes, t)
	}
	sort.Ints(nominalTimes)

	events := make([]Event, 0, len(byTime))
	for _, t := range nominalTimes {
		tmpl := byTime[t]
		window := tmpl.Early + tmpl.Late + 1
		if window < 1 {
			window = 1
		}
		start := tmpl.Time - tmpl.Early + rng.Intn(window)

		rooms := make([]string, len(tmpl.Inside))
		copy(rooms, tmpl.Inside)
		rng.Shuffle(len(rooms), func(i, j int) {
			rooms[i], rooms[j] = rooms[j], rooms[i]
		})

		events = append(events, Event{
			ScheduleID:   tmpl.ID,
			Time:         start,
			Inside:       rooms,
			MinuteLength: tmpl.MinuteLength,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})

	// Contiguity sweep: each event runs exactly until the next one starts.
	for i := 0; i < len(events)-1; i++ {
		length := events[i+1].Time - events[i].Time
		if length < 0 {
			length = 0
		}
		events[i].MinuteLength = length
	}

	// Clamp to the day boundaries. A leading event whose successor also
	// starts at or before DayStart never runs; drop it so the clamp below
	// cannot hand the first slot a negative length.
	for len(events) > 1 && events[1].Time <= DayStart {
		events = events[1:]
	}

	first := &events[0]
	first.MinuteLength += first.Time - DayStart
	if first.MinuteLength < 0 {
		first.MinuteLength = 0
	}
	first.Time = DayStart
	if len(events) > 1 {
		// Restoring contiguity after moving the first start.
		first.MinuteLength = events[1].Time - first.Time
	}

	for len(events) > 0 {
		last := &events[len(events)-1]
		last.MinuteLength = DayEnd - last.Time
		if last.MinuteLength >= 0 {
			break
		}
		// An event jittered past the day end has no room left; drop it.
		events = events[:len(events)-1]
	}

	return events
}

// ForTime resolves what the character is doing at the given absolute time.
// Time is taken modulo one day. Returns the matching event enriched with
// its template fields, or nil when nothing is scheduled or the referenced
// template is missing (logged as a warning, never fatal).
func ForTime(templates []Template, events []Event, nowMinutes int, logger *zap.Logger) *Entry {
	now := nowMinutes % MinutesPerDay
	if now < 0 {
		now += MinutesPerDay
	}

	for _, ev := range events {
		if now < ev.Time || now >= ev.Time+ev.MinuteLength {
			continue
		}
		for _, tmpl := range templates {
			if tmpl.ID != ev.ScheduleID {
				continue
			}
			return &Entry{
				Event:        ev,
				Activity:     tmpl.Activity,
				Description:  tmpl.Description,
				Attentive:    tmpl.Attentive,
				Secret:       tmpl.Secret,
				SecretReason: tmpl.SecretReason,
			}
		}
		logger.Warn("scheduled event references missing template",
			zap.String("scheduleId", ev.ScheduleID))
		return nil
	}
	return nil
}
