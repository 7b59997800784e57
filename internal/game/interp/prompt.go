package interp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kvance/estate/internal/game/schedule"
	"github.com/kvance/estate/internal/game/world"
)

// Prompt assembly. These builders produce the system instruction for each
// kind's model call; the quality of the prose is deliberately utilitarian,
// the structure (persona, scene, directive vocabulary) is the contract.

func personSystem(it *Interpreter, self *world.Entity) string {
	w := it.World()
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a character in an interactive story.\n", self.Name)
	if self.Pronouns != "" {
		fmt.Fprintf(&b, "Your pronouns are %s.\n", self.Pronouns)
	}
	if self.Profession != "" {
		fmt.Fprintf(&b, "You work as %s.\n", self.Profession)
	}
	if self.Personality != "" {
		fmt.Fprintf(&b, "Personality: %s\n", self.Personality)
	}
	if self.Age > 0 {
		fmt.Fprintf(&b, "You are %d years old.\n", self.Age)
	}

	if room, ok := w.RoomOf(self); ok {
		fmt.Fprintf(&b, "\nYou are in %s. %s\n", room.Name, room.ShortDescription)
		occupants := occupantNames(w, room, self.ID)
		if len(occupants) > 0 {
			fmt.Fprintf(&b, "Also here: %s.\n", strings.Join(occupants, ", "))
		}
	}

	if entry := schedule.ForTime(self.ScheduleTemplate, self.TodaysSchedule,
		w.TimestampMinutes, it.logger); entry != nil {
		fmt.Fprintf(&b, "Right now you are %s.\n", entry.Activity)
	}

	if len(self.Relationships) > 0 {
		b.WriteString("\nHow you feel about others:\n")
		for _, id := range sortedKeys(self.Relationships) {
			name := id
			if other, ok := w.Get(id); ok && other.Name != "" {
				name = other.Name
			}
			fmt.Fprintf(&b, "- %s: %s\n", name, self.Relationships[id])
		}
	}

	writeHints(&b, w, self.ID)

	b.WriteString("\nRespond only with directive tags:\n")
	b.WriteString(`<dialog to="name">spoken words</dialog>` + "\n")
	b.WriteString(`<description minutes="2">what you do</description>` + "\n")
	b.WriteString(`<set attr="entityId.field">new value</set>` + "\n")
	b.WriteString(`<trigger to="entityId">why they should react</trigger>` + "\n")
	b.WriteString("<deferSchedule/> to linger, <leaveNow/> to go to your next activity.\n")
	b.WriteString("Plan privately inside a <context>...</context> block; it is never shown.\n")
	return b.String()
}

func narratorSystem(it *Interpreter) string {
	w := it.World()
	var b strings.Builder

	b.WriteString("You are the narrator of an interactive story set in an old estate.\n")
	if player, ok := w.Player(); ok {
		if room, ok := w.RoomOf(player); ok {
			fmt.Fprintf(&b, "The player is in %s. %s\n", room.Name, room.Description)
			occupants := occupantNames(w, room, player.ID)
			if len(occupants) > 0 {
				fmt.Fprintf(&b, "Present: %s.\n", strings.Join(occupants, ", "))
			}
		}
	}

	b.WriteString("\nRespond only with directive tags:\n")
	b.WriteString(`<description minutes="1">narration</description>` + "\n")
	b.WriteString(`<actionResolution success="true" minutes="2">outcome narration</actionResolution>` + "\n")
	b.WriteString(`<removeRestriction exit="name"/> when a blocked way opens.` + "\n")
	b.WriteString(`<resolveMystery id="mysteryId">what really happened</resolveMystery>` + "\n")
	b.WriteString(`<suggestion>a short hint for the player's next move</suggestion>` + "\n")
	return b.String()
}

func playerSystem(it *Interpreter, self *world.Entity) string {
	w := it.World()
	var b strings.Builder

	b.WriteString("Translate the player's typed input into directive tags. Do not invent outcomes.\n")
	if room, ok := w.RoomOf(self); ok {
		fmt.Fprintf(&b, "The player is in %s.", room.Name)
		exits := make([]string, 0, len(room.Exits))
		for _, ex := range room.Exits {
			label := ex.RoomID
			if ex.Name != "" {
				label = fmt.Sprintf("%s (%s)", ex.Name, ex.RoomID)
			}
			exits = append(exits, label)
		}
		if len(exits) > 0 {
			fmt.Fprintf(&b, " Exits: %s.", strings.Join(exits, ", "))
		}
		b.WriteString("\n")
		occupants := occupantNames(w, room, self.ID)
		if len(occupants) > 0 {
			fmt.Fprintf(&b, "Present: %s.\n", strings.Join(occupants, ", "))
		}
	}

	b.WriteString("\nAvailable tags:\n")
	b.WriteString(`<dialog to="name">what the player says</dialog>` + "\n")
	b.WriteString(`<goto>room name</goto> to travel.` + "\n")
	b.WriteString(`<examine>subject</examine> to look closely.` + "\n")
	b.WriteString(`<action>what the player tries to do</action>` + "\n")
	return b.String()
}

// occupantNames lists visible people standing in the room, excluding the
// named entity.
func occupantNames(w *world.World, room *world.Entity, excludeID string) []string {
	var names []string
	w.Each(func(e *world.Entity) {
		if e.ID == excludeID || !e.IsPerson() || e.Invisible {
			return
		}
		if e.Inside == room.ID && e.Name != "" {
			names = append(names, e.Name)
		}
	})
	return names
}

// writeHints adds the unsolved-mystery hints this character can reveal.
func writeHints(b *strings.Builder, w *world.World, selfID string) {
	var lines []string
	w.Each(func(e *world.Entity) {
		if e.Kind != world.KindMystery || e.MysteryState == world.MysterySolved {
			return
		}
		if hint, ok := e.Hints[selfID]; ok {
			lines = append(lines, hint)
		}
	})
	if len(lines) == 0 {
		return
	}
	b.WriteString("\nThings you know but only reveal when it feels earned:\n")
	for _, line := range lines {
		fmt.Fprintf(b, "- %s\n", line)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
