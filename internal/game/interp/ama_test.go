package interp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kvance/estate/internal/game/event"
	"github.com/kvance/estate/internal/game/interp"
	"github.com/kvance/estate/internal/game/world"
	"github.com/kvance/estate/internal/tags"
)

// intakeContent is a minimal world with an onboarding character one
// milestone away from completing her intake.
func intakeContent() map[string]*world.Entity {
	return map[string]*world.Entity{
		"study": {ID: "study", Kind: world.KindRoom, Name: "Study"},
		"player": {
			ID: "player", Kind: world.KindPlayer, Name: "You", Inside: "study",
		},
		"ama": {
			ID: "ama", Kind: world.KindPerson, Name: "Ama", Inside: "study",
			Pronouns: "she/her", Personality: "intro",
			KnowsName: true, KnowsPronouns: true, KnowsProfession: true,
			SharedSelf: true, SharedIntra: true, SharedDisassociation: true,
			// SharedAge is the one remaining milestone.
		},
	}
}

func newIntakeInterpreter(t *testing.T) *interp.Interpreter {
	t.Helper()
	w, err := world.New(intakeContent(), zap.NewNop())
	require.NoError(t, err)
	return interp.New(w, tags.NewParser(zap.NewNop()), zap.NewNop())
}

// commitMilestone interprets and applies an event that completes the last
// intake milestone.
func commitMilestone(t *testing.T, it *interp.Interpreter) *event.StoryEvent {
	t.Helper()
	ama := actor(t, it, "ama")
	ev := it.Interpret(ama, `<set attr="ama.sharedAge">true</set><dialog>Thirty-one, if it matters.</dialog>`)
	it.World().ApplyStoryEvent(ev)
	return ev
}

func TestIntake_PromotionFiresWhenAllMilestonesTrue(t *testing.T) {
	it := newIntakeInterpreter(t)
	turn := interp.NewTurn()

	ev := commitMilestone(t, it)
	reqs := it.Dispatch(turn, ev)

	require.Len(t, reqs, 1)
	promo := reqs[0].Event
	require.NotNil(t, promo, "promotion is a fully formed follow-up event")
	assert.Equal(t, "ama", promo.ID)
	require.Contains(t, promo.Changes, "ama")
	assert.Equal(t, "intro", promo.Changes["ama"].Before["personality"])
	assert.Equal(t, "prime", promo.Changes["ama"].After["personality"])
}

func TestIntake_NoPromotionWhileMilestonesIncomplete(t *testing.T) {
	it := newIntakeInterpreter(t)
	turn := interp.NewTurn()

	ama := actor(t, it, "ama")
	ev := it.Interpret(ama, `<set attr="ama.knowsName">true</set>`)
	it.World().ApplyStoryEvent(ev)

	assert.Empty(t, it.Dispatch(turn, ev))
}

func TestIntake_EventSettingPersonalityDoesNotRefire(t *testing.T) {
	it := newIntakeInterpreter(t)
	turn := interp.NewTurn()

	ama := actor(t, it, "ama")
	ev := it.Interpret(ama,
		`<set attr="ama.sharedAge">true</set><set attr="ama.personality">prime</set>`)
	it.World().ApplyStoryEvent(ev)

	// The event already carries the personality change; the hook must not
	// stack a second transition on top.
	assert.Empty(t, it.Dispatch(turn, ev))
}

func TestIntake_OncePerLogicalTurn(t *testing.T) {
	it := newIntakeInterpreter(t)
	turn := interp.NewTurn()

	ev := commitMilestone(t, it)
	first := it.Dispatch(turn, ev)
	require.Len(t, first, 1)
	require.NotNil(t, first[0].Event)

	// Dispatching another qualifying event in the same turn, before the
	// promotion event has been applied, must not produce a second one.
	ev2 := event.New("player", "study")
	ev2.AddChange("ama", "sharedAge", true, true)
	it.World().ApplyStoryEvent(ev2)
	second := it.Dispatch(turn, ev2)
	for _, r := range second {
		assert.Nil(t, r.Event, "no duplicate promotion within one turn")
	}
}

func TestIntake_PromotionTerminal(t *testing.T) {
	it := newIntakeInterpreter(t)
	turn := interp.NewTurn()

	ev := commitMilestone(t, it)
	reqs := it.Dispatch(turn, ev)
	require.Len(t, reqs, 1)
	promo := reqs[0].Event
	require.NotNil(t, promo)
	it.World().ApplyStoryEvent(promo)

	ama := actor(t, it, "ama")
	assert.Equal(t, "prime", ama.Personality)

	// Once prime, later events touching Ama never re-enter the intake flow.
	later := interp.NewTurn()
	ev3 := it.Interpret(ama, `<set attr="ama.sharedAge">true</set>`)
	it.World().ApplyStoryEvent(ev3)
	for _, r := range it.Dispatch(later, ev3) {
		assert.Nil(t, r.Event)
	}
}
