package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kingrea/robot-behaviors/internal/behavior"
)

const sampleRobotJSON = `{
  "defaultActivity": "freeplay",
  "behaviors": [
    {"id": "Test1", "class": "Wait", "groups": ["MiniGame", "RequestSpeedTap"], "score": 0.5},
    {"id": "Fetch", "class": "HelperSequence", "requires": ["object:1"],
     "params": {"steps": [{"helper": "pickup", "object": 1}], "retries": 2}}
  ],
  "activities": [
    {"id": "freeplay",
     "chooser": {"behaviors": ["Test1", "Fetch"], "disabledGroups": ["MiniGame"],
                 "scoreBonusForCurrentBehavior": [{"x": 0, "y": 0.2}]},
     "onEnter": {"enableGroups": ["MiniGame"]}},
    {"id": "selection", "type": "selection"}
  ]
}`

func TestParseRobotConfigJSON(t *testing.T) {
	rc, err := ParseRobotConfig([]byte(sampleRobotJSON))
	require.NoError(t, err)
	require.Len(t, rc.Behaviors, 2)
	require.Equal(t, behavior.ID("Test1"), rc.Behaviors[0].ID)
	require.Equal(t, []string{"MiniGame", "RequestSpeedTap"}, rc.Behaviors[0].Groups)

	fetch := rc.Behaviors[1]
	require.Equal(t, 2, fetch.Params.Int("retries", 0))
	steps, err := fetch.Params.Maps("steps")
	require.NoError(t, err)
	require.Equal(t, "pickup", steps[0]["helper"])

	freeplay, ok := rc.Activity("freeplay")
	require.True(t, ok)
	require.Equal(t, ChooserSimple, freeplay.Kind())
	require.Equal(t, []behavior.ID{"Test1", "Fetch"}, freeplay.Chooser.Behaviors)
	require.Equal(t, []string{"MiniGame"}, freeplay.Chooser.DisabledGroups)
	require.Equal(t, []string{"MiniGame"}, freeplay.OnEnter.EnableGroups)
	require.Len(t, freeplay.Chooser.ScoreBonusForCurrentBehavior, 1)

	selection, ok := rc.Activity("selection")
	require.True(t, ok)
	require.Equal(t, ChooserSelection, selection.Kind())
}

func TestParseRobotConfigYAML(t *testing.T) {
	doc := `
behaviors:
  - id: Nap
    class: Wait
    params:
      duration: 2s
activities:
  - id: idle
    chooser:
      behaviors: [Nap]
`
	rc, err := ParseRobotConfig([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, "2s", rc.Behaviors[0].Params.String("duration", ""))
}

func TestParseRobotConfigRejects(t *testing.T) {
	cases := map[string]string{
		"bad syntax":         `{"behaviors": [`,
		"no activities":      `{"behaviors": []}`,
		"duplicate behavior": `{"behaviors": [{"id": "A", "class": "Wait"}, {"id": "A", "class": "Wait"}], "activities": [{"id": "x"}]}`,
		"missing class":      `{"behaviors": [{"id": "A"}], "activities": [{"id": "x"}]}`,
		"bad precondition":   `{"behaviors": [{"id": "A", "class": "Wait", "requires": ["hungry"]}], "activities": [{"id": "x"}]}`,
		"duplicate activity": `{"activities": [{"id": "x"}, {"id": "x"}]}`,
		"unknown chooser":    `{"activities": [{"id": "x", "type": "random"}]}`,
		"bad curve":          `{"activities": [{"id": "x", "chooser": {"scoreBonusForCurrentBehavior": [{"x": 1, "y": 1}, {"x": 1, "y": 0}]}}]}`,
		"unknown default":    `{"defaultActivity": "y", "activities": [{"id": "x"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRobotConfig([]byte(doc))
			require.Error(t, err)
		})
	}

	_, err := ParseRobotConfig([]byte(`{"behaviors": [{"id": "A", "class": "Wait"}, {"id": "A", "class": "Wait"}], "activities": [{"id": "x"}]}`))
	require.True(t, errors.Is(err, behavior.ErrDuplicateID))
}
