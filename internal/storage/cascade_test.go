package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-forge/pkg/content"
)

// seedArea writes an area with two adventures, their logs, locations and check rows.
func seedArea(t *testing.T, s *Store, a content.Area) []string {
	t.Helper()
	require.NoError(t, s.AppendArea(a))
	require.NoError(t, s.AppendCheck(CheckArea, "", content.CheckResult{Subject: a.Name}, []string{"独自性"}))

	names := []string{
		content.AdventureName(content.OutcomeFailure, 1, a.Name),
		content.AdventureName(content.OutcomeGreatSuccess, 1, a.Name),
	}
	for _, name := range names {
		o, _, _, err := content.ParseAdventureName(name)
		require.NoError(t, err)
		require.NoError(t, s.AppendAdventure(content.Adventure{Name: name, Area: a.Name, Outcome: o}))
		require.NoError(t, WriteText(s.LogPath(a.Name, name), "a\nb\n"))
		require.NoError(t, WriteText(s.LocationPath(a.Name, name), "森\n森\n"))
		for _, kind := range []CheckKind{CheckAdventure, CheckLog, CheckLocation} {
			require.NoError(t, s.AppendCheck(kind, a.Name, content.CheckResult{Subject: name}, []string{"一貫性"}))
		}
	}
	return names
}

func TestDelete_Location(t *testing.T) {
	s := newTestStore(t)
	names := seedArea(t, s, testArea("森", 1, ""))

	msgs, err := s.Delete(KindLocation, "森", names[0])
	require.NoError(t, err)
	assert.NotEmpty(t, msgs)

	assert.NoFileExists(t, s.LocationPath("森", names[0]))
	assert.FileExists(t, s.LogPath("森", names[0]))
	assert.FileExists(t, s.LocationPath("森", names[1]))

	has, err := s.HasCheck(CheckLocation, "森", names[0])
	require.NoError(t, err)
	assert.False(t, has)
	has, err = s.HasCheck(CheckLog, "森", names[0])
	require.NoError(t, err)
	assert.True(t, has)
}

func TestDelete_LogCascadesToLocation(t *testing.T) {
	s := newTestStore(t)
	names := seedArea(t, s, testArea("森", 1, ""))
	require.NoError(t, WriteText(s.LogTempPath("森", names[0]), "partial"))

	_, err := s.Delete(KindLog, "森", names[0])
	require.NoError(t, err)

	assert.NoFileExists(t, s.LogPath("森", names[0]))
	assert.NoFileExists(t, s.LogTempPath("森", names[0]))
	assert.NoFileExists(t, s.LocationPath("森", names[0]))

	remaining, err := s.AdventureNames("森")
	require.NoError(t, err)
	assert.Len(t, remaining, 2, "adventure rows are upstream of logs")
}

func TestDelete_AdventureCascade(t *testing.T) {
	s := newTestStore(t)
	names := seedArea(t, s, testArea("森", 1, ""))

	_, err := s.Delete(KindAdventure, "森", names[1])
	require.NoError(t, err)

	remaining, err := s.AdventureNames("森")
	require.NoError(t, err)
	assert.Equal(t, []string{names[0]}, remaining)
	assert.NoFileExists(t, s.LogPath("森", names[1]))
	assert.NoFileExists(t, s.LocationPath("森", names[1]))

	for _, kind := range []CheckKind{CheckAdventure, CheckLog, CheckLocation} {
		tbl, err := s.LoadChecks(kind, "森")
		require.NoError(t, err)
		assert.Equal(t, []string{names[0]}, tbl.Keys(), kind)
	}
}

func TestDelete_LockedAdventureClearsPredecessorLink(t *testing.T) {
	s := newTestStore(t)
	seedArea(t, s, testArea("森", 1, ""))
	require.NoError(t, s.AppendArea(testArea("奥地", 2, "森")))

	locked := content.AdventureName(content.OutcomeSuccess, 1, "奥地")
	require.NoError(t, s.AppendAdventure(content.Adventure{
		Name: locked, Area: "奥地", Outcome: content.OutcomeSuccess, Previous: "大成功1_森",
	}))
	require.NoError(t, s.SetAdventureNext("森", "大成功1_森", locked))

	_, err := s.Delete(KindAdventure, "奥地", locked)
	require.NoError(t, err)

	prev, err := s.LoadAdventure("森", "大成功1_森")
	require.NoError(t, err)
	assert.Empty(t, prev.Next)
}

func TestDelete_AreaCascadesThroughChain(t *testing.T) {
	s := newTestStore(t)
	seedArea(t, s, testArea("湖", 1, ""))
	seedArea(t, s, testArea("森", 1, ""))
	seedArea(t, s, testArea("奥地", 2, "森"))
	seedArea(t, s, testArea("最奥", 3, "奥地"))
	require.NoError(t, s.SetAreaNext("森", "奥地"))
	require.NoError(t, s.SetAreaNext("奥地", "最奥"))

	msgs, err := s.Delete(KindArea, "", "奥地")
	require.NoError(t, err)
	assert.NotEmpty(t, msgs)

	areas, err := s.LoadAreas()
	require.NoError(t, err)
	var names []string
	for _, a := range areas {
		names = append(names, a.Name)
	}
	assert.ElementsMatch(t, []string{"湖", "森"}, names)

	for _, gone := range []string{"奥地", "最奥"} {
		assert.NoDirExists(t, s.AreaDir(gone))
		assert.NoDirExists(t, s.CheckDir(gone))
	}
	assert.DirExists(t, s.AreaDir("森"))

	forest, err := s.LoadArea("森")
	require.NoError(t, err)
	assert.Empty(t, forest.Next, "predecessor link is cleared")

	areaChecks, err := s.LoadChecks(CheckArea, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"湖", "森"}, areaChecks.Keys())
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"areas": KindArea, "adventure": KindAdventure, "logs": KindLog, "location": KindLocation} {
		got, err := ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("chapter")
	assert.Error(t, err)
}
