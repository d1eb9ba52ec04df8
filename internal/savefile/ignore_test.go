package savefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnore_Match(t *testing.T) {
	ig, err := NewIgnore([]string{"*.state", "**/.Trash*/**", " ", "/mnt/SDCARD/Saves/test/*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"*.state", "**/.Trash*/**", "/mnt/SDCARD/Saves/test/*"}, ig.Patterns())

	cases := map[string]bool{
		"/saves/zelda.state":                 true,
		"/saves/zelda.srm":                   false,
		"/saves/.Trash-1000/files/zelda.srm": true,
		"/mnt/SDCARD/Saves/test/mario.sav":   true,
		"/mnt/SDCARD/Saves/mario.sav":        false,
	}
	for p, want := range cases {
		assert.Equal(t, want, ig.Match(p), p)
	}
}

func TestIgnore_Tracked(t *testing.T) {
	ig, err := NewIgnore([]string{"autosave*"})
	require.NoError(t, err)

	assert.True(t, ig.Tracked("/saves/zelda.srm"))
	assert.False(t, ig.Tracked("/saves/autosave.srm"))
	assert.False(t, ig.Tracked("/saves/notes.txt"))
}

func TestIgnore_Nil(t *testing.T) {
	var ig *Ignore
	assert.False(t, ig.Match("/saves/zelda.srm"))
	assert.True(t, ig.Tracked("/saves/zelda.srm"))
	assert.Nil(t, ig.Patterns())
}

func TestNewIgnore_Invalid(t *testing.T) {
	_, err := NewIgnore([]string{"saves/[a-"})
	assert.Error(t, err)
}
