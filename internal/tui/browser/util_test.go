package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHomeRelative(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	assert.Equal(t, "~", homeRelative(home))
	assert.Equal(t, filepath.Join("~", "notes"), homeRelative(filepath.Join(home, "notes")))
	assert.Equal(t, "/somewhere/else", homeRelative("/somewhere/else"))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short.md", clip("short.md", 20))
	assert.Equal(t, "long-na…", clip("long-name.md", 8))
	assert.Equal(t, "anything", clip("anything", 0))
}
