package ansi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrip_PlainTextIsIdentity(t *testing.T) {
	in := "There are 3 of a max of 20 players online: Alice, Bob, Carol"
	assert.Equal(t, in, Strip(in))
}

func TestStrip_RemovesColorCodes(t *testing.T) {
	in := "\x1b[32m[12:00:01 INFO]\x1b[0m Added Steve to the whitelist"
	assert.Equal(t, "[12:00:01 INFO] Added Steve to the whitelist", Strip(in))
}

func TestStrip_RemovesCursorSequences(t *testing.T) {
	in := "\x1b[2K\x1b[1Gserver overloaded"
	assert.Equal(t, "server overloaded", Strip(in))
}

func TestStrip_Idempotent(t *testing.T) {
	in := "\x1b[31mstopping\x1b[0m server"
	once := Strip(in)
	assert.Equal(t, once, Strip(once))
}

func TestStrip_EmptyString(t *testing.T) {
	assert.Equal(t, "", Strip(""))
}

func TestStrip_OnlyEscapes(t *testing.T) {
	assert.Equal(t, "", Strip("\x1b[0m\x1b[2J"))
}
