package console

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pnivek/pteroCraft/internal/panel"
)

func TestSendAndMatch_ListEndToEnd(t *testing.T) {
	fp := newFakePanel(t)
	fp.onCommand = func(cmd string, push func(panel.Frame)) {
		if cmd == "list" {
			push(panel.Frame{Event: panel.EventConsoleOutput,
				Args: []string{"\x1b[37mThere are 3 of a max of 20 players online: Alice, Bob, Carol\x1b[0m"}})
		}
	}
	eng := startEngine(t, fp, testConfig())
	waitAuthenticated(t, eng)

	match, err := eng.SendAndMatch(context.Background(), "list", "list")
	require.NoError(t, err)
	require.NotNil(t, match, "expected a correlated response")

	assert.Equal(t, OutcomePlayers, match.Outcome)
	assert.Equal(t, "3", match.Fields["current"])
	assert.Equal(t, "20", match.Fields["max"])
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, ParsePlayerNames(match.Fields["names"]))
	assert.Contains(t, match.Raw, "\x1b[37m", "raw line keeps its escape sequences")
	assert.Equal(t, "There are 3 of a max of 20 players online: Alice, Bob, Carol", match.Clean())
}

func TestSendAndMatch_WhitelistAdd(t *testing.T) {
	fp := newFakePanel(t)
	fp.onCommand = func(cmd string, push func(panel.Frame)) {
		if cmd == "whitelist add Steve" {
			push(panel.Frame{Event: panel.EventConsoleOutput,
				Args: []string{"Added Steve to the whitelist"}})
		}
	}
	eng := startEngine(t, fp, testConfig())
	waitAuthenticated(t, eng)

	match, err := eng.SendAndMatch(context.Background(), "whitelist add Steve", "whitelist")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, OutcomeAdded, match.Outcome)
	assert.Equal(t, "Steve", match.Fields["player"])
}

func TestSendAndMatch_NewestMatchingLineWins(t *testing.T) {
	fp := newFakePanel(t)
	fp.onCommand = func(cmd string, push func(panel.Frame)) {
		// Older candidate first, then the line that should win.
		push(panel.Frame{Event: panel.EventConsoleOutput,
			Args: []string{"Removed Steve from the whitelist"}})
		push(panel.Frame{Event: panel.EventConsoleOutput,
			Args: []string{"chatter in between"}})
		push(panel.Frame{Event: panel.EventConsoleOutput,
			Args: []string{"Added Steve to the whitelist"}})
	}
	cfg := testConfig()
	// Wide grace so all three lines are buffered before the first scan.
	cfg.SendGrace = 300 * time.Millisecond
	eng := startEngine(t, fp, cfg)
	waitAuthenticated(t, eng)

	match, err := eng.SendAndMatch(context.Background(), "whitelist add Steve", "whitelist")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, OutcomeAdded, match.Outcome)
}

func TestSendAndMatch_TimeoutReturnsNoMatch(t *testing.T) {
	fp := newFakePanel(t)
	fp.onCommand = func(cmd string, push func(panel.Frame)) {
		push(panel.Frame{Event: panel.EventConsoleOutput, Args: []string{"unrelated chatter"}})
	}
	cfg := testConfig()
	cfg.ResponseTimeout = 300 * time.Millisecond
	eng := startEngine(t, fp, cfg)
	waitAuthenticated(t, eng)

	start := time.Now()
	match, err := eng.SendAndMatch(context.Background(), "list", "list")
	elapsed := time.Since(start)

	require.NoError(t, err, "timeout is a defined outcome, not an error")
	assert.Nil(t, match)
	assert.GreaterOrEqual(t, elapsed, cfg.ResponseTimeout)
	assert.Less(t, elapsed, cfg.ResponseTimeout+time.Second)
}

func TestSendAndMatch_AdjustedTimeoutApplies(t *testing.T) {
	fp := newFakePanel(t)
	cfg := testConfig()
	cfg.ResponseTimeout = 5 * time.Second
	eng := startEngine(t, fp, cfg)
	waitAuthenticated(t, eng)

	// Shrink the window under the running engine; the next correlation
	// must give up well before the boot value.
	eng.SetResponseTimeout(200 * time.Millisecond)

	start := time.Now()
	match, err := eng.SendAndMatch(context.Background(), "list", "list")
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSendAndMatch_NotAuthenticatedFailsFast(t *testing.T) {
	eng := New(newFakePanel(t), testConfig(), zap.NewNop())

	start := time.Now()
	match, err := eng.SendAndMatch(context.Background(), "list", "list")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Nil(t, match)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "must not wait out the timeout")
}

func TestSendAndMatch_UnknownFamilyNoSend(t *testing.T) {
	fp := newFakePanel(t)
	var sent bool
	fp.onCommand = func(string, func(panel.Frame)) { sent = true }
	eng := startEngine(t, fp, testConfig())
	waitAuthenticated(t, eng)

	_, err := eng.SendAndMatch(context.Background(), "list", "no-such-family")
	assert.ErrorIs(t, err, ErrUnknownFamily)

	time.Sleep(100 * time.Millisecond)
	assert.False(t, sent, "no command frame may be transmitted for an unknown family")
}

func TestSendAndMatch_CancelledContext(t *testing.T) {
	fp := newFakePanel(t)
	eng := startEngine(t, fp, testConfig())
	waitAuthenticated(t, eng)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.SendAndMatch(ctx, "list", "list")
	assert.Error(t, err)
}

func TestSendAndMatchLiteral_MatchesClosedSet(t *testing.T) {
	fp := newFakePanel(t)
	fp.onCommand = func(cmd string, push func(panel.Frame)) {
		push(panel.Frame{Event: panel.EventConsoleOutput,
			Args: []string{"[INFO]: Player is Already Whitelisted"}})
	}
	eng := startEngine(t, fp, testConfig())
	waitAuthenticated(t, eng)

	got, err := eng.SendAndMatchLiteral(context.Background(), "whitelist add Steve",
		[]string{"player is already whitelisted", "added steve to the whitelist"})
	require.NoError(t, err)
	assert.Equal(t, "[INFO]: Player is Already Whitelisted", got)
}

func TestSendAndMatchLiteral_Timeout(t *testing.T) {
	fp := newFakePanel(t)
	cfg := testConfig()
	cfg.ResponseTimeout = 200 * time.Millisecond
	eng := startEngine(t, fp, cfg)
	waitAuthenticated(t, eng)

	got, err := eng.SendAndMatchLiteral(context.Background(), "whitelist add Steve",
		[]string{"added steve to the whitelist"})
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestSendCommand_GatedOnAuth(t *testing.T) {
	eng := New(newFakePanel(t), testConfig(), zap.NewNop())
	err := eng.SendCommand(context.Background(), "say hi")
	assert.ErrorIs(t, err, ErrNotReady)
}
