package discord

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pnivek/pteroCraft/internal/audit"
	"github.com/pnivek/pteroCraft/internal/console"
)

// Engine is the slice of the console engine the front-end consumes:
// status accessors, the send primitive, and the correlation operations.
type Engine interface {
	IsConnected() bool
	IsAuthenticated() bool
	RecentLines(n int) []string
	SendAndMatch(ctx context.Context, command, family string) (*console.Match, error)
}

// Discord caps messages at 2000 characters; leave headroom for the
// header and code fences.
const maxBody = 1950

// reply is a rendered command response.
type reply struct {
	Content   string
	Ephemeral bool
}

// handleStatus renders the tri-state connection report.
func (b *Bot) handleStatus() reply {
	var status string
	switch {
	case b.engine.IsAuthenticated():
		status = "✅ Authenticated & listening"
	case b.engine.IsConnected():
		status = "🟠 Connected (pending auth)"
	default:
		status = "❌ Disconnected"
	}
	return reply{Content: "Console status: " + status, Ephemeral: true}
}

// handleLog renders the newest console lines in a code block.
func (b *Bot) handleLog(lines int) reply {
	if !b.engine.IsAuthenticated() {
		return reply{Content: "❌ Console not ready.", Ephemeral: true}
	}
	if lines < 1 {
		lines = 1
	}
	if lines > 10 {
		lines = 10
	}

	logs := b.engine.RecentLines(lines)
	if len(logs) == 0 {
		return reply{Content: "Log buffer empty.", Ephemeral: true}
	}

	body := strings.Join(logs, "\n")
	if len(body) > maxBody {
		body = "... (truncated)\n" + truncateTail(body, maxBody)
	}
	return reply{
		Content:   fmt.Sprintf("Last %d log(s):\n```\n%s\n```", len(logs), body),
		Ephemeral: true,
	}
}

// handleList relays `list` and renders the online-players response.
func (b *Bot) handleList(ctx context.Context, actor string) reply {
	if !b.engine.IsAuthenticated() {
		return reply{Content: "❌ Console not authenticated.", Ephemeral: true}
	}

	start := time.Now()
	match, err := b.engine.SendAndMatch(ctx, "list", "list")
	b.record(ctx, audit.Entry{
		Actor:   actor,
		Command: "list",
		Family:  "list",
		Outcome: outcomeLabel(match, err),
		Response: func() string {
			if match != nil {
				return match.Clean()
			}
			return ""
		}(),
		Latency: time.Since(start),
	})

	if err != nil {
		return reply{Content: "❌ Could not reach the console.", Ephemeral: true}
	}
	if match == nil {
		return reply{Content: "🟡 Sent `list`, no matching response found.", Ephemeral: true}
	}

	current, max := match.Fields["current"], match.Fields["max"]
	names := console.ParsePlayerNames(match.Fields["names"])

	var body string
	if len(names) == 0 {
		body = fmt.Sprintf("%s of %s players online.", current, max)
	} else {
		body = fmt.Sprintf("%s of %s players online:\n%s", current, max, strings.Join(names, "\n"))
	}
	if len(body) > maxBody {
		body = truncateHead(body, maxBody) + "..."
	}
	return reply{Content: fmt.Sprintf("👥 **Online Players**\n```\n%s\n```", body)}
}

// whitelistReplies maps correlation outcomes to user-facing text.
var whitelistReplies = map[console.Outcome]string{
	console.OutcomeAdded:         "✅ Added **%s** to the whitelist.",
	console.OutcomeRemoved:       "✅ Removed **%s** from the whitelist.",
	console.OutcomeAlreadyListed: "🟡 **%s** is already whitelisted.",
	console.OutcomeNotListed:     "🟡 **%s** is not whitelisted.",
	console.OutcomeUnknownPlayer: "❌ Player **%s** does not exist.",
}

// handleWhitelist relays `whitelist add|remove <player>` and renders the
// per-outcome confirmation.
func (b *Bot) handleWhitelist(ctx context.Context, action, player, actor string) reply {
	if action != "add" && action != "remove" {
		return reply{Content: "❌ Unknown whitelist action.", Ephemeral: true}
	}
	if !b.engine.IsAuthenticated() {
		return reply{Content: "❌ Console not authenticated.", Ephemeral: true}
	}

	command := fmt.Sprintf("whitelist %s %s", action, player)
	start := time.Now()
	match, err := b.engine.SendAndMatch(ctx, command, "whitelist")
	b.record(ctx, audit.Entry{
		Actor:   actor,
		Command: command,
		Family:  "whitelist",
		Outcome: outcomeLabel(match, err),
		Response: func() string {
			if match != nil {
				return match.Clean()
			}
			return ""
		}(),
		Latency: time.Since(start),
	})

	if err != nil {
		return reply{Content: "❌ Could not reach the console.", Ephemeral: true}
	}
	if match == nil {
		return reply{
			Content:   fmt.Sprintf("🟡 Sent `%s`, no confirmation from the server.", command),
			Ephemeral: true,
		}
	}

	format, ok := whitelistReplies[match.Outcome]
	if !ok {
		return reply{Content: "⚠️ Unexpected response:\n```\n" + match.Clean() + "\n```", Ephemeral: true}
	}
	return reply{Content: fmt.Sprintf(format, player)}
}

// truncateTail keeps the last max bytes of s without splitting a rune.
func truncateTail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	start := len(s) - max
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

// truncateHead keeps the first max bytes of s without splitting a rune.
func truncateHead(s string, max int) string {
	if len(s) <= max {
		return s
	}
	end := max
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}

func (b *Bot) record(ctx context.Context, e audit.Entry) {
	if err := b.audit.Record(ctx, e); err != nil {
		b.log.Warn("audit record failed", zap.Error(err), zap.String("command", e.Command))
	}
}

func outcomeLabel(match *console.Match, err error) string {
	switch {
	case err != nil:
		return "error"
	case match == nil:
		return "timeout"
	default:
		return string(match.Outcome)
	}
}
