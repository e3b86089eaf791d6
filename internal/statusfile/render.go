// Package statusfile renders the per-date markdown projection of queue
// state. The files are a human-readable view only; the database stays the
// source of truth and the renderer never feeds anything back into it.
package statusfile

import (
	"fmt"
	"strings"
	"time"

	"github.com/mistakeknot/briefq/internal/core"
)

const bodyPreviewLimit = 200

func indicator(s core.Status) string {
	switch s {
	case core.StatusPending:
		return "[ ]"
	case core.StatusClaimed:
		return "[>]"
	case core.StatusProcessing:
		return "[~]"
	case core.StatusCompleted:
		return "[x]"
	case core.StatusFailed:
		return "[!]"
	default:
		return "[?]"
	}
}

// Render produces the markdown snapshot for one date. Messages are expected
// in queue order (created_at ascending); agents in most-recent-heartbeat
// order. Pure function so tests can assert on exact output.
func Render(date string, messages []core.Message, agents []core.Agent, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Briefings for %s\n\n", date)
	fmt.Fprintf(&b, "Updated %s\n\n", now.UTC().Format(time.RFC3339))

	if len(messages) == 0 {
		b.WriteString("No messages.\n")
	} else {
		var pending, active, done, failed int
		for _, msg := range messages {
			switch {
			case msg.Status == core.StatusPending:
				pending++
			case msg.Status.Owned():
				active++
			case msg.Status == core.StatusCompleted:
				done++
			case msg.Status == core.StatusFailed:
				failed++
			}
		}
		fmt.Fprintf(&b, "%d message(s): %d pending, %d in progress, %d completed, %d failed\n\n",
			len(messages), pending, active, done, failed)

		for _, msg := range messages {
			renderMessage(&b, msg)
		}
	}

	b.WriteString("\n## Agents\n\n")
	if len(agents) == 0 {
		b.WriteString("No active agents.\n")
		return b.String()
	}
	for _, agent := range agents {
		if agent.Idle() {
			fmt.Fprintf(&b, "- %s: idle (last heartbeat %s)\n",
				agent.ID, agent.LastHeartbeat.UTC().Format(time.RFC3339))
		} else {
			fmt.Fprintf(&b, "- %s: working on %s (last heartbeat %s)\n",
				agent.ID, agent.ActiveMessageID, agent.LastHeartbeat.UTC().Format(time.RFC3339))
		}
	}
	return b.String()
}

func renderMessage(b *strings.Builder, msg core.Message) {
	fmt.Fprintf(b, "## %s %s\n\n", indicator(msg.Status), msg.Subject)
	fmt.Fprintf(b, "- id: %s\n", msg.ID)
	fmt.Fprintf(b, "- from: %s\n", msg.From)
	fmt.Fprintf(b, "- status: %s\n", msg.Status)
	if msg.ReplyRef != "" {
		fmt.Fprintf(b, "- reply to: %s\n", msg.ReplyRef)
	}
	if msg.AgentID != "" {
		fmt.Fprintf(b, "- agent: %s\n", msg.AgentID)
	}
	if msg.AgentState != "" {
		fmt.Fprintf(b, "- progress: %s\n", msg.AgentState)
	}
	fmt.Fprintf(b, "- created: %s\n", msg.CreatedAt.UTC().Format(time.RFC3339))

	if preview := previewBody(msg.Body); preview != "" {
		fmt.Fprintf(b, "\n> %s\n", preview)
	}
	if msg.Result != "" {
		fmt.Fprintf(b, "\nResult: %s\n", msg.Result)
	}
	if msg.Error != "" {
		fmt.Fprintf(b, "\nError: %s\n", msg.Error)
	}
	b.WriteString("\n")
}

// previewBody collapses the body to a single truncated line so a long
// payload cannot blow up the file.
func previewBody(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if len(body) > bodyPreviewLimit {
		return body[:bodyPreviewLimit] + "..."
	}
	return body
}
