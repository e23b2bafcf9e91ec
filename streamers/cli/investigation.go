package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"inquest/viewer"
)

// Follower renders a live investigation stream to the terminal. Raw
// stream bytes go through the decoder; after each chunk it prints
// whatever state appeared since the last one.
type Follower struct {
	dec      *viewer.Decoder
	spinner  *spinner
	renderer *glamour.TermRenderer

	agentStatus map[string]string
	toolStatus  []string
	thoughts    int
	delegations int
	messages    int
	errors      int
	done        bool
}

func NewFollower(dec *viewer.Decoder) *Follower {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	return &Follower{
		dec:         dec,
		spinner:     newSpinner(),
		renderer:    renderer,
		agentStatus: make(map[string]string),
	}
}

// Done reports whether a finalized answer has been rendered.
func (f *Follower) Done() bool {
	return f.done
}

// Feed decodes the next chunk of the stream and renders any progress.
func (f *Follower) Feed(p []byte) {
	f.dec.Feed(p)
	f.sync()
}

func (f *Follower) sync() {
	v := f.dec.View()

	for agent, info := range v.Agents {
		if f.agentStatus[agent] != info.Status {
			f.agentStatus[agent] = info.Status
			f.printf("%s●%s %s%s%s is %s%s\n", ColorGray, ColorReset, ColorBold, agent, ColorReset, info.Status, vendorSuffix(info.Vendor))
		}
	}

	for ; f.delegations < len(v.Delegations); f.delegations++ {
		d := v.Delegations[f.delegations]
		f.printf("%s⇄ %s delegated to %s%s\n", ColorOrange, d.From, d.To, ColorReset)
	}

	for ; f.thoughts < len(v.Thinking); f.thoughts++ {
		t := v.Thinking[f.thoughts]
		f.printf("%s%s[%s] %s%s\n", ColorItalic, ColorMagenta, t.Agent, strings.TrimSpace(t.Text), ColorReset)
	}

	for i, rec := range v.ToolCalls {
		var prev string
		if i < len(f.toolStatus) {
			prev = f.toolStatus[i]
		} else {
			f.toolStatus = append(f.toolStatus, "")
		}
		if prev == rec.Status {
			continue
		}
		f.toolStatus[i] = rec.Status
		switch rec.Status {
		case viewer.ToolRunning:
			f.printf("%s⟳%s %s%s%s (%s)\n", ColorGray, ColorReset, ColorBold, rec.Name, ColorReset, rec.Agent)
		case viewer.ToolSuccess:
			f.printf("%s✓%s %s%s%s done in %dms\n", ColorGreen, ColorReset, ColorBold, rec.Name, ColorReset, rec.DurationMs)
		case viewer.ToolError:
			f.printf("%s✗%s %s%s%s failed after %dms\n", ColorRed, ColorReset, ColorBold, rec.Name, ColorReset, rec.DurationMs)
		}
	}

	for ; f.errors < len(v.Errors); f.errors++ {
		f.printf("%sError: %s%s\n", ColorRed, v.Errors[f.errors], ColorReset)
	}

	if len(v.Messages) > f.messages {
		f.spinner.Stop()
		for ; f.messages < len(v.Messages); f.messages++ {
			f.renderAnswer(v.Messages[f.messages])
		}
		// The decoder cleared per-turn state with the finalized message.
		f.toolStatus = f.toolStatus[:0]
		f.thoughts = 0
		f.done = true
		return
	}

	f.spinner.Start("Investigating...")
}

func (f *Follower) printf(format string, args ...any) {
	f.spinner.Stop()
	fmt.Printf(format, args...)
}

func (f *Follower) renderAnswer(content string) {
	if content == "" {
		return
	}
	rendered := content
	if f.renderer != nil {
		if out, err := f.renderer.Render(content); err == nil {
			rendered = out
		}
	}
	rendered = strings.TrimSpace(rendered)
	fmt.Printf("\n%s\n", rendered)
}

func vendorSuffix(vendor string) string {
	if vendor == "" {
		return ""
	}
	return fmt.Sprintf(" %s(%s)%s", ColorGray, vendor, ColorReset)
}
