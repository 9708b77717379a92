package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tatianab/neon-trials/internal/chain"
	"github.com/tatianab/neon-trials/internal/engine"
)

var (
	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF2BD6"))

	sceneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	optionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00E5FF"))

	narrationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#B388FF")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	noticeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF2BD6")).
			Padding(1, 2).
			Width(56)

	victoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#39FF14")).
			Bold(true)

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)
)

func (m model) View() string {
	var s string

	switch m.state {
	case stateLoading:
		s = "\n  " + m.spinner.View() + " Entering the city... confirm in your wallet if asked.\n"

	case statePlaying:
		main := lipgloss.JoinHorizontal(lipgloss.Top,
			m.viewport.View(),
			m.renderState(),
		)
		s = lipgloss.JoinVertical(lipgloss.Left,
			main,
			"\n"+m.renderStatus(),
			m.textInput.View(),
			helpStyle.Render(helpText),
		)
		if m.notice != "" && m.width > 0 {
			box := noticeStyle.Render(m.notice + "\n\n" + helpStyle.Render("enter to dismiss"))
			s = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
		}

	case stateError:
		s = fmt.Sprintf("\n  Error: %v\n\nPress Esc to quit.", m.err)
	}

	return "\n" + s + "\n"
}

func (m model) renderStatus() string {
	status := m.view.Status
	if status == "" {
		status = "Ready."
	}
	if m.busy() {
		return m.spinner.View() + " " + status
	}
	return "  " + status
}

func (m model) renderStory() string {
	v := m.view
	width := max(m.viewport.Width-2, 20)
	var b strings.Builder

	p := v.Mirror.Player
	sc := v.Mirror.Scene
	switch {
	case !p.Started:
		b.WriteString(sceneStyle.Width(width).Render("The city waits. Scan your inventory with /scan and burn a fuel core with /start to begin a run."))
	case !sc.Exists:
		b.WriteString(sceneStyle.Render(fmt.Sprintf("Scene %d is lost in static.", p.SceneID)))
	default:
		b.WriteString(titleStyle.Render(v.SceneName) + "\n\n")
		b.WriteString(sceneStyle.Width(width).Render(sc.Text))
		if v.Narration != "" {
			b.WriteString("\n\n" + narrationStyle.Width(width).Render(v.Narration))
		}
		b.WriteString("\n\n")
		switch {
		case sc.IsEnding && sc.Victory:
			b.WriteString(victoryStyle.Render("🏆 Victory! Your winner badge is on its way. Sync to the leaderboard with /sync."))
		case sc.IsEnding:
			b.WriteString(lossStyle.Render("Game over. The city swallowed your run."))
		default:
			for i, opt := range v.Mirror.Options {
				b.WriteString(optionStyle.Render(fmt.Sprintf("[%d] %s", i, opt)) + "\n")
			}
		}
	}

	if len(m.history) > 0 {
		b.WriteString("\n\n" + helpStyle.Render(strings.Join(m.history, "\n")))
	}
	return b.String()
}

func (m model) renderState() string {
	v := m.view

	wallet := titleStyle.Render("RUNNER") + "\n" +
		engine.ShortAddress(v.Wallet.Address.Hex()) + "\n" +
		fmt.Sprintf("chain %d", v.Wallet.ChainID) + "\n\n"

	id := titleStyle.Render("IDENTITY") + "\n"
	switch {
	case v.Identity.Username != "":
		id += v.Identity.Username + "\n"
	case v.Identity.Linked():
		id += engine.ShortAddress(v.Identity.Address.Hex()) + "\n"
	default:
		id += "not linked (/link)\n"
	}
	if v.Mirror.BoundIdentity != (common.Address{}) {
		id += "sealed on-chain ✓\n"
	}
	id += "\n"

	fuel := titleStyle.Render("FUEL") + "\n"
	switch {
	case len(v.Inventory.TokenIDs) > 0:
		for _, t := range v.Inventory.TokenIDs {
			fuel += "- #" + t.String() + "\n"
		}
	case v.Inventory.Owner != (common.Address{}):
		fuel += "none in this wallet\n"
		if m.links.Market != "" {
			fuel += "get one: " + m.links.Market + "\n"
		}
	default:
		fuel += "(none loaded)\n"
	}
	fuel += "\n"

	p := v.Mirror.Player
	run := titleStyle.Render("RUN") + "\n" +
		fmt.Sprintf("Score: %d\nMoves: %d\nTxs: %d\n", p.Score, p.Moves, p.TxCount)
	if v.Mirror.BadgeOwned {
		run += "Badge: 🏆\n"
	}
	run += fmt.Sprintf("Winners: %d\n\n", v.Mirror.WinnersTotal)

	cd := titleStyle.Render("COOLDOWN") + "\n" +
		"Move: " + readiness(v.MoveReadyIn(m.now)) + "\n"
	if p.Finished && !v.Mirror.Scene.Victory {
		cd += "Restart: " + readiness(v.RestartReadyIn(m.now)) + "\n"
	}
	cd += "\n"

	side := titleStyle.Render("SIDE ACTIONS") + "\n"
	for _, a := range []chain.SideAction{chain.LeaveTrail, chain.CatchBreath, chain.StudySigns, chain.MakeOffering} {
		side += m.sideLabel(a) + "\n"
	}

	content := wallet + id + fuel + run + cd + side
	stateWidth := int(float64(m.width) * 0.35)
	return stateStyle.Width(stateWidth).Height(m.viewport.Height).Render(content)
}

func (m model) sideLabel(a chain.SideAction) string {
	label := "/" + a.String()
	switch {
	case !m.view.Mirror.Player.InRun():
		return helpStyle.Render(label + " (no run)")
	case m.pending[engine.SideActionKey(a.String())]:
		return helpStyle.Render(label + " …")
	}
	return label
}

func readiness(wait time.Duration) string {
	if wait <= 0 {
		return "✅ Ready"
	}
	return "⏳ " + engine.FormatDuration(wait)
}
