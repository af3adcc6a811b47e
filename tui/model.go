// Package tui is the terminal scanning screen: a keyboard-wedge scanner types
// into the input, each Enter records a code in the offline mirror and pushes it
// to the server, and pending codes are reconciled periodically.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shiftscan/barcode"
	"shiftscan/ingest"
	"shiftscan/mirror"
	"shiftscan/shift"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

const recentRows = 12

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

type (
	recordedMsg struct {
		code string
		res  mirror.Result
		err  error
	}
	reconciledMsg struct {
		rep mirror.Report
		err error
		at  time.Time
	}
	refreshedMsg struct {
		entries        []mirror.Entry
		total, pending int
		err            error
	}
	tickMsg time.Time
)

// Model is the bubbletea model of the scan screen.
type Model struct {
	ctx       context.Context
	syncer    *mirror.Syncer
	debouncer *ingest.Debouncer
	interval  time.Duration
	loc       *time.Location
	now       func() time.Time

	input textinput.Model
	table table.Model

	status     string
	statusKind statusKind
	total      int
	pending    int
	lastSync   time.Time
	syncing    bool
	styles     Styles
}

// New builds the screen. interval <= 0 disables periodic reconciliation.
func New(ctx context.Context, syncer *mirror.Syncer, debouncer *ingest.Debouncer, interval time.Duration, loc *time.Location) Model {
	if loc == nil {
		loc = time.Local
	}

	in := textinput.New()
	in.Placeholder = "Scan or type a barcode and press Enter"
	in.CharLimit = 128
	in.Width = 48
	in.Focus()

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Code", Width: 24},
			{Title: "Shift", Width: 8},
			{Title: "Scanned", Width: 16},
			{Title: "State", Width: 8},
		}),
		table.WithHeight(recentRows),
	)

	return Model{
		ctx:       ctx,
		syncer:    syncer,
		debouncer: debouncer,
		interval:  interval,
		loc:       loc,
		now:       time.Now,
		input:     in,
		table:     t,
		status:    "Ready.",
		styles:    DefaultStyles(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refresh(), m.reconcile(), m.tick())
}

func (m Model) tick() tea.Cmd {
	if m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) record(code string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.syncer.Record(m.ctx, code)
		return recordedMsg{code: code, res: res, err: err}
	}
}

func (m Model) reconcile() tea.Cmd {
	return func() tea.Msg {
		rep, err := m.syncer.Reconcile(m.ctx)
		return reconciledMsg{rep: rep, err: err, at: m.now()}
	}
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		store := m.syncer.Store()
		entries, err := store.Entries(m.ctx)
		if err != nil {
			return refreshedMsg{err: err}
		}
		total, pending, err := store.Counts(m.ctx)
		return refreshedMsg{entries: entries, total: total, pending: pending, err: err}
	}
}

func (m *Model) setStatus(kind statusKind, format string, args ...any) {
	m.statusKind = kind
	m.status = fmt.Sprintf(format, args...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlR:
			if !m.syncing {
				m.syncing = true
				m.setStatus(statusInfo, "Syncing with server...")
				return m, m.reconcile()
			}
			return m, nil
		case tea.KeyEnter:
			code := barcode.Clean(m.input.Value())
			m.input.SetValue("")
			if code == "" {
				return m, nil
			}
			if !m.debouncer.Allow(ingest.Event{Code: code, DetectedAt: m.now()}) {
				m.setStatus(statusInfo, "Repeated read of %s ignored.", code)
				return m, nil
			}
			return m, m.record(code)
		}

	case recordedMsg:
		switch {
		case errors.Is(msg.err, ingest.ErrDuplicateCode):
			m.setStatus(statusWarn, "%s was already scanned.", msg.code)
		case msg.err != nil:
			m.debouncer.Forget(msg.code)
			m.setStatus(statusError, "Could not save %s: %v", msg.code, msg.err)
		case msg.res.Synced:
			m.setStatus(statusOK, "Saved %s.", msg.code)
		case errors.Is(msg.res.RemoteErr, ingest.ErrDuplicateCode):
			m.setStatus(statusWarn, "%s is already on the server.", msg.code)
		default:
			m.setStatus(statusWarn, "Saved %s offline, will sync later.", msg.code)
		}
		return m, m.refresh()

	case reconciledMsg:
		m.syncing = false
		if msg.err != nil {
			m.setStatus(statusWarn, "Offline: %v", msg.err)
		} else {
			m.lastSync = msg.at
			if msg.rep.Resubmitted > 0 || msg.rep.Removed > 0 || msg.rep.Pulled > 0 {
				m.setStatus(statusOK, "Synced: %d resubmitted, %d accepted, %d removed, %d pulled.",
					msg.rep.Resubmitted, msg.rep.Accepted, msg.rep.Removed, msg.rep.Pulled)
			}
		}
		return m, m.refresh()

	case refreshedMsg:
		if msg.err != nil {
			m.setStatus(statusError, "Local storage error: %v", msg.err)
			return m, nil
		}
		m.total, m.pending = msg.total, msg.pending
		m.table.SetRows(m.rows(msg.entries))
		return m, nil

	case tickMsg:
		cmds = append(cmds, m.tick())
		if !m.syncing {
			m.syncing = true
			cmds = append(cmds, m.reconcile())
		}
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) rows(entries []mirror.Entry) []table.Row {
	if len(entries) > recentRows {
		entries = entries[:recentRows]
	}
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		ts := e.ScannedAt.In(m.loc)
		rows = append(rows, table.Row{
			e.Code,
			shift.Of(ts).String(),
			humanize.RelTime(ts, m.now(), "ago", "from now"),
			string(e.Status),
		})
	}
	return rows
}

func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.Title.Render("shiftscan"))
	sb.WriteString("\n")
	sb.WriteString(m.input.View())
	sb.WriteString("\n\n")

	style := m.styles.Muted
	switch m.statusKind {
	case statusOK:
		style = m.styles.OK
	case statusWarn:
		style = m.styles.Warn
	case statusError:
		style = m.styles.Error
	}
	sb.WriteString(style.Render(m.status))
	sb.WriteString("\n\n")
	sb.WriteString(m.table.View())
	sb.WriteString("\n\n")

	counter := fmt.Sprintf("%s saved locally", humanize.Comma(int64(m.total)))
	if m.pending > 0 {
		counter += fmt.Sprintf(", %d waiting to sync", m.pending)
	}
	sb.WriteString(m.styles.Counter.Render(counter))
	sync := "never synced"
	if !m.lastSync.IsZero() {
		sync = "last sync " + humanize.Time(m.lastSync)
	}
	sb.WriteString(m.styles.Muted.Render("  ·  " + sync + "  ·  ctrl+r sync  ·  esc quit"))
	sb.WriteString("\n")
	return sb.String()
}

// Run shows the screen until the user quits or ctx ends.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
