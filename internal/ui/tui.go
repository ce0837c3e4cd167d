package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// stopTimeout bounds how long Stop waits for the program to exit.
const stopTimeout = 2 * time.Second

// TUIRenderer draws an inline spinner and one progress bar per source file
// using bubbletea. It never reads the terminal, so an interactive shell can
// own stdin while it runs.
type TUIRenderer struct {
	mu       sync.Mutex
	cfg      Config
	program  *tea.Program
	model    *loadModel
	tracker  *ProgressTracker
	cancel   context.CancelFunc
	started  bool
	finished bool
	done     chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails when the output is not a
// terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newLoadModel(tracker)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	var runCtx context.Context
	runCtx, r.cancel = context.WithCancel(ctx)
	r.program = tea.NewProgram(r.model,
		tea.WithContext(runCtx),
		tea.WithOutput(r.cfg.Output),
		tea.WithInput(nil),
	)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer. The model redraws from the tracker on
// its own tick, so updates never block the caller.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.tracker.Update(event)
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats LoadStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.Update(ProgressEvent{Stage: StageComplete})
	r.finished = true
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer. A load that never completed is erased.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}
	if !r.finished {
		r.program.Send(abortMsg{})
	}

	select {
	case <-r.done:
	case <-time.After(stopTimeout):
		r.program.Quit()
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

type completeMsg LoadStats
type abortMsg struct{}
type tickMsg time.Time

// loadModel is the bubbletea model for dataset loading.
type loadModel struct {
	tracker  *ProgressTracker
	spinner  spinner.Model
	bar      progress.Model
	styles   Styles
	complete bool
	aborted  bool
	stats    LoadStats
}

func newLoadModel(tracker *ProgressTracker) *loadModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	bar := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = ColorDarkGray

	return &loadModel{
		tracker: tracker,
		spinner: s,
		bar:     bar,
		styles:  DefaultStyles(),
	}
}

// tickCmd redraws every 100ms.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m *loadModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Update implements tea.Model.
func (m *loadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-50, 10), 40)

	case completeMsg:
		m.complete = true
		m.stats = LoadStats(msg)
		return m, tea.Quit

	case abortMsg:
		m.aborted = true
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *loadModel) View() string {
	if m.aborted {
		return ""
	}
	if m.complete {
		return m.styles.Success.Render("✓ "+m.stats.String()) + "\n"
	}

	lines := []string{
		m.renderRead(StageNEOs),
		m.renderRead(StageApproaches),
	}
	if m.tracker.Latest() >= StageLinking {
		lines = append(lines, m.spinner.View()+" "+m.styles.Active.Render("Linking close approaches"))
	}
	lines = append(lines, m.styles.Dim.Render(formatDuration(m.tracker.Elapsed())))
	return strings.Join(lines, "\n") + "\n"
}

// renderRead renders one source file line.
func (m *loadModel) renderRead(stage Stage) string {
	p := m.tracker.Stage(stage)
	label := fmt.Sprintf("%-10s", stage.String())

	switch {
	case !p.Started:
		return m.styles.Dim.Render("○ " + label)
	case p.Done() || m.tracker.Latest() >= StageLinking:
		return m.styles.Success.Render("● "+label) + " " +
			m.styles.Label.Render(fmt.Sprintf("%s %s", filepath.Base(p.Source), humanize.Bytes(uint64(p.Current))))
	case p.Total == 0:
		return m.spinner.View() + " " + m.styles.Active.Render(label) + " " +
			m.styles.Label.Render(filepath.Base(p.Source))
	default:
		return m.spinner.View() + " " + m.styles.Active.Render(label) + " " +
			m.bar.ViewAs(p.Fraction()) + " " +
			m.styles.Active.Render(fmt.Sprintf("%3.0f%%", p.Fraction()*100))
	}
}

// formatDuration formats an elapsed time as seconds with one decimal.
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

var _ Renderer = (*TUIRenderer)(nil)
