// internal/tui/app.go
//
// This is the terminal front end for bazlauncher. It uses bubbletea, which
// follows The Elm Architecture:
//
// 1. Model: the launcher form, the version catalog and the running launch
// 2. Update: key presses, catalog results and launch events change the model
// 3. View: the model is rendered to a string
//
// Launch events arrive one at a time through waitForEvent, so progress is
// shown in exactly the order the orchestrator produced it.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/bazlauncher/internal/config"
	"github.com/kingrea/bazlauncher/internal/installer"
	"github.com/kingrea/bazlauncher/internal/logbook"
	"github.com/kingrea/bazlauncher/internal/orchestrator"
)

// focus is the form field receiving key presses.
type focus int

const (
	focusUsername focus = iota
	focusVersions
	focusDir
	focusCount
)

const (
	logPanelLines   = 8
	catalogTimeout  = 30 * time.Second
	releaseType     = "release"
	defaultWidth    = 100
	minProgressBar  = 20
	maxUsernameSize = 16
)

// Catalog lists versions that can be installed.
type Catalog interface {
	ListAvailableVersions(ctx context.Context) ([]installer.Version, error)
}

// Launcher starts launches and reports whether one is running.
type Launcher interface {
	Launch(ctx context.Context, req orchestrator.LaunchRequest) (<-chan orchestrator.Event, error)
	Busy() bool
}

// AppOption customizes the App.
type AppOption func(*App)

// WithLogbook sets the journal shown in the log panel.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithContext sets the context handed to catalog lookups and launches.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// WithInitialVersion preselects a version once the catalog loads.
func WithInitialVersion(id string) AppOption {
	return func(a *App) {
		if id = strings.TrimSpace(id); id != "" {
			a.preferredVersion = id
		}
	}
}

type versionsLoadedMsg struct {
	versions []installer.Version
	err      error
}

type launchEventMsg struct {
	event orchestrator.Event
	ok    bool
}

// versionItem implements list.Item for a catalog entry.
type versionItem struct {
	version installer.Version
}

func (i versionItem) Title() string { return i.version.ID }
func (i versionItem) Description() string {
	if i.version.ReleaseTime.IsZero() {
		return i.version.Type
	}
	return fmt.Sprintf("%s · %s", i.version.Type, i.version.ReleaseTime.Format("2006-01-02"))
}
func (i versionItem) FilterValue() string { return i.version.ID }

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	ctx      context.Context
	config   *config.Config
	launcher Launcher
	catalog  Catalog
	logbook  *logbook.Logbook

	// Form
	focus    focus
	username textinput.Model
	dir      textinput.Model
	versions list.Model

	allVersions      []installer.Version
	showSnapshots    bool
	preferredVersion string
	catalogErr       error
	catalogLoading   bool

	// Launch
	events       <-chan orchestrator.Event
	running      bool
	lastProgress installer.Progress
	lastOutcome  *orchestrator.Outcome
	bar          progress.Model
	spinner      spinner.Model

	statusMsg     string
	err           error
	lastLogStatus string

	width  int
	height int
}

// NewApp creates the launcher model.
func NewApp(cfg *config.Config, launcher Launcher, catalog Catalog, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, errors.New("tui: config is required")
	}
	if launcher == nil || catalog == nil {
		return nil, errors.New("tui: launcher and catalog are required")
	}

	username := textinput.New()
	username.Placeholder = "leave blank for a random name"
	username.CharLimit = maxUsernameSize
	username.SetValue(cfg.Launcher.LastUsername)
	username.Focus()

	dir := textinput.New()
	dir.Placeholder = "install directory"
	dir.SetValue(cfg.InstallDir())

	versions := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	versions.Title = "Versions"
	versions.SetShowStatusBar(false)
	versions.SetShowHelp(false)
	versions.SetFilteringEnabled(false)

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))

	app := &App{
		ctx:              context.Background(),
		config:           cfg,
		launcher:         launcher,
		catalog:          catalog,
		focus:            focusUsername,
		username:         username,
		dir:              dir,
		versions:         versions,
		showSnapshots:    cfg.Launcher.ShowSnapshots,
		preferredVersion: cfg.Launcher.DefaultVersion,
		bar:              progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		spinner:          spin,
		catalogLoading:   true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.logInfo("Launcher opened · install dir %s", cfg.InstallDir())
	return app, nil
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

func (a *App) logProgress(status string) {
	status = strings.TrimSpace(status)
	if status == "" || status == a.lastLogStatus {
		return
	}
	a.lastLogStatus = status
	a.logInfo(status)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.loadVersions())
}

func (a *App) loadVersions() tea.Cmd {
	ctx := a.ctx
	catalog := a.catalog
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
		defer cancel()
		versions, err := catalog.ListAvailableVersions(ctx)
		return versionsLoadedMsg{versions: versions, err: err}
	}
}

// waitForEvent reads one event; Update re-arms it until the stream closes.
func waitForEvent(events <-chan orchestrator.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return launchEventMsg{event: ev, ok: ok}
	}
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.versions.SetSize(max(20, msg.Width/2-4), max(5, msg.Height-18))
		a.bar.Width = max(minProgressBar, msg.Width-10)
		return a, nil

	case versionsLoadedMsg:
		a.catalogLoading = false
		a.catalogErr = msg.err
		if msg.err != nil {
			a.logError("Could not fetch versions: %v", msg.err)
			return a, nil
		}
		a.allVersions = msg.versions
		a.refreshVersionList()
		return a, nil

	case launchEventMsg:
		return a, a.handleLaunchEvent(msg)

	case spinner.TickMsg:
		if !a.running {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "esc":
			if !a.running {
				return a, tea.Quit
			}
			return a, nil
		case "tab":
			a.setFocus((a.focus + 1) % focusCount)
			return a, nil
		case "shift+tab":
			a.setFocus((a.focus + focusCount - 1) % focusCount)
			return a, nil
		case "ctrl+s":
			a.showSnapshots = !a.showSnapshots
			a.refreshVersionList()
			return a, nil
		case "ctrl+r":
			a.catalogLoading = true
			a.catalogErr = nil
			return a, a.loadVersions()
		case "enter":
			return a, a.startLaunch()
		}
	}

	var cmd tea.Cmd
	switch a.focus {
	case focusUsername:
		a.username, cmd = a.username.Update(msg)
	case focusVersions:
		a.versions, cmd = a.versions.Update(msg)
	case focusDir:
		a.dir, cmd = a.dir.Update(msg)
	}
	return a, cmd
}

func (a *App) setFocus(f focus) {
	a.focus = f
	a.username.Blur()
	a.dir.Blur()
	switch f {
	case focusUsername:
		a.username.Focus()
	case focusDir:
		a.dir.Focus()
	}
}

// refreshVersionList applies the snapshot filter and keeps the selection on
// the preferred version when it is listed.
func (a *App) refreshVersionList() {
	current := a.selectedVersion()
	if current == "" {
		current = a.preferredVersion
	}
	items := make([]list.Item, 0, len(a.allVersions))
	selected := 0
	for _, v := range a.allVersions {
		if !a.showSnapshots && v.Type != releaseType {
			continue
		}
		if v.ID == current {
			selected = len(items)
		}
		items = append(items, versionItem{version: v})
	}
	a.versions.SetItems(items)
	if len(items) > 0 {
		a.versions.Select(selected)
	}
}

func (a *App) selectedVersion() string {
	item, ok := a.versions.SelectedItem().(versionItem)
	if !ok {
		return ""
	}
	return item.version.ID
}

// startLaunch validates the form, persists the user's choices and starts the
// orchestrator.
func (a *App) startLaunch() tea.Cmd {
	if a.running || a.launcher.Busy() {
		a.statusMsg = "A launch is already running"
		return nil
	}
	versionID := a.selectedVersion()
	if versionID == "" {
		versionID = a.preferredVersion
	}
	if versionID == "" {
		a.err = errors.New("select a version first")
		return nil
	}
	dir := strings.TrimSpace(a.dir.Value())
	if dir == "" {
		a.err = errors.New("install directory is required")
		return nil
	}
	if dir != a.config.InstallDir() {
		if err := a.config.SetInstallDir(dir); err != nil {
			a.err = err
			return nil
		}
		a.dir.SetValue(a.config.InstallDir())
	}
	username := strings.TrimSpace(a.username.Value())
	if username != a.config.Launcher.LastUsername {
		if err := a.config.SetLastUsername(username); err != nil {
			a.logError("Could not save username: %v", err)
		}
	}

	req := orchestrator.LaunchRequest{VersionID: versionID, Username: username, InstallDir: a.config.InstallDir()}
	events, err := a.launcher.Launch(a.ctx, req)
	if err != nil {
		a.err = err
		a.logError("Launch rejected: %v", err)
		return nil
	}
	a.err = nil
	a.lastOutcome = nil
	a.lastProgress = installer.Progress{}
	a.lastLogStatus = ""
	a.events = events
	a.running = true
	a.statusMsg = fmt.Sprintf("Launching %s", versionID)
	a.logInfo("Launching %s into %s", versionID, req.InstallDir)
	return tea.Batch(waitForEvent(events), a.spinner.Tick)
}

func (a *App) handleLaunchEvent(msg launchEventMsg) tea.Cmd {
	if !msg.ok {
		a.events = nil
		a.running = false
		return nil
	}
	ev := msg.event
	switch ev.Kind {
	case orchestrator.EventProgress:
		a.lastProgress = ev.Progress
		a.statusMsg = ev.Progress.Label
		if !ev.Progress.FileStep() {
			a.logProgress(ev.Progress.Label)
		}
	case orchestrator.EventState:
		a.running = ev.State == orchestrator.Running
		if ev.Outcome != nil {
			a.finishLaunch(*ev.Outcome)
		}
	}
	if a.events == nil {
		return nil
	}
	return waitForEvent(a.events)
}

func (a *App) finishLaunch(out orchestrator.Outcome) {
	a.lastOutcome = &out
	if out.Err != nil {
		a.err = out.Err
		a.statusMsg = fmt.Sprintf("Launch failed (%s)", out.Code())
		a.logError("%s failed: %v", out.VersionID, out.Err)
		return
	}
	a.err = nil
	a.statusMsg = fmt.Sprintf("%s exited normally", out.VersionID)
	a.logInfo("%s played as %s for %s", out.VersionID, out.Username, out.Duration().Round(time.Second))
}

// View renders the launcher.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = defaultWidth
	}
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⬡ BAZLAUNCHER")

	sections := []string{header, a.renderForm(width)}
	if launch := a.renderLaunchPanel(width); launch != "" {
		sections = append(sections, launch)
	}
	if logs := a.renderLogPanel(); logs != "" {
		sections = append(sections, logs)
	}
	sections = append(sections, a.renderHelp())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderForm(width int) string {
	label := func(text string, f focus) string {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
		if a.focus == f {
			style = style.Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
		}
		return style.Render(text)
	}
	var catalog string
	switch {
	case a.catalogLoading:
		catalog = "Loading versions..."
	case a.catalogErr != nil:
		catalog = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).
			Render(fmt.Sprintf("Could not fetch versions: %v (ctrl+r to retry)", a.catalogErr))
	default:
		catalog = a.versions.View()
	}
	filter := "releases"
	if a.showSnapshots {
		filter = "releases + snapshots"
	}
	left := lipgloss.JoinVertical(lipgloss.Left,
		label("Username", focusUsername),
		a.username.View(),
		"",
		label("Install directory", focusDir),
		a.dir.View(),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		label(fmt.Sprintf("Version (%s)", filter), focusVersions),
		catalog,
	)
	half := max(30, width/2-2)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(half).Render(left),
		lipgloss.NewStyle().Width(half).Render(right),
	)
}

func (a *App) renderLaunchPanel(width int) string {
	var lines []string
	if a.running {
		status := a.statusMsg
		if status == "" {
			status = "Working..."
		}
		lines = append(lines, fmt.Sprintf("%s %s", a.spinner.View(), status))
		if !a.lastProgress.Indeterminate() {
			a.bar.Width = max(minProgressBar, min(width-10, 80))
			lines = append(lines, a.bar.ViewAs(a.lastProgress.Fraction()),
				fmt.Sprintf("%d / %d", a.lastProgress.Current, a.lastProgress.Max))
		}
	} else if a.statusMsg != "" {
		lines = append(lines, a.statusMsg)
	}
	if a.err != nil {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Render("Error: "+a.err.Error()))
	}
	if len(lines) == 0 {
		return ""
	}
	return lipgloss.NewStyle().MarginTop(1).Render(strings.Join(lines, "\n"))
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s (%d entries)", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func (a *App) renderHelp() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666666")).
		Render("enter play · tab next field · ctrl+s snapshots · ctrl+r reload versions · esc quit")
}
