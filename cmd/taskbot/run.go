package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/taskbot/pkg/autonomous"
	"github.com/gwillem/taskbot/pkg/robot"
	"github.com/gwillem/taskbot/pkg/sim"
	"github.com/gwillem/taskbot/pkg/task"
	"github.com/gwillem/taskbot/pkg/teleop"
)

type RunCommand struct {
	Sim   bool   `long:"sim" description:"Run against the simulated robot instead of the servo bus"`
	Hz    int    `long:"hz" description:"Control loop frequency (default from constants)"`
	Auto  string `long:"auto" description:"Autonomous routine (asked for if not set)"`
	Debug bool   `long:"debug" description:"Log task installs and interrupts"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	helpHeight   = 3
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Resource colors - distinct colors for each resource
var resourceColors = map[task.Resource]string{
	robot.Drivetrain: "196", // red
	robot.Shooter:    "208", // orange
	robot.Intake:     "226", // yellow
	robot.Indexer:    "46",  // green
	robot.Gate:       "51",  // cyan
	robot.Winch0:     "201", // magenta
	robot.Winch1:     "99",  // purple
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	endgameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	pressedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

// Keyboard stand-ins for the two gamepads. Buttons toggle.
type padKey struct {
	key    string
	pad    sim.Pad
	button robot.Button
	label  string
}

var padKeys = []padKey{
	{"r", sim.Driver, robot.ButtonRightBumper, "shoot"},
	{"l", sim.Driver, robot.ButtonLeftBumper, "line-up"},
	{"b", sim.Driver, robot.ButtonB, "deploy"},
	{"x", sim.Driver, robot.ButtonX, "feed"},
	{"1", sim.Operator, robot.ButtonY, "shooter"},
	{"2", sim.Operator, robot.ButtonA, "shooter rev"},
	{"3", sim.Operator, robot.ButtonX, "gate"},
	{"4", sim.Operator, robot.ButtonB, "gate rev"},
	{"5", sim.Operator, robot.ButtonLeftBumper, "load"},
	{"6", sim.Operator, robot.ButtonRightBumper, "intake"},
	{"0", sim.Operator, robot.ButtonBack, "cancel all"},
}

type runModel struct {
	ctrl        *teleop.Controller
	in          *sim.Inputs
	chart       *streamlinechart.Model
	width       int // terminal width
	height      int // terminal height
	logs        []string
	state       teleop.State
	pressed     map[string]bool
	axes        map[robot.Axis]float64
	quitting    bool
	lastOutputs map[task.Resource]float64 // track previous outputs to detect changes
}

func (m *runModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasChange checks if any output has changed from the last state
func (m *runModel) hasChange(outputs map[task.Resource]float64) bool {
	if m.lastOutputs == nil {
		return true
	}
	for res, v := range outputs {
		if last, ok := m.lastOutputs[res]; !ok || v != last {
			return true
		}
	}
	return false
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

func tableHeight() int { return len(robot.AllResources()) + 4 }

// chartSize calculates the size of the chart based on terminal dimensions
func (m *runModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 12 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - tableHeight() - helpHeight - footerHeight - borderSize
	if height < 6 {
		height = 6
	}
	return width, height
}

func (m *runModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialRunModel(ctrl *teleop.Controller, in *sim.Inputs) runModel {
	chart := streamlinechart.New(80, 12,
		streamlinechart.WithYRange(-1, 1),
	)
	for _, res := range robot.AllResources() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(resourceColors[res]))
		chart.SetDataSetStyles(string(res), runes.ThinLineStyle, style)
	}
	return runModel{
		ctrl:    ctrl,
		in:      in,
		chart:   &chart,
		pressed: make(map[string]bool),
		axes:    make(map[robot.Axis]float64),
	}
}

func (m runModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

// stickStep is how far one arrow key press moves a stick.
const stickStep = 0.25

func (m *runModel) nudge(a robot.Axis, delta float64) {
	m.axes[a] = robot.Clamp(m.axes[a] + delta)
	m.in.SetAxis(sim.Driver, a, m.axes[a])
}

func (m *runModel) toggleTrigger(a robot.Axis) {
	if m.axes[a] > 0 {
		m.axes[a] = 0
	} else {
		m.axes[a] = 1
	}
	m.in.SetAxis(sim.Driver, a, m.axes[a])
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "a":
			m.ctrl.StartAutonomous()
		case "t":
			m.ctrl.StartTeleop()
		case "d":
			m.ctrl.Disable()
		case "up":
			m.nudge(robot.AxisLeftY, -stickStep)
		case "down":
			m.nudge(robot.AxisLeftY, stickStep)
		case "left":
			m.nudge(robot.AxisRightX, -stickStep)
		case "right":
			m.nudge(robot.AxisRightX, stickStep)
		case "z":
			m.toggleTrigger(robot.AxisLeftTrigger)
		case "c":
			m.toggleTrigger(robot.AxisRightTrigger)
		case " ":
			m.in.Reset()
			clear(m.pressed)
			clear(m.axes)
		default:
			for _, pk := range padKeys {
				if pk.key == key {
					m.pressed[key] = m.in.Toggle(pk.pad, pk.button)
				}
			}
		}
		return m, nil

	case stateMsg:
		m.state = teleop.State(msg)
		if m.hasChange(m.state.Outputs) {
			for res, v := range m.state.Outputs {
				m.chart.PushDataSet(string(res), v)
			}
			m.chart.DrawAll()
			m.lastOutputs = m.state.Outputs
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m runModel) View() string {
	if m.quitting {
		return "Robot stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("taskbot"))
	sb.WriteString(fmt.Sprintf(" - %s - %d Hz", m.state.Phase, m.ctrl.Hz()))
	if m.state.Phase != teleop.PhaseDisabled {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  %.1fs left", m.state.Remaining.Seconds())))
	}
	if m.state.Routine != "" {
		sb.WriteString(statusStyle.Render("  " + m.state.Routine))
	}
	if m.state.Endgame {
		sb.WriteString("  " + endgameStyle.Render("ENDGAME"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")
	sb.WriteString(m.renderOwners())
	sb.WriteString("\n")
	sb.WriteString(m.renderHelp())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'a' for autonomous, 't' for teleop, 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m runModel) renderOwners() string {
	rows := make([][]string, 0, len(robot.AllResources()))
	for _, res := range robot.AllResources() {
		rows = append(rows, []string{
			string(res),
			m.state.Owners[res],
			fmt.Sprintf("%+.2f", m.state.Outputs[res]),
		})
	}
	ownerHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Headers("Resource", "Owner", "Output").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return ownerHeaderStyle
			}
			if col == 0 && row >= 0 && row < len(rows) {
				return cellStyle.Foreground(lipgloss.Color(resourceColors[task.Resource(rows[row][0])]))
			}
			return cellStyle
		}).
		Render()
}

func (m runModel) renderHelp() string {
	var items []string
	for _, pk := range padKeys {
		item := pk.key + " " + pk.label
		if m.pressed[pk.key] {
			item = pressedStyle.Render(item)
		}
		items = append(items, item)
	}
	sticks := fmt.Sprintf("arrows drive (%+.2f/%+.2f)  z/c winch triggers  space release all",
		-m.axes[robot.AxisLeftY], m.axes[robot.AxisRightX])
	return statusStyle.Render("driver/operator: ") + strings.Join(items, "  ") + "\n" + statusStyle.Render(sticks)
}

func renderLegend() string {
	var items []string
	for _, res := range robot.AllResources() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(resourceColors[res])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(res))
	}
	return strings.Join(items, "  ")
}

// chooseRoutine asks which autonomous routine to run.
func chooseRoutine(reg *autonomous.Registry) (string, error) {
	choice := reg.Default()
	options := make([]huh.Option[string], 0, len(reg.Names()))
	for _, name := range reg.Names() {
		options = append(options, huh.NewOption(name, name))
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Autonomous routine").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return choice, nil
}

func (c *RunCommand) Execute(args []string) error {
	k, err := robot.LoadConstants(opts.Constants)
	if err != nil {
		return err
	}

	var (
		r     *robot.Robot
		hw    robot.Hardware
		world *sim.World
	)
	if c.Sim {
		world = sim.NewWorld()
		world.SetTarget(12)
		r, hw = world.Robot(), world
	} else {
		cfg, err := robot.LoadConfig()
		if err != nil {
			return fmt.Errorf("no configuration found, run 'taskbot setup' first: %w", err)
		}
		if cfg.Port == "" || !cfg.IsCalibrated() {
			return errors.New("motors not calibrated, run 'taskbot setup' first")
		}
		bus, err := robot.OpenServoBus(cfg)
		if err != nil {
			return err
		}
		r, hw = bus.Robot(), bus
	}

	reg, err := autonomous.Routines(r, k)
	if err != nil {
		hw.Close()
		return err
	}
	choice := c.Auto
	if choice == "" {
		if choice, err = chooseRoutine(reg); err != nil {
			hw.Close()
			return err
		}
	}

	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	in := sim.NewInputs()
	ctrl, err := teleop.NewController(teleop.Config{
		Robot:      r,
		Hardware:   hw,
		Inputs:     in,
		Constants:  k,
		Routines:   reg,
		Chooser:    robot.StaticChooser(choice),
		Registerer: prometheus.NewRegistry(),
		LogLevel:   level,
		Hz:         c.Hz,
	})
	if err != nil {
		hw.Close()
		return fmt.Errorf("create controller: %w", err)
	}
	defer ctrl.Close()
	if world != nil {
		// The world advances one control cycle per flush.
		world.Period = ctrl.Period()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ctrl.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("controller: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		p := tea.NewProgram(initialRunModel(ctrl, in), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	})
	return g.Wait()
}
