package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/chargedpika/2023-Charged-Up/pkg/arm"
	"github.com/chargedpika/2023-Charged-Up/pkg/diag"
	"github.com/chargedpika/2023-Charged-Up/pkg/drive"
	"github.com/chargedpika/2023-Charged-Up/pkg/robot"
	"github.com/chargedpika/2023-Charged-Up/pkg/sim"
	"github.com/chargedpika/2023-Charged-Up/pkg/teleop"
)

type RunCommand struct {
	Hz        int    `long:"hz" description:"Control loop frequency (overrides config)"`
	Sim       bool   `long:"sim" description:"Run against the simulated arm instead of the servo rig"`
	Debug     bool   `long:"debug" description:"Log every drive command"`
	LogFile   string `long:"log-file" default:"chargedup.log" description:"Log file (the dashboard owns the terminal)"`
	ConfigDir string `long:"config-dir" default:"." description:"Directory holding chargedup.json"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	statusHeight = 4 // status lines
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border

	// keyHold is how long a key press keeps driving; terminals repeat held keys faster than this.
	keyHold = 150 * time.Millisecond
	keyPoll = 50 * time.Millisecond
)

const (
	seriesAngle    = "angle"
	seriesSetpoint = "setpoint"
)

var seriesColors = map[string]string{
	seriesAngle:    "46",  // green
	seriesSetpoint: "208", // orange
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// driveKeys maps a key to the unit intent it contributes while held.
var driveKeys = map[string]drive.ChassisIntent{
	"w": {VX: 1}, "up": {VX: 1},
	"s": {VX: -1}, "down": {VX: -1},
	"a": {VY: 1}, "left": {VY: 1},
	"d": {VY: -1}, "right": {VY: -1},
	"z": {Omega: 1},
	"x": {Omega: -1},
}

type runModel struct {
	ctrl     *teleop.Controller
	sink     *diag.Sink
	modes    drive.Modes
	chart    *streamlinechart.Model
	width    int // terminal width
	height   int // terminal height
	logs     []string
	quitting bool

	held          map[string]time.Time
	turbo         bool
	fieldOriented bool
	state         teleop.State
}

func (m *runModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string
type diagMsg diag.Message
type pollMsg time.Time

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

func waitForDiag(sink *diag.Sink) tea.Cmd {
	return func() tea.Msg {
		return diagMsg(<-sink.Messages())
	}
}

func pollKeys() tea.Cmd {
	return tea.Tick(keyPoll, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *runModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 16 // default size before we know terminal size
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-statusHeight-footerHeight-borderSize, 8)
	return width, height
}

func (m *runModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialRunModel(ctrl *teleop.Controller, sink *diag.Sink, modes drive.Modes) runModel {
	chart := streamlinechart.New(80, 16,
		streamlinechart.WithYRange(-180, 180),
	)
	for _, name := range []string{seriesAngle, seriesSetpoint} {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}

	return runModel{
		ctrl:  ctrl,
		sink:  sink,
		modes: modes,
		chart: &chart,
		held:  make(map[string]time.Time),
	}
}

// intent sums the unit intents of the keys still held at now, scaled to the active mode.
func (m *runModel) intent(now time.Time) drive.Request {
	limits := m.modes.Normal
	if m.turbo {
		limits = m.modes.Turbo
	}

	var in drive.ChassisIntent
	for key, until := range m.held {
		if now.After(until) {
			delete(m.held, key)
			continue
		}
		d := driveKeys[key]
		in.VX += d.VX * limits.Linear
		in.VY += d.VY * limits.Linear
		in.Omega += d.Omega * limits.Angular
	}
	in.Turbo = m.turbo
	return drive.Request{Intent: in, FieldOriented: m.fieldOriented}
}

func (m runModel) Init() tea.Cmd {
	// Start listening for state and log updates
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
		waitForDiag(m.sink),
		pollKeys(),
	)
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case " ":
			m.ctrl.Release()
		case "t":
			m.turbo = !m.turbo
		case "f":
			m.fieldOriented = !m.fieldOriented
		case "b":
			m.ctrl.SetBrakes(!m.ctrl.Braked())
		case "1", "2", "3", "4", "5":
			name := arm.AllPresets()[int(key[0]-'1')]
			t, _ := arm.Preset(name)
			m.ctrl.Activate(t)
		default:
			if _, ok := driveKeys[key]; ok {
				m.held[key] = time.Now().Add(keyHold)
			}
		}
		m.ctrl.SetInput(m.intent(time.Now()))
		return m, nil

	case pollMsg:
		m.ctrl.SetInput(m.intent(time.Time(msg)))
		return m, pollKeys()

	case stateMsg:
		m.state = teleop.State(msg)
		m.chart.PushDataSet(seriesAngle, m.state.Arm.MeasuredAngle)
		m.chart.PushDataSet(seriesSetpoint, m.state.Arm.Setpoint.Angle)
		m.chart.DrawAll()
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)

	case diagMsg:
		m.addLog(fmt.Sprintf("[%s] %s", msg.Time.Format("15:04:05"), msg.Text))
		return m, waitForDiag(m.sink)
	}

	return m, nil
}

func (m runModel) View() string {
	if m.quitting {
		return "Control loop stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Charged Up"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.ctrl.Hz()))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("wasd/arrows drive, z/x turn, t turbo, f field-oriented, b brake/coast, 1-5 presets, space release, q quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m runModel) renderStatus() string {
	s := m.state
	target := s.Target
	if target == "" {
		target = "-"
	}
	mode := "normal"
	if m.turbo {
		mode = "turbo"
	}
	frame := "robot"
	if m.fieldOriented {
		frame = "field"
	}
	brake := "brake"
	if !s.Brake {
		brake = warnStyle.Render("coast")
	}
	valid := successStyle.Render("ok")
	if !s.Arm.LastValidation {
		valid = warnStyle.Render("rejected")
	}

	lines := []string{
		fmt.Sprintf("%s %s  %s %s  %s %s",
			labelStyle.Render("arm"), s.Resolver, labelStyle.Render("target"), target,
			labelStyle.Render("last request"), valid),
		fmt.Sprintf("%s %7.2f deg %6.2f in  %s (%6.2f, %6.2f)  %s %7.2f deg  %s %5.2f V",
			labelStyle.Render("setpoint"), s.Arm.Setpoint.Angle, s.Arm.Setpoint.Extension,
			labelStyle.Render("pose"), s.Arm.Pose.X, s.Arm.Pose.Y,
			labelStyle.Render("measured"), s.Arm.MeasuredAngle,
			labelStyle.Render("out"), s.Arm.AngleVoltage),
		fmt.Sprintf("%s vx %5.2f vy %5.2f m/s  omega %6.1f deg/s  %s %s  %s %s  %s %s",
			labelStyle.Render("chassis"), s.Chassis.VX, s.Chassis.VY, s.Chassis.Omega,
			labelStyle.Render("mode"), mode, labelStyle.Render("frame"), frame,
			labelStyle.Render("idle"), brake),
		fmt.Sprintf("%s %6.1f deg  %s (%6.2f, %6.2f) m",
			labelStyle.Render("heading"), s.Heading, labelStyle.Render("field"), s.Field.X, s.Field.Y),
	}
	return strings.Join(lines, "\n")
}

func renderLegend() string {
	var items []string
	for _, name := range []string{seriesAngle, seriesSetpoint} {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := robot.LoadConfigFrom(c.ConfigDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if c.Hz > 0 {
		cfg.LoopHz = c.Hz
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := diag.NewLogger(c.Debug, c.LogFile)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	sink := diag.NewSink(logger.Named("diag"), 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The chassis is always simulated; the bench rig only carries the arm.
	world := sim.NewWorld()
	hw := teleop.Hardware{
		Actuators:   world.Arm,
		Position:    world.Arm,
		Heading:     world.Gyro,
		Drivetrain:  world.Drivetrain,
		Diagnostics: sink,
		Brakes:      []teleop.Brake{world.Arm, world.Drivetrain},
	}
	afterTick := world.Step

	if !c.Sim {
		if cfg.Port == "" || !cfg.IsCalibrated() {
			fmt.Fprintln(os.Stderr, "Arm not configured. Run 'chargedup setup' first, or use --sim.")
			os.Exit(1)
		}
		rig, err := robot.OpenRig(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to open servo rig: %v", err)
		}
		defer func() {
			if err := rig.Close(context.Background()); err != nil {
				logger.Warnf("close servo rig: %v", err)
			}
		}()
		if err := rig.Enable(ctx); err != nil {
			log.Fatalf("Failed to enable servos: %v", err)
		}
		hw.Actuators = rig
		hw.Position = rig
		hw.Brakes = []teleop.Brake{rig, world.Drivetrain}
		afterTick = world.Drivetrain.Step
		fmt.Printf("Loaded configuration, arm on %s\n", cfg.Port)
	}

	ctrl, err := teleop.NewController(teleop.Config{
		Robot:     *cfg,
		Logger:    logger,
		AfterTick: afterTick,
	}, hw)
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}

	// Start controller in background
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ctrl.Start(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Controller error: %v", err)
		}
	}()

	// Run TUI
	p := tea.NewProgram(initialRunModel(ctrl, sink, cfg.Drive), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	// let the loop stop the chassis and retract before the rig closes
	cancel()
	<-done
	return nil
}
