package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/taskbot/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	Port string `long:"port" description:"Serial port of the servo bus (scanned if not set)"`
}

var errNoBus = errors.New("no servo bus found")

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("taskbot setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━"))
	fmt.Println()

	port := c.Port
	if port == "" {
		var err error
		if port, err = scanForBus(); err != nil {
			return err
		}
	}

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Calibrating motors ━━━"))
	fmt.Println()
	cal, err := calibrateMotors(port)
	if err != nil {
		return err
	}

	if robot.ConfigExists() {
		fmt.Println(dimStyle.Render("Replacing the existing " + robot.DefaultConfigFile))
	}
	cfg := &robot.Config{Port: port, Calibration: cal}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", robot.DefaultConfigFile)
	fmt.Println()
	fmt.Println("Start the robot with: " + headerStyle.Render("taskbot run"))
	return nil
}

func scanForBus() (string, error) {
	fmt.Println("Scanning for the servo bus...")
	fmt.Println()

	ports := findBuses()
	switch len(ports) {
	case 0:
		fmt.Println("Make sure the bus is connected and powered on.")
		return "", errNoBus
	case 1:
		fmt.Println(successStyle.Render("Servo bus found on " + ports[0]))
		return ports[0], nil
	}

	var port string
	options := make([]huh.Option[string], 0, len(ports))
	for _, p := range ports {
		options = append(options, huh.NewOption(p, p))
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Several servo buses found").
				Description("Which one drives the robot?").
				Options(options...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return port, nil
}

// findBuses returns the serial ports that answer with every motor ID.
func findBuses() []string {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var found []string
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		bus, servos, err := connectToBus(port)
		if err != nil {
			continue
		}
		bus.Close()
		fmt.Printf("  Found %d servos on %s\n", len(servos), port)
		found = append(found, port)
	}
	return found
}

func connectToBus(port string) (*feetech.Bus, []feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	n := len(robot.AllMotors())
	servos, err := bus.Scan(ctx, 1, n)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	if !hasAllMotors(servos) {
		bus.Close()
		return nil, nil, fmt.Errorf("expected %d servos with IDs 1-%d, found %d", n, n, len(servos))
	}
	return bus, servos, nil
}

func hasAllMotors(servos []feetech.FoundServo) bool {
	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}
	for i := range robot.AllMotors() {
		if !ids[i+1] {
			return false
		}
	}
	return true
}

func calibrateMotors(port string) (robot.Calibration, error) {
	bus, servos, err := connectToBus(port)
	if err != nil {
		return nil, fmt.Errorf("connect to bus: %w", err)
	}
	defer bus.Close()

	servoMap := make(map[int]*feetech.Servo)
	for _, s := range servos {
		servoMap[s.ID] = feetech.NewServo(bus, s.ID, s.Model)
	}

	// Disable all servos so every mechanism can be moved by hand
	ctx := context.Background()
	for _, servo := range servoMap {
		servo.Disable(ctx)
	}

	motors := robot.AllMotors()

	fmt.Println(subHeaderStyle.Render("Record motor directions"))
	fmt.Println("Turn each mechanism by hand in its forward direction.")
	fmt.Println()

	curPositions := make(map[robot.MotorName]int)
	for i, motorName := range motors {
		pos, _ := servoMap[i+1].Position(ctx)
		curPositions[motorName] = pos
	}

	model := newCalibrationModel(motors, servoMap, curPositions)
	finalModel, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, fmt.Errorf("run calibration: %w", err)
	}
	cm := finalModel.(calibrationModel)

	inverted, err := askInverted(motors, cm.travel)
	if err != nil {
		return nil, err
	}

	calibration := make(robot.Calibration, len(motors))
	for i, motorName := range motors {
		mc := robot.MotorCalibration{ID: i + 1}
		if inverted[motorName] {
			mc.DriveMode = 1
		}
		calibration[motorName] = mc
	}
	return calibration, nil
}

// askInverted confirms which motors run backwards. Motors that travelled
// backwards while being turned forward are preselected.
func askInverted(motors []robot.MotorName, travel map[robot.MotorName]int) (map[robot.MotorName]bool, error) {
	var picked []robot.MotorName
	options := make([]huh.Option[robot.MotorName], 0, len(motors))
	for _, name := range motors {
		options = append(options, huh.NewOption(string(name), name).Selected(travel[name] < -minTravel))
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[robot.MotorName]().
				Title("Inverted motors").
				Description("Select the motors mounted so that positive speed runs backwards").
				Options(options...).
				Value(&picked),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}
	inverted := make(map[robot.MotorName]bool, len(picked))
	for _, name := range picked {
		inverted[name] = true
	}
	return inverted, nil
}

// minTravel is how far, in encoder steps, a motor must be turned for its
// direction to count.
const minTravel = 200

// Calibration TUI model
type calibrationModel struct {
	motors       []robot.MotorName
	servoMap     map[int]*feetech.Servo
	curPositions map[robot.MotorName]int
	travel       map[robot.MotorName]int
	quitting     bool
}

type tickMsg time.Time

func newCalibrationModel(
	motors []robot.MotorName,
	servoMap map[int]*feetech.Servo,
	curPositions map[robot.MotorName]int,
) calibrationModel {
	return calibrationModel{
		motors:       motors,
		servoMap:     servoMap,
		curPositions: curPositions,
		travel:       make(map[robot.MotorName]int, len(motors)),
	}
}

func pollPositions() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return pollPositions()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for i, motorName := range m.motors {
			pos, err := m.servoMap[i+1].Position(ctx)
			if err != nil {
				continue
			}
			m.travel[motorName] += robot.Travel(m.curPositions[motorName], pos)
			m.curPositions[motorName] = pos
		}
		return m, pollPositions()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableMotorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	tableRangeInvertedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Padding(0, 1)

	rows := make([][]string, 0, len(m.motors))
	travels := make([]int, 0, len(m.motors))
	for _, motorName := range m.motors {
		travel := m.travel[motorName]
		travels = append(travels, travel)
		direction := "-"
		switch {
		case travel > minTravel:
			direction = "forward"
		case travel < -minTravel:
			direction = "inverted"
		}
		rows = append(rows, []string{
			string(motorName),
			fmt.Sprintf("%d", m.curPositions[motorName]),
			fmt.Sprintf("%+d", travel),
			direction,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Position", "Travel", "Direction").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableMotorStyle
			case 1:
				return tableCurrentStyle
			case 3:
				if row < 0 || row >= len(travels) {
					return tableCellStyle
				}
				switch tr := travels[row]; {
				case tr > minTravel:
					return tableRangeGoodStyle
				case tr < -minTravel:
					return tableRangeInvertedStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	return t.Render() + "\n\n" + dimStyle.Render("Press Enter when done")
}
