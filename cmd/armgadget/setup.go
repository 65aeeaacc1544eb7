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

	"github.com/gwillem/armgadget/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var errAborted = errors.New("setup aborted")

type SetupCommand struct {
	Port string `long:"port" description:"Serial port of the arm (skips scanning)"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("ArmGadget Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	port := c.Port
	if port == "" {
		if port, err = scanForArm(); err != nil {
			return err
		}
	}
	cfg.Arm.Port = port

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Homing ━━━"))
	fmt.Println()
	cal, err := homeArm(port)
	if err != nil {
		return err
	}
	cfg.Arm.Calibration = cal

	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start the gadget with: " + headerStyle.Render("armgadget run --broker mqtt://host:1883"))

	return nil
}

type armInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func scanForArm() (string, error) {
	fmt.Println("Scanning for the gadget arm...")
	fmt.Println()

	arms := findArms()
	if len(arms) == 0 {
		fmt.Println("Make sure the arm is connected and powered on.")
		return "", errors.New("no three-servo arm found")
	}

	fmt.Printf("Found %d candidate(s). Let's identify the gadget...\n", len(arms))

	var port string
	for _, arm := range arms {
		if port != "" {
			arm.bus.Close()
			continue
		}
		ok, err := identifyArmWithWiggle(arm)
		if err != nil {
			return "", err
		}
		if ok {
			port = arm.port
		}
	}
	if port == "" {
		return "", errors.New("no arm selected")
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Arm identified: ") + port)
	return port, nil
}

func findArms() []armInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var arms []armInfo
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		bus, servos, err := connectToArm(port)
		if err != nil {
			continue
		}
		fmt.Printf("  Found arm on %s\n", port)
		arms = append(arms, armInfo{port: port, servos: servos, bus: bus})
	}
	return arms
}

// isGadgetArm reports whether exactly the servo IDs 1-3 answered.
func isGadgetArm(servos []feetech.FoundServo) bool {
	joints := len(robot.AllJoints())
	if len(servos) != joints {
		return false
	}
	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}
	for i := 1; i <= joints; i++ {
		if !ids[i] {
			return false
		}
	}
	return true
}

func connectToArm(port string) (*feetech.Bus, []feetech.FoundServo, error) {
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

	servos, err := bus.Scan(ctx, 1, len(robot.AllJoints()))
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	if !isGadgetArm(servos) {
		bus.Close()
		return nil, nil, fmt.Errorf("not a gadget arm (expected servos with IDs 1-3)")
	}
	return bus, servos, nil
}

func identifyArmWithWiggle(arm armInfo) (bool, error) {
	defer arm.bus.Close()
	ctx := context.Background()

	var servo *feetech.Servo
	for _, s := range arm.servos {
		if s.ID == 1 {
			servo = feetech.NewServo(arm.bus, s.ID, s.Model)
			break
		}
	}
	if servo == nil {
		return false, nil
	}

	originalPos, err := servo.Position(ctx)
	if err != nil {
		fmt.Printf("  Error reading position: %v\n", err)
		return false, nil
	}
	if err := servo.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling servo: %v\n", err)
		return false, nil
	}

	fmt.Printf("\n  Wiggling the shoulder on %s...\n", arm.port)

	wiggleAmount := 30
	moveTimeMs := 500
	for _, pos := range []int{originalPos + wiggleAmount, originalPos - wiggleAmount, originalPos} {
		servo.SetPositionWithTime(ctx, pos, moveTimeMs)
		time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	}
	servo.Disable(ctx)

	var isGadget bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Is the arm on %s the gadget?", arm.port)).
				Description("The arm whose shoulder just wiggled").
				Affirmative("Yes").
				Negative("Skip").
				Value(&isGadget),
		),
	)
	if err := form.Run(); err != nil {
		return false, errAborted
	}
	return isGadget, nil
}

// homeArm lets the user explore each joint's range and records the pose
// held when Enter is pressed as the zero position.
func homeArm(port string) (robot.Calibration, error) {
	bus, servos, err := connectToArm(port)
	if err != nil {
		return nil, fmt.Errorf("connect to arm: %w", err)
	}
	defer bus.Close()

	servoMap := make(map[int]*feetech.Servo)
	for _, s := range servos {
		servoMap[s.ID] = feetech.NewServo(bus, s.ID, s.Model)
	}

	ctx := context.Background()
	for _, servo := range servoMap {
		servo.Disable(ctx)
	}

	fmt.Println(subHeaderStyle.Render("Record range and home pose"))
	fmt.Println("Move each joint to its minimum AND maximum positions.")
	fmt.Println("Then hold the arm straight with the elbow down and press Enter.")
	fmt.Println()

	joints := robot.AllJoints()
	track := newRangeTracker(joints)
	for i, j := range joints {
		if pos, err := servoMap[i+1].Position(ctx); err == nil {
			track.observe(j, pos)
		}
	}

	finalModel, err := tea.NewProgram(homingModel{joints: joints, servoMap: servoMap, track: track}).Run()
	if err != nil {
		return nil, fmt.Errorf("run homing: %w", err)
	}
	hm := finalModel.(homingModel)
	if hm.aborted {
		return nil, errAborted
	}

	fmt.Println()
	return hm.track.calibration(), nil
}

// rangeTracker records the current, lowest and highest raw step per joint.
type rangeTracker struct {
	joints []robot.Joint
	cur    map[robot.Joint]int
	min    map[robot.Joint]int
	max    map[robot.Joint]int
}

func newRangeTracker(joints []robot.Joint) *rangeTracker {
	return &rangeTracker{
		joints: joints,
		cur:    make(map[robot.Joint]int),
		min:    make(map[robot.Joint]int),
		max:    make(map[robot.Joint]int),
	}
}

func (t *rangeTracker) observe(j robot.Joint, pos int) {
	if _, seen := t.cur[j]; !seen {
		t.min[j], t.max[j] = pos, pos
	}
	t.cur[j] = pos
	t.min[j] = min(t.min[j], pos)
	t.max[j] = max(t.max[j], pos)
}

// calibration turns the tracked pose into joint calibration. The shoulder
// holds its position after a turn; the other joints coast.
func (t *rangeTracker) calibration() robot.Calibration {
	cal := make(robot.Calibration, len(t.joints))
	for i, j := range t.joints {
		jc := robot.JointCalibration{
			ID:           i + 1,
			HomingOffset: t.cur[j],
			RangeMin:     t.min[j],
			RangeMax:     t.max[j],
		}
		if j == robot.Shoulder {
			jc.StopAction = robot.Hold
		}
		cal[j] = jc
	}
	return cal
}

type homingModel struct {
	joints   []robot.Joint
	servoMap map[int]*feetech.Servo
	track    *rangeTracker
	done     bool
	aborted  bool
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m homingModel) Init() tea.Cmd {
	return tick()
}

func (m homingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.done = true
			return m, tea.Quit
		case "q", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for i, j := range m.joints {
			pos, err := m.servoMap[i+1].Position(ctx)
			if err != nil {
				continue
			}
			m.track.observe(j, pos)
		}
		return m, tick()
	}

	return m, nil
}

func (m homingModel) View() string {
	if m.done || m.aborted {
		return ""
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableJointStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.joints))
	ranges := make([]int, 0, len(m.joints))
	for _, j := range m.joints {
		rangeSize := m.track.max[j] - m.track.min[j]
		ranges = append(ranges, rangeSize)
		rows = append(rows, []string{
			string(j),
			fmt.Sprintf("%d", m.track.cur[j]),
			fmt.Sprintf("%d", m.track.min[j]),
			fmt.Sprintf("%d", m.track.max[j]),
			fmt.Sprintf("%d", rangeSize),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableJointStyle
			case 1:
				return tableCurrentStyle
			case 4:
				if row >= 0 && row < len(ranges) && ranges[row] > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	return t.Render() + "\n\n" + dimStyle.Render("Press Enter to record the home pose, q to abort")
}
