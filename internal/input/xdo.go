package input

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Injector delivers synthetic key and mouse events to the session's display.
type Injector interface {
	Key(keysym string) error
	KeyDown(keysym string) error
	KeyUp(keysym string) error
	MouseMove(x, y int) error
	MouseMoveRelative(dx, dy int) error
	MouseDown(button int) error
	MouseUp(button int) error
	Click(button int) error
}

// XdoInjector shells out to xdotool, one short-lived process per event, with
// the session's display in the environment.
type XdoInjector struct {
	binary  string
	display string
}

// NewXdoInjector creates an injector targeting the given X display.
func NewXdoInjector(binary, display string) *XdoInjector {
	return &XdoInjector{binary: binary, display: display}
}

func (x *XdoInjector) run(args ...string) error {
	cmd := exec.Command(x.binary, args...)
	cmd.Env = append(os.Environ(), "DISPLAY="+x.display)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("input: %s %v: %w", x.binary, args, err)
	}
	return nil
}

func (x *XdoInjector) Key(keysym string) error {
	return x.run("key", keysym)
}

func (x *XdoInjector) KeyDown(keysym string) error {
	return x.run("keydown", keysym)
}

func (x *XdoInjector) KeyUp(keysym string) error {
	return x.run("keyup", keysym)
}

func (x *XdoInjector) MouseMove(xPos, yPos int) error {
	return x.run("mousemove", strconv.Itoa(xPos), strconv.Itoa(yPos))
}

func (x *XdoInjector) MouseMoveRelative(dx, dy int) error {
	// "--" keeps negative deltas from being parsed as flags.
	return x.run("mousemove_relative", "--", strconv.Itoa(dx), strconv.Itoa(dy))
}

func (x *XdoInjector) MouseDown(button int) error {
	return x.run("mousedown", strconv.Itoa(button))
}

func (x *XdoInjector) MouseUp(button int) error {
	return x.run("mouseup", strconv.Itoa(button))
}

func (x *XdoInjector) Click(button int) error {
	return x.run("click", strconv.Itoa(button))
}
