//go:build linux && (arm || arm64)

package alarm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

const gpioConsumer = "flightstab-alarm"

var openGPIOFn = openGPIO

// openGPIO claims BCM line GPIO<pin> as a low output on the first gpiochip
// that names it.
func openGPIO(pin int) (Indicator, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("alarm: invalid gpio pin %d", pin)
	}
	name := fmt.Sprintf("GPIO%d", pin)

	var errs []error
	for _, path := range gpioChips() {
		ind, err := claimLine(path, name)
		if err == nil {
			return ind, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", path, err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("alarm: no gpiochip devices")
	}
	return nil, fmt.Errorf("alarm: claim %s: %w", name, errors.Join(errs...))
}

// gpioChips lists /dev/gpiochip*, with gpiochip0 (Pi 4 and earlier) and
// gpiochip4 (Pi 5) first.
func gpioChips() []string {
	seen := map[string]bool{}
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	var rest []string
	if entries, err := os.ReadDir("/dev"); err == nil {
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "gpiochip") {
				rest = append(rest, filepath.Join("/dev", e.Name()))
			}
		}
	}
	sort.Strings(rest)
	for _, p := range append([]string{"/dev/gpiochip0", "/dev/gpiochip4"}, rest...) {
		if _, err := os.Stat(p); err == nil {
			add(p)
		}
	}
	return paths
}

func claimLine(chipPath, name string) (*gpioLine, error) {
	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return nil, err
	}
	offset, err := chip.FindLine(name)
	if err == nil {
		var line *gpiocdev.Line
		line, err = chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(gpioConsumer))
		if err == nil {
			return &gpioLine{chip: chip, line: line}, nil
		}
	}
	_ = chip.Close()
	return nil, err
}

type gpioLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpioLine) SetOn(on bool) error {
	if g.line == nil {
		return fmt.Errorf("alarm: gpio line closed")
	}
	if on {
		return g.line.SetValue(1)
	}
	return g.line.SetValue(0)
}

// Close drives the line low before releasing it.
func (g *gpioLine) Close() error {
	if g.line == nil {
		return nil
	}
	_ = g.line.SetValue(0)
	err := g.line.Close()
	_ = g.chip.Close()
	g.line, g.chip = nil, nil
	return err
}
