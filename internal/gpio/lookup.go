//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// LineInfo is the kernel's public description of a line.
type LineInfo struct {
	Chip     string
	Offset   int
	Name     string
	Consumer string
	Used     bool
	Output   bool
}

// FindLine locates a line by its kernel name across all GPIO chips and
// returns the chip device path and offset.
func FindLine(name string) (string, int, error) {
	for _, chipName := range gpiocdev.Chips() {
		c, err := gpiocdev.NewChip(chipName)
		if err != nil {
			continue
		}
		for offset := 0; offset < c.Lines(); offset++ {
			info, err := c.LineInfo(offset)
			if err != nil {
				break
			}
			if info.Name == name {
				c.Close()
				return "/dev/" + chipName, offset, nil
			}
		}
		c.Close()
	}
	return "", 0, fmt.Errorf("line %q not found", name)
}

// DescribeLine returns the kernel's description of offset on chip.
func DescribeLine(chip string, offset int) (LineInfo, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return LineInfo{}, fmt.Errorf("open chip %s: %w", chip, err)
	}
	defer c.Close()

	info, err := c.LineInfo(offset)
	if err != nil {
		return LineInfo{}, fmt.Errorf("line info %s:%d: %w", chip, offset, err)
	}
	return LineInfo{
		Chip:     c.Name,
		Offset:   info.Offset,
		Name:     info.Name,
		Consumer: info.Consumer,
		Used:     info.Used,
		Output:   info.Config.Direction == gpiocdev.LineDirectionOutput,
	}, nil
}
