//go:build !linux

package gpio

// LineInfo is the kernel's public description of a line.
type LineInfo struct {
	Chip     string
	Offset   int
	Name     string
	Consumer string
	Used     bool
	Output   bool
}

// FindLine is not implemented on non-Linux platforms.
func FindLine(string) (string, int, error) {
	return "", 0, errUnsupported
}

// DescribeLine is not implemented on non-Linux platforms.
func DescribeLine(string, int) (LineInfo, error) {
	return LineInfo{}, errUnsupported
}
