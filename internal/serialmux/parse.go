package serialmux

import "strings"

const (
	LineTypeMeasurement = "measurement"
	LineTypeComment     = "comment"
	LineTypeUnknown     = "unknown"
)

// ClassifyLine inspects a raw serial line and returns a coarse line type.
// Gateways often print banners and status text between readings; only
// measurement lines are worth handing to the parser.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case line == "" || strings.HasPrefix(line, "#"):
		return LineTypeComment
	case strings.HasPrefix(line, "L ") || strings.HasPrefix(line, "L\t"),
		strings.HasPrefix(line, "R ") || strings.HasPrefix(line, "R\t"):
		return LineTypeMeasurement
	default:
		return LineTypeUnknown
	}
}
