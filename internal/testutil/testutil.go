// Package testutil provides shared measurement fixtures for tests.
package testutil

import (
	"fmt"
	"math"
	"strings"
)

// LaserLine formats a laser reading with ground truth in the log format.
func LaserLine(px, py float64, tsUS int64, gtPX, gtPY, gtVX, gtVY float64) string {
	return fmt.Sprintf("L\t%g\t%g\t%d\t%g\t%g\t%g\t%g", px, py, tsUS, gtPX, gtPY, gtVX, gtVY)
}

// RadarLine formats a radar reading with ground truth in the log format.
func RadarLine(rho, phi, rhoDot float64, tsUS int64, gtPX, gtPY, gtVX, gtVY float64) string {
	return fmt.Sprintf("R\t%g\t%g\t%g\t%d\t%g\t%g\t%g\t%g", rho, phi, rhoDot, tsUS, gtPX, gtPY, gtVX, gtVY)
}

// StraightLineLog returns n noise-free readings, alternating laser and
// radar every 0.5 s, of a target moving along x at 1 m/s from (1, 0.5).
// The first line is a comment.
func StraightLineLog(n int) string {
	var b strings.Builder
	b.WriteString("# straight line, 1 m/s along x\n")
	for k := 0; k < n; k++ {
		t := float64(k) * 0.5
		px, py := 1+t, 0.5
		ts := int64(k) * 500000
		if k%2 == 0 {
			b.WriteString(LaserLine(px, py, ts, px, py, 1, 0))
		} else {
			rho := math.Hypot(px, py)
			b.WriteString(RadarLine(rho, math.Atan2(py, px), px/rho, ts, px, py, 1, 0))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
