package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaserLine(t *testing.T) {
	assert.Equal(t, "L\t1.5\t-2\t100\t1.5\t-2\t0.5\t0", LaserLine(1.5, -2, 100, 1.5, -2, 0.5, 0))
}

func TestRadarLine(t *testing.T) {
	assert.Equal(t, "R\t3\t0.1\t-0.2\t200\t1\t2\t3\t4", RadarLine(3, 0.1, -0.2, 200, 1, 2, 3, 4))
}

func TestStraightLineLog(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(StraightLineLog(4)), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.True(t, strings.HasPrefix(lines[1], "L\t1\t0.5\t0\t"))
	assert.True(t, strings.HasPrefix(lines[2], "R\t"))
	assert.Len(t, strings.Fields(lines[2]), 9)
	assert.True(t, strings.HasPrefix(lines[4], "R\t"))
	assert.Contains(t, lines[4], "\t1500000\t")
}
