package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectSource(t *testing.T) {
	tests := []struct {
		name                     string
		input, serial, udp, pcap string
		want                     string
		wantErr                  bool
	}{
		{name: "input", input: "data.txt", want: sourceInput},
		{name: "serial", serial: "/dev/ttyUSB0", want: sourceSerial},
		{name: "udp", udp: ":9000", want: sourceUDP},
		{name: "pcap", pcap: "capture.pcap", want: sourcePCAP},
		{name: "none", wantErr: true},
		{name: "two", input: "data.txt", udp: ":9000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectSource(tt.input, tt.serial, tt.udp, tt.pcap)
			if tt.wantErr {
				assert.ErrorIs(t, err, errSourceCount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNISPlotPath(t *testing.T) {
	assert.Equal(t, "out/nis_laser.png", nisPlotPath("out/nis.png", "laser"))
	assert.Equal(t, "nis_radar.png", nisPlotPath("nis", "radar"))
}

func TestSplitCommands(t *testing.T) {
	assert.Equal(t, []string{"OF", "UF"}, splitCommands(" OF, ,UF "))
	assert.Nil(t, splitCommands(""))
}

func TestLoadTuning(t *testing.T) {
	cfg, err := loadTuning("")
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.GetStdA())

	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"std_a": 0.9}`), 0644))
	cfg, err = loadTuning(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.GetStdA())
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, 115200, *baudRate)
	assert.Equal(t, 9000, *udpPort)
	assert.False(t, *showVersion)
	assert.Equal(t, "mps", *speedUnits)
}
