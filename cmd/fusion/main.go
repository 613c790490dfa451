// Command fusion runs the laser/radar UKF over a measurement source and
// reports the estimate quality.
//
//	fusion -input obj_pose-laser-radar-synthetic-input.txt -html run.html
//	fusion -serial /dev/ttyUSB0 -db fusion.db
//	fusion migrate status -db fusion.db
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/banshee-data/sensorfusion/internal/config"
	"github.com/banshee-data/sensorfusion/internal/db"
	"github.com/banshee-data/sensorfusion/internal/network"
	"github.com/banshee-data/sensorfusion/internal/pipeline"
	"github.com/banshee-data/sensorfusion/internal/report"
	"github.com/banshee-data/sensorfusion/internal/serialmux"
	"github.com/banshee-data/sensorfusion/internal/ukf"
	"github.com/banshee-data/sensorfusion/internal/units"
	"github.com/banshee-data/sensorfusion/internal/version"
)

var (
	inputFile   = flag.String("input", "", "Measurement log file to process ('-' for stdin)")
	serialPort  = flag.String("serial", "", "Serial device delivering measurement lines")
	baudRate    = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	serialInit  = flag.String("serial-init", "", "Comma separated commands sent to the serial device on start")
	udpAddr     = flag.String("udp", "", "UDP listen address for measurement datagrams, e.g. :9000")
	pcapFile    = flag.String("pcap", "", "PCAP capture to replay (requires a build with -tags=pcap)")
	udpPort     = flag.Int("udp-port", 9000, "UDP port selected from -pcap captures")
	udpRcvBuf   = flag.Int("udp-rcvbuf", 1<<20, "UDP receive buffer size in bytes")
	configFile  = flag.String("config", "", "Tuning config JSON; built-in defaults when empty")
	dbPath      = flag.String("db", "", "SQLite database to record the run in")
	htmlOut     = flag.String("html", "", "Write an interactive trajectory and NIS report to this HTML file")
	nisPNG      = flag.String("nis-png", "", "Write NIS plots as PNG; the sensor name is appended to the file name")
	trajPNG     = flag.String("trajectory-png", "", "Write the trajectory plot to this PNG file")
	outputFile  = flag.String("output", "", "Write estimates as tab separated text ('-' for stdout)")
	speedUnits  = flag.String("units", units.MPS, "Units for the reported final speed: "+units.ValidUnitsString())
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// Source kinds accepted on the command line.
const (
	sourceInput  = "input"
	sourceSerial = "serial"
	sourceUDP    = "udp"
	sourcePCAP   = "pcap"
)

var errSourceCount = errors.New("exactly one of -input, -serial, -udp or -pcap is required")

// selectSource returns which measurement source was requested.
func selectSource(input, serial, udp, pcap string) (string, error) {
	var chosen []string
	if input != "" {
		chosen = append(chosen, sourceInput)
	}
	if serial != "" {
		chosen = append(chosen, sourceSerial)
	}
	if udp != "" {
		chosen = append(chosen, sourceUDP)
	}
	if pcap != "" {
		chosen = append(chosen, sourcePCAP)
	}
	if len(chosen) != 1 {
		return "", errSourceCount
	}
	return chosen[0], nil
}

// nisPlotPath inserts the sensor name before the extension of base.
func nisPlotPath(base, sensor string) string {
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".png"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_" + sensor + ext
}

// splitCommands parses the -serial-init value.
func splitCommands(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		// The action comes first so flags may follow it.
		args := os.Args[2:]
		var action []string
		if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
			action, args = args[:1], args[1:]
		}
		fs := flag.NewFlagSet("migrate", flag.ExitOnError)
		path := fs.String("db", "fusion.db", "SQLite database to migrate")
		fs.Parse(args)
		if err := db.RunMigrateCommand(os.Stdout, append(action, fs.Args()...), *path); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("fusion %s\n", version.String())
		return
	}

	source, err := selectSource(*inputFile, *serialPort, *udpAddr, *pcapFile)
	if err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	if !units.IsValid(*speedUnits) {
		log.Fatalf("invalid -units %q: expected one of %s", *speedUnits, units.ValidUnitsString())
	}

	tuning, err := loadTuning(*configFile)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, source, tuning); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, source string, tuning *config.TuningConfig) error {
	var sinks []pipeline.EstimateSink

	if *outputFile != "" {
		var w io.Writer = os.Stdout
		if *outputFile != "-" {
			f, err := os.Create(*outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		sinks = append(sinks, pipeline.NewTextSink(w))
	}

	var (
		store *db.DB
		runID string
	)
	if *dbPath != "" {
		var err error
		store, err = db.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()

		cfgJSON, err := tuning.MarshalIndent()
		if err != nil {
			return fmt.Errorf("failed to encode tuning config: %w", err)
		}
		r, err := store.CreateRun(sourceLabel(source), cfgJSON)
		if err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}
		runID = r.RunID
		log.Printf("recording run %s in %s", runID, *dbPath)
		sinks = append(sinks, pipeline.NewDBSink(store, runID))
	}

	p := pipeline.New(pipeline.Config{
		Options:       ukf.OptionsFromTuning(tuning),
		NISConfidence: tuning.GetNISConfidence(),
		Sinks:         sinks,
	})

	if err := feed(ctx, source, p); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	summary := p.Summary()
	summary.SpeedUnits = *speedUnits
	if store != nil {
		if err := store.FinishRun(runID, summary.RMSEArray()); err != nil {
			log.Printf("failed to finish run %s: %v", runID, err)
		}
	}
	if _, err := summary.WriteTo(os.Stdout); err != nil {
		return err
	}
	return writeReports(p, sourceLabel(source))
}

func sourceLabel(source string) string {
	switch source {
	case sourceInput:
		return *inputFile
	case sourceSerial:
		return *serialPort
	case sourceUDP:
		return "udp:" + *udpAddr
	case sourcePCAP:
		return *pcapFile
	}
	return source
}

// feed drives p from the selected source until it is exhausted or ctx is
// cancelled.
func feed(ctx context.Context, source string, p *pipeline.Pipeline) error {
	switch source {
	case sourceInput:
		var r io.Reader = os.Stdin
		if *inputFile != "-" {
			f, err := os.Open(*inputFile)
			if err != nil {
				return fmt.Errorf("failed to open input: %w", err)
			}
			defer f.Close()
			r = f
		}
		return p.RunReader(ctx, r)

	case sourceSerial:
		mux, err := serialmux.NewRealSerialMux(*serialPort, serialmux.PortOptions{BaudRate: *baudRate})
		if err != nil {
			return err
		}
		if err := mux.Initialize(splitCommands(*serialInit)...); err != nil {
			mux.Close()
			return err
		}
		log.Printf("reading measurements from %s at %d baud", *serialPort, *baudRate)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial port: %v", err)
			}
			// Closing ends the subscription below.
			mux.Close()
		}()
		err = p.RunSerial(ctx, mux)
		wg.Wait()
		if dropped := mux.Dropped(); dropped > 0 {
			log.Printf("serial: %d lines dropped by a full backlog", dropped)
		}
		return err

	case sourceUDP:
		stats := &network.PacketStats{}
		l := network.NewUDPListener(network.UDPListenerConfig{
			Address: *udpAddr,
			RcvBuf:  *udpRcvBuf,
			Handler: p,
			Stats:   stats,
		})
		err := l.Start(ctx)
		stats.LogStats()
		return err

	case sourcePCAP:
		stats := &network.PacketStats{}
		err := network.ReadPCAPFile(ctx, *pcapFile, *udpPort, p, stats)
		stats.LogStats()
		return err
	}
	return fmt.Errorf("unknown source %q", source)
}

func writeReports(p *pipeline.Pipeline, title string) error {
	series := p.NISSeries()

	if *htmlOut != "" {
		f, err := os.Create(*htmlOut)
		if err != nil {
			return fmt.Errorf("failed to create HTML report: %w", err)
		}
		if err := report.WriteTrajectoryHTML(f, p.Trajectory(title), series...); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("wrote %s", *htmlOut)
	}

	if *trajPNG != "" {
		if err := report.SaveTrajectoryPlot(*trajPNG, p.Trajectory(title)); err != nil {
			return err
		}
		log.Printf("wrote %s", *trajPNG)
	}

	if *nisPNG != "" {
		for _, s := range series {
			path := nisPlotPath(*nisPNG, s.Sensor)
			if err := report.SaveNISPlot(path, s); err != nil {
				return err
			}
			log.Printf("wrote %s", path)
		}
	}
	return nil
}
