package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

const usage = `usage: drone-tour-planner <command> [flags]

Commands:
  fly       download a day's sensors, fly the tour, write flight log and readings map
  serve     run the planning HTTP API
  heatmap   render a 10x10 prediction grid as GeoJSON
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "fly":
		err = runFly(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "heatmap":
		err = runHeatmap(os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// logFlags adds -log-level and -log-dir, defaulting to LOG_LEVEL and LOG_DIR.
func logFlags(fs *flag.FlagSet) *LogConfig {
	cfg := LogConfigFromEnv()
	fs.StringVar(&cfg.Level, "log-level", cfg.Level, "debug, info, warn or error")
	fs.StringVar(&cfg.Dir, "log-dir", cfg.Dir, "directory for rotating JSON logs")
	return &cfg
}

type flyOptions struct {
	date   time.Time
	launch Point
	seed   int64
	server string
	out    string
}

// parseFlyArgs accepts flags, or the positional form
// "DD MM YYYY LAT LNG SEED PORT" which targets a local web server.
func parseFlyArgs(args []string) (flyOptions, *LogConfig, error) {
	fs := flag.NewFlagSet("fly", flag.ContinueOnError)
	date := fs.String("date", "", "survey date, DD-MM-YYYY")
	lat := fs.Float64("lat", 55.944425, "launch latitude")
	lng := fs.Float64("lng", -3.188396, "launch longitude")
	seed := fs.Int64("seed", 5678, "random seed")
	server := fs.String("server", "http://localhost:80", "web server base URL")
	out := fs.String("out", ".", "output directory")
	logCfg := logFlags(fs)
	if err := fs.Parse(args); err != nil {
		return flyOptions{}, nil, err
	}

	opts := flyOptions{
		launch: Point{X: *lng, Y: *lat},
		seed:   *seed,
		server: *server,
		out:    *out,
	}

	if fs.NArg() == 7 {
		p := fs.Args()
		var err error
		if opts.date, err = time.Parse("02-01-2006", p[0]+"-"+p[1]+"-"+p[2]); err != nil {
			return opts, nil, fmt.Errorf("invalid date: %w", err)
		}
		if opts.launch.Y, err = strconv.ParseFloat(p[3], 64); err != nil {
			return opts, nil, fmt.Errorf("invalid latitude: %w", err)
		}
		if opts.launch.X, err = strconv.ParseFloat(p[4], 64); err != nil {
			return opts, nil, fmt.Errorf("invalid longitude: %w", err)
		}
		if opts.seed, err = strconv.ParseInt(p[5], 10, 64); err != nil {
			return opts, nil, fmt.Errorf("invalid seed: %w", err)
		}
		if _, err = strconv.Atoi(p[6]); err != nil {
			return opts, nil, fmt.Errorf("invalid port: %w", err)
		}
		opts.server = "http://localhost:" + p[6]
		return opts, logCfg, nil
	}
	if fs.NArg() != 0 {
		return opts, nil, fmt.Errorf("expected 0 or 7 positional arguments, got %d", fs.NArg())
	}

	if *date == "" {
		return opts, nil, errors.New("-date is required")
	}
	d, err := time.Parse("02-01-2006", *date)
	if err != nil {
		return opts, nil, fmt.Errorf("invalid date: %w", err)
	}
	opts.date = d
	return opts, logCfg, nil
}

func runFly(args []string) error {
	opts, logCfg, err := parseFlyArgs(args)
	if err != nil {
		return err
	}
	logger, closer := NewLogger(*logCfg)
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	src := NewDataSource(opts.server, &http.Client{Timeout: 30 * time.Second}, logger)
	zones, err := src.NoFlyZones(ctx)
	if err != nil {
		return err
	}
	targets, err := src.Targets(ctx, opts.date)
	if err != nil {
		return err
	}

	sim, err := NewSimulator(DefaultConfig(), zones, logger)
	if err != nil {
		return err
	}
	tour := PlanTour(opts.launch, targets)
	logger.Info("tour planned",
		slog.Int("sensors", len(tour)),
		slog.Float64("length", TourLength(opts.launch, tour)))

	result, err := sim.Fly(opts.launch, tour, opts.seed)
	if err != nil {
		return err
	}

	logPath, mapPath, err := WriteFlightOutputs(opts.out, opts.date, result, sim.Obstacles())
	if err != nil {
		return err
	}
	logger.Info("outputs written",
		slog.String("flight", result.ID),
		slog.String("flightLog", logPath),
		slog.String("readings", mapPath))

	if !result.Completed() {
		return fmt.Errorf("flight %s ended early: %s after %d moves", result.ID, result.Outcome, result.Final.Moves)
	}
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "listen address")
	nfzDir := fs.String("nfz-dir", "", "directory of *.geojson no-fly zones used when a request has none")
	server := fs.String("server", "", "web server base URL for dated plan requests")
	logCfg := logFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, closer := NewLogger(*logCfg)
	defer closer.Close()

	var zones []Polygon
	if *nfzDir != "" {
		var err error
		if zones, err = LoadNoFlyZonesFromFiles(*nfzDir, logger); err != nil {
			return err
		}
	}

	var src *DataSource
	if *server != "" {
		src = NewDataSource(*server, &http.Client{Timeout: 30 * time.Second}, logger)
	}

	metrics, err := NewFlightCollector(nil)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           NewServer(zones, src, metrics, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", *addr),
			slog.Int("noFlyZones", len(zones)))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	}
}

func runHeatmap(args []string) error {
	fs := flag.NewFlagSet("heatmap", flag.ContinueOnError)
	in := fs.String("in", "predictions.txt", "file with 100 comma separated predictions")
	out := fs.String("out", "heatmap.geojson", "output GeoJSON file, - for stdout")
	logCfg := logFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, closer := NewLogger(*logCfg)
	defer closer.Close()

	f, err := os.Open(*in)
	if err != nil {
		return fmt.Errorf("failed to open predictions: %w", err)
	}
	defer f.Close()

	predictions, err := ReadPredictions(f)
	if err != nil {
		return err
	}
	fc, err := Heatmap(DefaultConfig().Boundary, predictions)
	if err != nil {
		return err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		file, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	logger.Info("heatmap written", slog.String("out", *out), slog.Int("cells", len(fc.Features)))
	return nil
}
