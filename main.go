package main

import (
	"context"
	"embed"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hccps/sondar/internal/api"
	"github.com/hccps/sondar/internal/audio"
	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/db"
	"github.com/hccps/sondar/internal/siglog"
	"github.com/hccps/sondar/internal/sonar/pipeline"
)

var (
	//go:embed static/*
	staticFiles embed.FS

	devMode    = flag.Bool("dev", false, "Run in dev mode (serve static files from disk)")
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "sondar_data.db", "Path to the sqlite database")
	configFile = flag.String("config", "", "Path to a JSON config file (defaults baked in)")
	driverKind = flag.String("driver", "disabled", "Audio driver: disabled, mock, or replay")
	replayFile = flag.String("replay", "", "Raw s16le PCM file for the replay driver")
	unitsName  = flag.String("units", "mps", "Speed units for the API: mps, mph, kmph")
	experiment = flag.String("experiment", "", "Start a signal-trace experiment with this name")
	logDir     = flag.String("log-dir", "experiments", "Directory for experiment trace files")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptySonarConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadSonarConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	driver, err := audio.New(*driverKind, *replayFile, cfg.CaptureBufferSamples())
	if err != nil {
		log.Fatalf("failed to create audio driver: %v", err)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	opts := []pipeline.Option{pipeline.WithStore(database)}

	var trace *siglog.Logger
	if *experiment != "" {
		trace = siglog.NewLogger(cfg)
		trace.StartExperiment(*experiment, *logDir)
		opts = append(opts, pipeline.WithTraceLogger(trace))
	}

	proc := pipeline.NewProcessor(cfg, driver, opts...)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := proc.Start(ctx); err != nil {
		log.Fatalf("failed to start pipeline: %v", err)
	}
	defer proc.Release()

	// log published results so a headless run shows signs of life
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, results := proc.Subscribe()
		defer proc.Unsubscribe(id)
		for {
			select {
			case res, ok := <-results:
				if !ok {
					return
				}
				log.Printf("frame %d: velocity=%.3f m/s correlation=%.1f",
					res.FrameIndex, res.VelocityMps, res.Correlation)
			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		server := api.NewServer(proc, database, cfg, *unitsName)
		server.AttachDebugRoutes(mux)
		mux.Handle("/api/", http.StripPrefix("/api", server.ServeMux()))

		// read static files from the embedded filesystem in production
		// or from ./static in dev for easier iteration
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			staticHandler = http.FileServer(http.FS(staticFiles))
		}
		mux.Handle("/", staticHandler)

		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	<-ctx.Done()
	proc.Stop()

	if trace != nil {
		if path, err := trace.Save(); err != nil {
			log.Printf("failed to save experiment: %v", err)
		} else {
			log.Printf("experiment saved to %s", path)
		}
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
