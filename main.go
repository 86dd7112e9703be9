// Command level.report runs the tank level collector: it drives the
// ultrasonic measurement pipeline against a serial sensor bridge, persists
// each conditioned reading in SQLite and serves the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kiniou-labs/level.report/internal/api"
	"github.com/kiniou-labs/level.report/internal/config"
	"github.com/kiniou-labs/level.report/internal/db"
	"github.com/kiniou-labs/level.report/internal/serialmux"
	"github.com/kiniou-labs/level.report/internal/tanklevel"
	"github.com/kiniou-labs/level.report/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Run with the mock sensor bridge fed from fixtures.txt")
	listen      = flag.String("listen", ":8080", "Listen address")
	dbFile      = flag.String("db", "tank_data.db", "SQLite database path")
	configPath  = flag.String("config", "", "Optional tuning config JSON (defaults apply when omitted)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("level.report %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyTuningConfig()
	switch {
	case *configPath != "":
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	default:
		// Pick up the checked-in defaults file when running from the repo
		// root; accessor defaults cover the rest.
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			loaded, err := config.LoadTuningConfig(config.DefaultConfigPath)
			if err != nil {
				log.Fatalf("failed to load config: %v", err)
			}
			cfg = loaded
		}
	}

	var mux serialmux.SerialMuxInterface
	if *devMode {
		data, err := os.ReadFile("fixtures.txt")
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		mux = serialmux.NewMockSerialMux(data)
	} else {
		var err error
		mux, err = serialmux.NewRealSerialMux(cfg.GetSerialPort(), serialmux.PortOptions{BaudRate: cfg.GetBaudRate()})
		if err != nil {
			log.Fatalf("failed to open sensor bridge port: %v", err)
		}
	}
	defer mux.Close()

	store, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	// One session ID per collector run ties readings to a deployment.
	sessionID := uuid.NewString()
	log.Printf("collector session %s", sessionID)

	// Assemble the measurement pipeline.
	speed := tanklevel.NewSpeedOfSound(cfg.GetDefaultTemperatureC())
	sampler := tanklevel.NewSerialSampler(mux, cfg.GetEchoTimeout())
	defer sampler.Close()

	estimator, err := tanklevel.NewEstimator(sampler, speed, cfg.GetSampleCount(), cfg.GetTrimCount(), cfg.GetSettleDelay())
	if err != nil {
		log.Fatalf("bad estimator configuration: %v", err)
	}
	smoother, err := tanklevel.NewSmoother(cfg.GetSmoothingWindow())
	if err != nil {
		log.Fatalf("bad smoother configuration: %v", err)
	}
	geometry, err := tanklevel.NewGeometry(cfg.GetTankHeightCm(), cfg.GetTankRadiusCm(), cfg.GetTankMinDepthCm())
	if err != nil {
		log.Fatalf("bad tank geometry: %v", err)
	}

	reporter := tanklevel.ReporterFunc(func(result tanklevel.TrimResult, smoothed float64, reading tanklevel.Reading) {
		log.Printf("level=%.1fcm volume=%.1fL fill=%.1f%% (smoothed=%.1fcm raw=[%.1f..%.1f] trimmed=[%.1f..%.1f])",
			reading.UsefulLevel, reading.VolumeLiters, reading.UsefulPercent,
			smoothed, result.RawMin, result.RawMax, result.TrimmedMin, result.TrimmedMax)
		if err := store.RecordReading(sessionID, result, smoothed, reading); err != nil {
			log.Printf("failed to record reading: %v", err)
		}
	})

	monitor, err := tanklevel.NewMonitor(speed, estimator, smoother, geometry, reporter, cfg.GetPeriod())
	if err != nil {
		log.Fatalf("bad monitor configuration: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the serial monitor routine to manage IO on the bridge port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("serial monitor routine terminated")
	}()

	if err := mux.Initialize(); err != nil {
		log.Printf("failed to initialize sensor bridge: %v", err)
	}

	// run the sampling loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := monitor.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("sampling loop failed: %v", err)
		}
		log.Print("sampling loop terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		httpMux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		store.AttachAdminRoutes(httpMux)
		mux.AttachAdminRoutes(httpMux)

		apiMux := api.NewServer(store, monitor, mux, sessionID).ServeMux()
		httpMux.Handle("/api/", http.StripPrefix("/api", apiMux))

		server := &http.Server{
			Addr:    *listen,
			Handler: httpMux,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
