package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/gps-recorder/internal/api"
	"github.com/banshee-data/gps-recorder/internal/config"
	"github.com/banshee-data/gps-recorder/internal/db"
	"github.com/banshee-data/gps-recorder/internal/export"
	"github.com/banshee-data/gps-recorder/internal/fsutil"
	"github.com/banshee-data/gps-recorder/internal/gps"
	"github.com/banshee-data/gps-recorder/internal/monitoring"
	"github.com/banshee-data/gps-recorder/internal/publish"
	"github.com/banshee-data/gps-recorder/internal/recorder"
	"github.com/banshee-data/gps-recorder/internal/serialmux"
	"github.com/banshee-data/gps-recorder/internal/shutdown"
	"github.com/banshee-data/gps-recorder/internal/timeutil"
	"github.com/banshee-data/gps-recorder/internal/track"
	"github.com/banshee-data/gps-recorder/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a .json or .yaml config file")
	port        = flag.String("port", "", "Serial port of the receiver (overrides config)")
	dbPath      = flag.String("db", "", "Path of the fix log database (overrides config)")
	outDir      = flag.String("out", "", "Directory for exported GPX files (overrides config)")
	policyName  = flag.String("policy", "", "Segment policy, dedup or batch (overrides config)")
	listen      = flag.String("listen", "", "Status server listen address, empty disables (overrides config)")
	devMode     = flag.Bool("dev", false, "Replay an NMEA fixture instead of opening the serial port")
	fixtures    = flag.String("fixtures", "fixtures.nmea", "NMEA fixture replayed in dev mode")
	debug       = flag.Bool("debug", false, "Log per-sentence diagnostics")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *outDir != "" {
		cfg.Export.Dir = *outDir
	}
	if *policyName != "" {
		cfg.Policy.Name = *policyName
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openSerial(cfg *config.Config) (serialmux.SerialMuxInterface, error) {
	if *devMode {
		interval := time.Duration(cfg.Serial.UpdateRateMS) * time.Millisecond
		m, err := serialmux.NewFixtureSerialMux(*fixtures, serialmux.ReplayOptions{Interval: interval, Loop: true})
		if err != nil {
			return nil, fmt.Errorf("failed to open fixtures file: %w", err)
		}
		return m, nil
	}
	m, err := serialmux.NewRealSerialMux(cfg.Serial.Port, cfg.Serial.Options)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.EnableDebug(*debug)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	session := uuid.NewString()
	log.Printf("%s starting, session %s", version.String(), session)

	gpsSerial, err := openSerial(cfg)
	if err != nil {
		log.Fatalf("failed to open receiver: %v", err)
	}
	defer gpsSerial.Close()

	if err := gpsSerial.Initialize(gps.InitCommands(gps.DefaultOutputMask, cfg.Serial.UpdateRateMS)...); err != nil {
		log.Fatalf("failed to initialize receiver: %v", err)
	}
	log.Printf("initialized receiver on %s (%s), fix every %dms", cfg.Serial.Port, cfg.Serial.Options, cfg.Serial.UpdateRateMS)

	fixLog, err := db.Open(cfg.Database.Path, db.Options{ForeignKeys: cfg.Database.ForeignKeys})
	if err != nil {
		log.Fatalf("failed to open fix log: %v", err)
	}
	defer fixLog.Close()

	policy, err := cfg.SegmentPolicy()
	if err != nil {
		log.Fatalf("failed to configure segment policy: %v", err)
	}

	clock := timeutil.RealClock{}
	exporter := export.New(fsutil.OSFileSystem{}, clock, cfg.ExportOptions(session))
	buf := &track.Buffer{}
	rec := recorder.New(recorder.Options{
		Clock:         clock,
		Policy:        policy,
		Normalize:     cfg.NormalizerOptions(),
		FlushInterval: cfg.FlushInterval(),
		Log:           fixLog,
		Exporter:      exporter,
		Buffer:        buf,
	})
	log.Printf("recording with %s policy, exporting to %s", policy.Name(), cfg.Export.Dir)

	coord := shutdown.New(buf, exporter)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	coord.Notify(ctx, syscall.SIGINT, syscall.SIGTERM)

	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = "gps-recorder-" + session[:8]
		}
		pub, err := publish.NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			log.Printf("live publishing disabled: %v", err)
		} else {
			defer pub.Close()
			rec.AddPublisher(pub)
		}
	}
	hub := api.NewHub()
	rec.AddPublisher(hub)

	var wg sync.WaitGroup

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := gpsSerial.Monitor(ctx)
		if errors.Is(err, context.Canceled) {
			log.Print("monitor routine terminated")
			return
		}
		if err != nil {
			log.Printf("failed to monitor serial port: %v", err)
		}
		// closing the mux closes the subscription so the recorder reports
		// the lost receiver
		gpsSerial.Close()
		log.Print("monitor routine terminated, receiver lost")
	}()

	if cfg.Listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			server := &http.Server{
				Addr: cfg.Listen,
				Handler: api.LoggingMiddleware(api.NewServer(api.Options{
					SessionID: session,
					Recorder:  rec,
					State:     coord,
					Buffer:    buf,
					Renderer:  exporter,
					Live:      hub,
					Admin:     []api.AdminRoutes{fixLog, gpsSerial},
				}).ServeMux()),
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
	}

	id, lines := gpsSerial.Subscribe()
	rec.Run(ctx, recorder.NewLineSource(lines, clock, 0), coord.Stop())
	<-coord.Stopped()
	log.Printf("recorder stopped (%s)", coord.Reason())

	gpsSerial.Unsubscribe(id)
	hub.Close()
	cancel()
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
