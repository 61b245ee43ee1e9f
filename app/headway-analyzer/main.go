package main

import (
	"fmt"
	logger "log"
	"os"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/nats-io/nats.go"

	"github.com/marcosroriz/headway-analysis/app/headway-analyzer/analyzer"
	"github.com/marcosroriz/headway-analysis/business/data/route"
	"github.com/marcosroriz/headway-analysis/business/headway"
	"github.com/marcosroriz/headway-analysis/foundation/database"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "HEADWAY : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		Route struct {
			Line      int     `conf:"default:263"`
			Spacing   float64 `conf:"default:0.00025"`
			StopsFile string  `conf:"default:data/263-stops.csv"`
			AVLFile   string  `conf:"default:data/avl.csv"`
		}
		Analysis struct {
			OutlierThresholdMeters      float64 `conf:"default:100"`
			StopSnapToleranceMeters     float64 `conf:"default:15"`
			TerminalSnapToleranceMeters float64 `conf:"default:100"`
			StaleGapShortSeconds        int     `conf:"default:120"`
			StaleGapLongSeconds         int     `conf:"default:300"`
			MinBufferForReset           int     `conf:"default:5"`
			NearTerminalStops           int     `conf:"default:2"`
			MinSamplesToFlush           int     `conf:"default:3"`
			WindowStartHour             int     `conf:"default:12"`
			WindowEndHour               int     `conf:"default:14"`
			ScheduledHeadwaySeconds     float64 `conf:"default:930"`
			OutOfServiceStatus          string  `conf:"default:FORA DE SERVICO"`
		}
		Output struct {
			SamplesDir  string `conf:"default:output/samples"`
			SummaryFile string `conf:"default:output/summary.csv"`
		}
		Publish struct {
			RecordToDatabase bool   `conf:"default:false"`
			PublishOverNats  bool   `conf:"default:false"`
			NatsURL          string `conf:"default:nats://127.0.0.1:4222"`
		}
		Web struct {
			Serve bool   `conf:"default:false"`
			Addr  string `conf:"default:0.0.0.0:8181"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Reconstruct stop pass events from AVL pings and derive per stop headway statistics"
	const prefix = "HEADWAY"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	// =========================================================================
	// Start Database

	log.Println("main: Initializing database support")

	db, err := database.Open(database.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Printf("main: Database Stopping : %s", cfg.DB.Host)
		if err := db.Close(); err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()

	// =========================================================================
	// Route geometry and stop table

	projector := route.NewPostgisProjector(db, cfg.Route.Line)
	if err = projector.Prepare(cfg.Route.Spacing); err != nil {
		return err
	}

	stopsFile, err := os.Open(cfg.Route.StopsFile)
	if err != nil {
		return fmt.Errorf("opening stops file: %w", err)
	}
	stops, err := analyzer.ReadStopTable(stopsFile, cfg.Route.StopsFile)
	if closeErr := stopsFile.Close(); closeErr != nil {
		log.Printf("main: error closing stops file: %v", closeErr)
	}
	if err != nil {
		return err
	}
	log.Printf("main: loaded %d stops from %s", stops.Len(), cfg.Route.StopsFile)

	// =========================================================================
	// Optional NATS fan-out

	var natsConnection *nats.Conn
	if cfg.Publish.PublishOverNats {
		natsConnection, err = nats.Connect(cfg.Publish.NatsURL)
		if err != nil {
			return fmt.Errorf("connecting to nats at %s: %w", cfg.Publish.NatsURL, err)
		}
		defer natsConnection.Close()
	}

	// =========================================================================
	// Run the analysis

	avlFile, err := os.Open(cfg.Route.AVLFile)
	if err != nil {
		return fmt.Errorf("opening avl file: %w", err)
	}
	defer func() {
		if err := avlFile.Close(); err != nil {
			log.Printf("main: error closing avl file: %v", err)
		}
	}()

	analysisConfig := analyzer.Config{
		Line: cfg.Route.Line,
		Window: headway.Window{
			StartHour: cfg.Analysis.WindowStartHour,
			EndHour:   cfg.Analysis.WindowEndHour,
		},
		ScheduledHeadwaySeconds: cfg.Analysis.ScheduledHeadwaySeconds,
		OutOfServiceStatus:      cfg.Analysis.OutOfServiceStatus,
		Tracker: headway.TrackerConfig{
			OutlierThresholdMeters:      cfg.Analysis.OutlierThresholdMeters,
			StopSnapToleranceMeters:     cfg.Analysis.StopSnapToleranceMeters,
			TerminalSnapToleranceMeters: cfg.Analysis.TerminalSnapToleranceMeters,
			StaleGapShort:               time.Duration(cfg.Analysis.StaleGapShortSeconds) * time.Second,
			StaleGapLong:                time.Duration(cfg.Analysis.StaleGapLongSeconds) * time.Second,
			MinBufferForReset:           cfg.Analysis.MinBufferForReset,
			NearTerminalStops:           cfg.Analysis.NearTerminalStops,
			MinSamplesToFlush:           cfg.Analysis.MinSamplesToFlush,
		},
		RecordToDatabase: cfg.Publish.RecordToDatabase,
		PublishOverNats:  cfg.Publish.PublishOverNats,
	}

	report, err := analyzer.Run(log, db, natsConnection, stops, projector, avlFile, cfg.Route.AVLFile, analysisConfig)
	if err != nil {
		return err
	}

	// =========================================================================
	// Exports

	if err = analyzer.WriteSampleFiles(cfg.Output.SamplesDir, report); err != nil {
		return err
	}
	if err = analyzer.WriteSummaryFile(cfg.Output.SummaryFile, report); err != nil {
		return err
	}
	log.Printf("main: wrote samples to %s and summary to %s", cfg.Output.SamplesDir, cfg.Output.SummaryFile)

	if cfg.Web.Serve {
		return analyzer.ServeReport(log, cfg.Web.Addr, report)
	}
	return nil
}
