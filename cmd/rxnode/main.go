package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dbehnke/antitheft/internal/config"
	"github.com/dbehnke/antitheft/internal/database"
	"github.com/dbehnke/antitheft/internal/hal"
	"github.com/dbehnke/antitheft/internal/network"
	"github.com/dbehnke/antitheft/internal/node"
	"github.com/dbehnke/antitheft/internal/persist"
	"github.com/dbehnke/antitheft/internal/telemetry"
)

const (
	VERSION = "1.0.0-go"

	STATUS_INTERVAL   = 30 * time.Second
	JOURNAL_RETENTION = 30 * 24 * time.Hour
)

// RXNode is the receiver process: simulated board lines, the UDP link, the
// persisted arming slot and the optional journal/telemetry reporters
type RXNode struct {
	config   *config.Config
	link     *network.Link
	receiver *node.Receiver
	reporter *node.Reporter
	console  *node.Console

	db        *database.DB
	publisher *telemetry.MQTTPublisher

	vibration *hal.MemoryLine
}

func loadConfig(configFile, envFile string) (*config.Config, error) {
	cfg := config.NewConfig(configFile)
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}
	if err := cfg.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewRXNode wires the receiver. With resetSlot the persisted arming record
// is erased first, so the node boots DISARMED.
func NewRXNode(cfg *config.Config, resetSlot bool) (*RXNode, error) {
	debug := cfg.GetLogDebug()

	link, err := network.NewLink(
		cfg.GetLocalAddress(),
		int(cfg.GetLocalPort()),
		cfg.GetPeerAddress(),
		int(cfg.GetPeerPort()),
		debug,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create link: %v", err)
	}
	if err := link.Open(); err != nil {
		return nil, fmt.Errorf("failed to open link: %v", err)
	}

	n := &RXNode{
		config:    cfg,
		link:      link,
		vibration: hal.NewMemoryLine("SW420", hal.HIGH),
	}

	slot, journal := n.initializeStorage(resetSlot)
	n.publisher = n.initializeTelemetry()

	var publisher telemetry.Publisher
	if n.publisher != nil {
		publisher = n.publisher
	}
	if journal != nil || publisher != nil {
		n.reporter = node.NewReporter(node.DEFAULT_REPORT_QUEUE, journal, publisher)
	}

	rc := node.ReceiverConfig{
		Relay:      hal.NewLoggedLine("RELAY", hal.NewMemoryLine("RELAY", hal.LOW), debug),
		Siren:      hal.NewLoggedLine("BUZZER", hal.NewMemoryLine("BUZZER", hal.LOW), debug),
		TurnSignal: hal.NewLoggedLine("RELAY2", hal.NewMemoryLine("RELAY2", hal.LOW), debug),
		LinkLED:    hal.NewMemoryLine("LED_IND", hal.LOW),
		Vibration:  n.vibration,
		Link:       link,
		Store:      persist.NewStore(slot),
		Reporter:   n.reporter,
	}
	node.ApplyReceiverConfig(&rc, cfg)
	rc.StatusInterval = STATUS_INTERVAL
	n.receiver = node.NewReceiver(rc, time.Now())

	n.console = node.NewConsole(node.DEFAULT_HOLD)
	n.console.Bind("v", n.vibration, "shake the vehicle (vibration sensor)")

	return n, nil
}

// initializeStorage opens the SQLite slot and journal when enabled, falling
// back to an in-memory slot that does not survive a restart
func (n *RXNode) initializeStorage(resetSlot bool) (persist.Slot, node.Journal) {
	if !n.config.GetDatabaseEnabled() {
		log.Printf("Database disabled, arming state will not survive a restart")
		return persist.NewMemorySlot(nil), nil
	}

	db, err := openDatabase(n.config)
	if err != nil {
		log.Printf("Failed to initialize database: %v", err)
		log.Printf("Falling back to in-memory arming slot...")
		return persist.NewMemorySlot(nil), nil
	}
	n.db = db

	slot := database.NewSlotRepository(db.GetDB())
	if resetSlot {
		if err := slot.Erase(); err != nil {
			log.Printf("Failed to erase arming slot: %v", err)
		} else {
			log.Printf("Arming slot erased")
		}
	}
	if !n.config.GetDatabaseJournal() {
		return slot, nil
	}

	events := database.NewEventRepository(db.JournalDB())
	if pruned, err := events.DeleteBefore(time.Now().Add(-JOURNAL_RETENTION)); err != nil {
		log.Printf("Failed to prune journal: %v", err)
	} else if pruned > 0 {
		log.Printf("Pruned %d journal entries", pruned)
	}
	if count, err := events.Count(); err == nil {
		log.Printf("Journal opened with %d entries", count)
	}
	if last, err := events.ByKind(database.EventKindTransition, 1); err == nil && len(last) == 1 {
		log.Printf("Last transition: %s at %s", last[0].String(), last[0].At.Format(time.RFC3339))
	}

	return slot, events
}

func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.NewDB(database.Config{
		Path: cfg.GetDatabasePath(),
	}, log.New(os.Stdout, "[DB] ", log.LstdFlags))
	if err != nil {
		return nil, err
	}
	if err := db.Health(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}
	return db, nil
}

// printHistory writes the newest journal entries to stdout
func printHistory(cfg *config.Config, limit int) error {
	if !cfg.GetDatabaseEnabled() {
		return fmt.Errorf("[Database] Enabled=0, no journal to show")
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := database.NewEventRepository(db.JournalDB()).Recent(limit)
	if err != nil {
		return err
	}
	for _, e := range events {
		fmt.Printf("%s  %s\n", e.At.Format(time.RFC3339), e.String())
	}
	return nil
}

func (n *RXNode) initializeTelemetry() *telemetry.MQTTPublisher {
	if !n.config.GetMQTTEnabled() {
		return nil
	}

	publisher := telemetry.NewMQTTPublisher(node.MQTTConfig(n.config))
	if err := publisher.Connect(); err != nil {
		// Auto-reconnect is only armed after a first successful connect
		log.Printf("MQTT telemetry disabled: %v", err)
		return nil
	}
	return publisher
}

// Run polls the receiver until ctx is cancelled
func (n *RXNode) Run(ctx context.Context) error {
	log.Printf("Antitheft RX v%s running, state %s", VERSION, n.receiver.Controller().State())

	// The console blocks on stdin and is abandoned at shutdown
	go func() {
		if err := n.console.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
			log.Printf("Console stopped: %v", err)
		}
	}()

	err := n.receiver.Run(ctx)
	n.Stop()
	if err == context.Canceled {
		return nil
	}
	return err
}

// Stop releases the link, reporter, publisher and database
func (n *RXNode) Stop() {
	log.Printf("Shutting down RX node...")

	n.link.Close()
	if n.reporter != nil {
		n.reporter.Close()
		if dropped := n.reporter.Dropped(); dropped > 0 {
			log.Printf("Dropped %d events", dropped)
		}
	}
	if n.publisher != nil {
		n.publisher.Close()
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}

	log.Printf("RX node stopped")
}

func main() {
	var (
		configFile = flag.String("config", getDefaultConfig(), "Configuration file path")
		envFile    = flag.String("env", ".env", "Optional dotenv overrides")
		history    = flag.Int("history", 0, "Print the newest N journal entries and exit")
		reset      = flag.Bool("reset", false, "Erase the persisted arming state before starting")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("Antitheft RX v%s\n", VERSION)
		return
	}

	if flag.NArg() > 0 {
		*configFile = flag.Arg(0)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := loadConfig(*configFile, *envFile)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if *history > 0 {
		if err := printHistory(cfg, *history); err != nil {
			log.Fatalf("Failed to read journal: %v", err)
		}
		return
	}

	log.Printf("Antitheft RX v%s starting with config: %s", VERSION, *configFile)

	rx, err := NewRXNode(cfg, *reset)
	if err != nil {
		log.Fatalf("Failed to create RX node: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := rx.Run(ctx); err != nil {
		log.Fatalf("RX node error: %v", err)
	}
}

// getDefaultConfig returns the default configuration file path
func getDefaultConfig() string {
	if _, err := os.Stat("antitheft.ini"); err == nil {
		return "antitheft.ini"
	}

	systemConfig := "/etc/antitheft.ini"
	if _, err := os.Stat(systemConfig); err == nil {
		return systemConfig
	}

	return "antitheft.ini"
}
