package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dbehnke/antitheft/internal/config"
	"github.com/dbehnke/antitheft/internal/hal"
	"github.com/dbehnke/antitheft/internal/network"
	"github.com/dbehnke/antitheft/internal/node"
	"github.com/dbehnke/antitheft/internal/persist"
)

const VERSION = "1.0.0-go"

// Simulation runs a transmitter and a receiver in one process, joined by an
// in-memory datagram link
type Simulation struct {
	transmitter *node.Transmitter
	receiver    *node.Receiver
	console     *node.Console
}

// NewSimulation wires both nodes from one configuration
func NewSimulation(cfg *config.Config) *Simulation {
	debug := cfg.GetLogDebug()
	txEnd, rxEnd := network.NewLoopbackPair(network.DEFAULT_QUEUE)

	armButton := hal.NewMemoryLine("BTN1", hal.HIGH)
	locateButton := hal.NewMemoryLine("BTN2", hal.HIGH)
	vibration := hal.NewMemoryLine("SW420", hal.HIGH)

	tc := node.TransmitterConfig{
		ArmButton:    armButton,
		LocateButton: locateButton,
		FeedbackLED:  hal.NewMemoryLine("LED", hal.LOW),
		Link:         txEnd,
	}
	node.ApplyTransmitterConfig(&tc, cfg)

	rc := node.ReceiverConfig{
		Relay:      hal.NewLoggedLine("RELAY", hal.NewMemoryLine("RELAY", hal.LOW), true),
		Siren:      hal.NewLoggedLine("BUZZER", hal.NewMemoryLine("BUZZER", hal.LOW), debug),
		TurnSignal: hal.NewLoggedLine("RELAY2", hal.NewMemoryLine("RELAY2", hal.LOW), debug),
		LinkLED:    hal.NewMemoryLine("LED_IND", hal.LOW),
		Vibration:  vibration,
		Link:       rxEnd,
		Store:      persist.NewStore(persist.NewMemorySlot(nil)),
	}
	node.ApplyReceiverConfig(&rc, cfg)
	// Transitions are the simulator's output
	rc.Options.Debug = true

	console := node.NewConsole(node.DEFAULT_HOLD)
	console.Bind("a", armButton, "press ARM/DISARM on the fob")
	console.Bind("l", locateButton, "press LOCATE on the fob")
	console.Bind("v", vibration, "shake the vehicle")

	return &Simulation{
		transmitter: node.NewTransmitter(tc),
		receiver:    node.NewReceiver(rc, time.Now()),
		console:     console,
	}
}

// Run drives both poll loops until ctx is cancelled
func (s *Simulation) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.transmitter.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.receiver.Run(ctx)
	}()

	go func() {
		if err := s.console.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
			log.Printf("Console stopped: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("Simulation stopped: %s", s.receiver.Status(time.Now()))
}

func main() {
	var (
		configFile = flag.String("config", "", "Optional configuration file path")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("Antitheft simulator v%s\n", VERSION)
		return
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.NewConfig(*configFile)
	if *configFile != "" {
		if err := cfg.Load(); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	sim := NewSimulation(cfg)
	log.Printf("Antitheft simulator v%s ready, type help for keys", VERSION)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	sim.Run(ctx)
}
