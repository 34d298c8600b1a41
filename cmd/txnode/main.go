package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dbehnke/antitheft/internal/config"
	"github.com/dbehnke/antitheft/internal/hal"
	"github.com/dbehnke/antitheft/internal/network"
	"github.com/dbehnke/antitheft/internal/node"
)

const VERSION = "1.0.0-go"

// TXNode is the key fob process: two simulated buttons, the feedback LED and
// the UDP link to the receiver
type TXNode struct {
	config      *config.Config
	link        *network.Link
	transmitter *node.Transmitter
	console     *node.Console
}

// NewTXNode loads configuration and wires the transmitter
func NewTXNode(configFile, envFile string) (*TXNode, error) {
	cfg := config.NewConfig(configFile)
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}
	if err := cfg.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	if cfg.GetPeerAddress() == "" {
		return nil, fmt.Errorf("[Link] PeerAddress is required on the transmitter")
	}

	link, err := network.NewLink(
		cfg.GetLocalAddress(),
		int(cfg.GetLocalPort()),
		cfg.GetPeerAddress(),
		int(cfg.GetPeerPort()),
		cfg.GetLogDebug(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create link: %v", err)
	}
	if err := link.Open(); err != nil {
		return nil, fmt.Errorf("failed to open link: %v", err)
	}

	armButton := hal.NewMemoryLine("BTN1", hal.HIGH)
	locateButton := hal.NewMemoryLine("BTN2", hal.HIGH)

	tc := node.TransmitterConfig{
		ArmButton:    armButton,
		LocateButton: locateButton,
		FeedbackLED:  hal.NewLoggedLine("LED", hal.NewMemoryLine("LED", hal.LOW), cfg.GetLogDebug()),
		Link:         link,
	}
	node.ApplyTransmitterConfig(&tc, cfg)

	console := node.NewConsole(node.DEFAULT_HOLD)
	console.Bind("a", armButton, "press ARM/DISARM")
	console.Bind("l", locateButton, "press LOCATE")

	return &TXNode{
		config:      cfg,
		link:        link,
		transmitter: node.NewTransmitter(tc),
		console:     console,
	}, nil
}

// Run polls the transmitter until ctx is cancelled
func (n *TXNode) Run(ctx context.Context) error {
	// The console blocks on stdin and is abandoned at shutdown
	go func() {
		if err := n.console.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
			log.Printf("Console stopped: %v", err)
		}
	}()

	err := n.transmitter.Run(ctx)

	n.link.Close()
	log.Printf("TX stopped: sent=%d, failed=%d", n.transmitter.Sent(), n.transmitter.Failed())

	if err == context.Canceled {
		return nil
	}
	return err
}

func main() {
	var (
		configFile = flag.String("config", "antitheft-tx.ini", "Configuration file path")
		envFile    = flag.String("env", ".env", "Optional dotenv overrides")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("Antitheft TX v%s\n", VERSION)
		return
	}

	if flag.NArg() > 0 {
		*configFile = flag.Arg(0)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Antitheft TX v%s starting with config: %s", VERSION, *configFile)

	tx, err := NewTXNode(*configFile, *envFile)
	if err != nil {
		log.Fatalf("Failed to create TX node: %v", err)
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

	if err := tx.Run(ctx); err != nil {
		log.Fatalf("TX node error: %v", err)
	}
}
