package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mrlokans/stagesync/internal/config"
	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/entrypoint"
)

// PlatformsCommand lists the platform catalog and connection state
type PlatformsCommand struct {
	ConnectedOnly bool
}

// NewPlatformsCommand creates a new PlatformsCommand
func NewPlatformsCommand() *PlatformsCommand {
	return &PlatformsCommand{}
}

// ParseFlags parses command line flags
func (cmd *PlatformsCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("platforms", flag.ExitOnError)

	fs.BoolVar(&cmd.ConnectedOnly, "connected", false, "Only show connected platforms")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s platforms [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "List supported platforms with their connection state.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

// Run executes the platforms command
func (cmd *PlatformsCommand) Run() error {
	cfg := config.NewConfig()

	services, err := entrypoint.BuildServices(cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	stored, err := services.Platforms.List()
	if err != nil {
		return fmt.Errorf("failed to load platforms: %w", err)
	}
	byID := make(map[string]entities.Platform, len(stored))
	for _, platform := range stored {
		byID[platform.ID] = platform
	}

	fmt.Printf("%-12s %-12s %-10s %-30s %s\n", "ID", "CONNECTION", "CONNECTED", "DATA TYPES", "LAST SYNC")
	for _, caps := range services.Registry.All() {
		platform, known := byID[caps.ID]
		connected := known && platform.Connected
		if cmd.ConnectedOnly && !connected {
			continue
		}

		dataTypes := make([]string, 0, len(caps.SupportedDataTypes))
		for _, dt := range caps.SupportedDataTypes {
			dataTypes = append(dataTypes, string(dt))
		}

		lastSync := "-"
		if known && platform.LastSync != nil {
			lastSync = platform.LastSync.Format("2006-01-02 15:04:05")
		}

		fmt.Printf("%-12s %-12s %-10t %-30s %s\n",
			caps.ID, caps.ConnectionType, connected,
			strings.Join(dataTypes, ","), lastSync)
	}
	return nil
}
