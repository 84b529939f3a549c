package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mrlokans/stagesync/internal/config"
	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/entrypoint"
)

// SyncCommand pushes local data to one or all connected platforms
type SyncCommand struct {
	Platforms string
	DataTypes string
	Timeout   time.Duration
	Verbose   bool
}

// NewSyncCommand creates a new SyncCommand
func NewSyncCommand() *SyncCommand {
	return &SyncCommand{}
}

// ParseFlags parses command line flags
func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	fs.StringVar(&cmd.Platforms, "platforms", "", "Comma-separated platform IDs (empty = all connected)")
	fs.StringVar(&cmd.DataTypes, "data-types", "", "Comma-separated data types (empty = all enabled per platform)")
	fs.DurationVar(&cmd.Timeout, "timeout", 10*time.Minute, "Overall timeout for the sync run")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print per-platform sync records")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sync [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Push local performer data to connected platforms.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s sync\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s sync -platforms gigdesk,showcal\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s sync -platforms stagebook -data-types profile,media\n", os.Args[0])
	}

	return fs.Parse(args)
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Run executes the sync command
func (cmd *SyncCommand) Run() error {
	cfg := config.NewConfig()

	services, err := entrypoint.BuildServices(cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	platformIDs := splitList(cmd.Platforms)
	var dataTypes []entities.DataType
	for _, dt := range splitList(cmd.DataTypes) {
		dataTypes = append(dataTypes, entities.DataType(dt))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	fmt.Println("StageSync")
	fmt.Println("=========")
	if len(platformIDs) == 0 {
		fmt.Println("Syncing all connected platforms...")
	} else {
		fmt.Printf("Syncing: %s\n", strings.Join(platformIDs, ", "))
	}

	result, err := services.Orchestrator.SyncMany(ctx, platformIDs, dataTypes)
	if err != nil {
		return fmt.Errorf("sync failed to start: %w", err)
	}

	duration := result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond)
	fmt.Printf("\nDone in %v: %d succeeded, %d partial, %d failed\n",
		duration, len(result.Succeeded), len(result.Partial), len(result.Failed))

	for _, id := range result.Succeeded {
		fmt.Printf("  ok      %s\n", id)
	}
	for _, id := range result.Partial {
		fmt.Printf("  partial %s\n", id)
	}
	for id, reason := range result.Failed {
		fmt.Printf("  failed  %s: %s\n", id, reason)
	}

	if cmd.Verbose {
		if err := cmd.printRecords(services, platformIDs); err != nil {
			return err
		}
	}

	if len(result.Failed) > 0 {
		return errors.New("one or more platforms failed to sync")
	}
	return nil
}

func (cmd *SyncCommand) printRecords(services *entrypoint.Services, platformIDs []string) error {
	fmt.Println("\nRecent sync records:")

	scoped := platformIDs
	if len(scoped) == 0 {
		scoped = []string{""}
	}
	for _, platformID := range scoped {
		records, err := services.History.Recent(10, platformID)
		if err != nil {
			return fmt.Errorf("failed to load sync history: %w", err)
		}
		for _, record := range records {
			fmt.Printf("  %s %s %s %s %d/%d items\n",
				record.CreatedAt.Format("2006-01-02 15:04:05"),
				record.PlatformID, record.Operation, record.Status,
				record.ItemsProcessed, record.ItemsTotal)
		}
	}
	return nil
}
