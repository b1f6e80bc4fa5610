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

	"github.com/fieldclock/server/internal/agent"
	"github.com/fieldclock/server/internal/config"
	"github.com/fieldclock/server/internal/models"
	"github.com/fieldclock/server/internal/services"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	queue, err := agent.OpenQueue(cfg.Agent.QueuePath)
	if err != nil {
		log.Fatalf("Failed to open queue: %v", err)
	}
	defer queue.Close()

	transport := agent.NewHTTPTransport(cfg.Agent.ServerURL, cfg.Agent.APIKey, cfg.Security.APIKeyHeader)

	switch os.Args[1] {
	case "clock-in":
		runClockIn(cfg, queue, transport, os.Args[2:])
	case "clock-out":
		runClockOut(cfg, queue, transport, os.Args[2:])
	case "status":
		runStatus(queue, transport)
	case "cancel":
		runCancel(queue, os.Args[2:])
	case "run":
		runDaemon(cfg, queue, transport)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: fieldclock-agent <command> [flags]

Commands:
  clock-in   --site <id> --lat <deg> --lng <deg> [--accuracy <m>]
  clock-out  --lat <deg> --lng <deg> [--accuracy <m>]
  status     show queue and connectivity state
  cancel     --event <id>
  run        run the background sync daemon`)
}

func runClockIn(cfg *config.Config, queue *agent.Queue, transport agent.Transport, args []string) {
	fs := flag.NewFlagSet("clock-in", flag.ExitOnError)
	site := fs.String("site", "", "job site id")
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	accuracy := fs.Float64("accuracy", -1, "GPS accuracy in meters")
	fs.Parse(args)

	if *site == "" {
		log.Fatal("clock-in requires --site")
	}

	submitOperation(cfg, queue, transport, buildOperation(cfg, models.OpClockIn, *site, *lat, *lng, *accuracy))
}

func runClockOut(cfg *config.Config, queue *agent.Queue, transport agent.Transport, args []string) {
	fs := flag.NewFlagSet("clock-out", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	accuracy := fs.Float64("accuracy", -1, "GPS accuracy in meters")
	fs.Parse(args)

	submitOperation(cfg, queue, transport, buildOperation(cfg, models.OpClockOut, "", *lat, *lng, *accuracy))
}

func buildOperation(cfg *config.Config, kind, siteID string, lat, lng, accuracy float64) *models.PendingOperation {
	op := &models.PendingOperation{
		EventID:       services.NewEventIDService().Mint(),
		OperationKind: kind,
		JobSiteID:     siteID,
		Lat:           lat,
		Lng:           lng,
		OwnerWorkerID: cfg.Agent.DeviceID,
		CreatedAt:     time.Now().UTC(),
		Status:        models.OpStatusPending,
	}
	if op.OwnerWorkerID == "" {
		op.OwnerWorkerID = "local"
	}
	if accuracy >= 0 {
		op.AccuracyMeters = &accuracy
	}
	return op
}

// submitOperation enqueues the operation, then makes one immediate drain
// attempt so the common online case gets a synchronous answer
func submitOperation(cfg *config.Config, queue *agent.Queue, transport agent.Transport, op *models.PendingOperation) {
	ctx := context.Background()

	inserted, err := queue.Enqueue(ctx, op)
	if err != nil {
		log.Fatalf("Failed to enqueue: %v", err)
	}
	if !inserted {
		fmt.Printf("Event %s already queued\n", op.EventID)
		return
	}
	fmt.Printf("Queued %s event %s\n", op.OperationKind, op.EventID)

	coordinator := agent.NewCoordinator(queue, transport, nil, cfg.Agent.MaxRetries, time.Minute)
	result, err := coordinator.DrainOnce(ctx)
	if err != nil {
		log.Fatalf("Drain failed: %v", err)
	}

	switch {
	case result.Sent > 0:
		fmt.Printf("Synced %d operation(s)\n", result.Sent)
	case result.Rejected > 0 || result.NeedsAttention > 0:
		fmt.Println("Operation needs attention, run 'status' for details")
	default:
		fmt.Println("Server unreachable, operation will sync when online")
	}
}

func runStatus(queue *agent.Queue, transport agent.Transport) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if transport.Probe(ctx) {
		fmt.Println("Connectivity: online")
	} else {
		fmt.Println("Connectivity: offline")
	}

	ops, err := queue.List(ctx)
	if err != nil {
		log.Fatalf("Failed to list queue: %v", err)
	}

	if len(ops) == 0 {
		fmt.Println("Queue: empty")
		return
	}

	fmt.Printf("Queue: %d operation(s)\n", len(ops))
	for _, op := range ops {
		line := fmt.Sprintf("  %s  %-8s  %s  retries=%d", op.EventID, op.OperationKind, op.Status, op.RetryCount)
		if op.LastError != nil {
			line += "  last-error=" + *op.LastError
		}
		fmt.Println(line)
	}
}

func runCancel(queue *agent.Queue, args []string) {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	eventID := fs.String("event", "", "event id to cancel")
	fs.Parse(args)

	if *eventID == "" {
		log.Fatal("cancel requires --event")
	}

	removed, err := queue.Cancel(context.Background(), *eventID)
	if err != nil {
		log.Fatalf("Failed to cancel: %v", err)
	}
	if removed {
		fmt.Printf("Cancelled %s\n", *eventID)
	} else {
		fmt.Printf("No queued operation %s\n", *eventID)
	}
}

func runDaemon(cfg *config.Config, queue *agent.Queue, transport agent.Transport) {
	monitor := agent.NewConnectivityMonitor(transport.Probe,
		time.Duration(cfg.Agent.ProbeIntervalSeconds)*time.Second)
	monitor.Start()
	defer monitor.Stop()

	coordinator := agent.NewCoordinator(queue, transport, monitor, cfg.Agent.MaxRetries,
		time.Duration(cfg.Agent.DrainIntervalSeconds)*time.Second)
	coordinator.Start()
	defer coordinator.Stop()

	log.Printf("FieldClock agent running, server %s", cfg.Agent.ServerURL)
	coordinator.Kick()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Agent stopped")
}
