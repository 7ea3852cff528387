package main

import (
	"context"
	"flag"
	"log"
	"runtime"
	"time"

	"matchwire/internal/testevents"
)

const (
	defaultNumMatches     = 20
	defaultEventsPerMatch = 500
	defaultTimeout        = 30 * time.Second
	defaultTestTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL        = flag.String("url", "http://localhost:8080", "Base URL of the service")
		numMatches     = flag.Int("matches", defaultNumMatches, "Number of matches to simulate")
		eventsPerMatch = flag.Int("events", defaultEventsPerMatch, "Number of events per match")
		workers        = flag.Int("workers", runtime.NumCPU()*2, "Number of concurrent workers")
		timeout        = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile     = flag.String("output", "submitted_events.json", "Output file for generated events")
		logFile        = flag.String("log", "pipeline_test.log", "Log file for test output")
		verbose        = flag.Bool("verbose", false, "Enable verbose logging")
		help           = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		testevents.ShowHelp()
		return
	}

	config := &testevents.Config{
		BaseURL:        *baseURL,
		NumMatches:     *numMatches,
		EventsPerMatch: *eventsPerMatch,
		Workers:        *workers,
		Timeout:        *timeout,
		OutputFile:     *outputFile,
		LogFile:        *logFile,
		Verbose:        *verbose,
	}

	if err := testevents.SetupLogging(config); err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	if err := testevents.Run(ctx, config); err != nil {
		log.Fatalf("Pipeline test failed: %v", err)
	}

	log.Println("Pipeline test completed successfully")
}
