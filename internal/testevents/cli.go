package testevents

import (
	"fmt"
	"io"
	"log"
	"os"

	"matchwire/pkg/logger"
)

// SetupLogging configures logging based on the configuration
func SetupLogging(config *Config) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		multiWriter := io.MultiWriter(os.Stdout, file)
		log.SetOutput(multiWriter)
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return nil
}

// ShowHelp displays usage information
func ShowHelp() {
	fmt.Println("Matchwire Pipeline Test Tool")
	fmt.Println("============================")
	fmt.Println()
	fmt.Println("Usage: test-events [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -url string")
	fmt.Println("        Base URL of the service (default \"http://localhost:8080\")")
	fmt.Println("  -matches int")
	fmt.Println("        Number of matches to simulate (default 20)")
	fmt.Println("  -events int")
	fmt.Println("        Number of events per match (default 500)")
	fmt.Println("  -workers int")
	fmt.Println("        Number of concurrent workers (default: number of CPUs * 2)")
	fmt.Println("  -timeout duration")
	fmt.Println("        HTTP request timeout (default 30s)")
	fmt.Println("  -output string")
	fmt.Println("        Output file for generated events (default \"submitted_events.json\")")
	fmt.Println("  -log string")
	fmt.Println("        Log file for test output (default \"pipeline_test.log\")")
	fmt.Println("  -verbose")
	fmt.Println("        Enable verbose logging")
	fmt.Println("  -help")
	fmt.Println("        Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  test-events")
	fmt.Println("  test-events -matches 5 -events 200")
	fmt.Println("  test-events -url http://localhost:9090 -workers 8")
	fmt.Println("  test-events -verbose -log test_run.log")
}
