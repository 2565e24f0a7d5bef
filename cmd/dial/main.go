// Command dial places a single outbound call without running the HTTP
// server. The webhook-driven playback still requires the server to be
// reachable at PUBLIC_BASE_URL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"voice-server/internal/bootstrap"
	"voice-server/internal/config"
	"voice-server/internal/observability"
)

func main() {
	number := flag.String("number", "", "The phone number to call")
	message := flag.String("message", "", "The message to speak on the call")
	flag.Parse()

	if *number == "" || *message == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	logger := observability.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}

	deps, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize dependencies", err)
	}

	callID, err := deps.VoiceProcessor.InitiateCall(ctx, *number, *message)
	if err != nil {
		logger.Error(ctx, "failed to initiate call", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("Call initiated with ID: %s\n", callID)
}
