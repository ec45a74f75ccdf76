// Command localsim runs a complete matching run inside one process.
//
// Both data parties are simulated locally, so no privacy is gained: the
// process sees both datasets. The simulator exists to validate protocol
// parameters and dataset preparation before a real two-party deployment,
// and to demonstrate the full pipeline.
//
// # Usage
//
//	go run ./cmd/localsim --a a.csv --b b.csv --column email --margin 2
//
// With --stack the run goes through the real HTTP services on loopback
// ports instead of the in-process transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/privmatch/matchnet/ingest"
	"github.com/privmatch/matchnet/services"
)

func main() {
	var (
		pathA    = flag.String("a", "", "CSV file holding party 0's identifiers")
		pathB    = flag.String("b", "", "CSV file holding party 1's identifiers")
		column   = flag.String("column", "", "Identifier column name (empty means first column)")
		capacity = flag.Int("capacity", 0, "Fixed padding bound (0 derives it from the datasets)")
		margin   = flag.Int("margin", 0, "Extra padding slots beyond the larger dataset")
		useStack = flag.Bool("stack", false, "Run through the HTTP services on loopback ports")
		timeout  = flag.Duration("timeout", 30*time.Minute, "Overall run deadline")
	)
	flag.Parse()

	if *pathA == "" || *pathB == "" {
		fmt.Println("Error: --a and --b are required")
		os.Exit(1)
	}

	rawsA, err := ingest.ReadColumn(*pathA, *column)
	if err != nil {
		fmt.Printf("Dataset A error: %v\n", err)
		os.Exit(1)
	}
	rawsB, err := ingest.ReadColumn(*pathB, *column)
	if err != nil {
		fmt.Printf("Dataset B error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	var count int
	if *useStack {
		stack, err := services.NewStack(&services.StackConfig{
			Capacity:       *capacity,
			DeclaredBounds: [2]int{len(rawsA) + *margin, len(rawsB) + *margin},
		})
		if err != nil {
			fmt.Printf("Deploy error: %v\n", err)
			os.Exit(1)
		}
		defer stack.Shutdown(context.Background())

		count, err = stack.Run(runCtx, rawsA, rawsB)
		if err != nil {
			fmt.Printf("Run failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		sim := services.NewLocalSimulator(&services.SimulatorConfig{
			Capacity: *capacity,
			Margin:   *margin,
		})
		count, err = sim.Run(runCtx, rawsA, rawsB)
		if err != nil {
			fmt.Printf("Run failed: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println(count)
}
