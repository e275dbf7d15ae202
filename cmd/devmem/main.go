// Package main provides the devmem CLI.
package main

import (
	"fmt"
	"os"

	"github.com/born-ml/devmem/device"
	"github.com/born-ml/devmem/engine/pool"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("devmem %s\n", version)
			return
		case "stats":
			demo()
			return
		}
	}

	fmt.Println("devmem - Buffer lifetime and view safety for ML backends")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  stats      Run an allocation demo and print memory stats")
}

// demo allocates a few buffers against the pooled engine and prints the
// resulting memory stats.
func demo() {
	eng := pool.New()
	dev := device.New(eng)

	var datas []*device.DeviceData
	for _, size := range []int{64, 1024, 64 * 1024} {
		d, err := dev.CreateData(size)
		if err != nil {
			fmt.Fprintf(os.Stderr, "allocation failed: %v\n", err)
			os.Exit(1)
		}
		datas = append(datas, d)
	}

	stats := dev.MemoryStats()
	fmt.Printf("Active buffers:  %d\n", stats.ActiveBuffers)
	fmt.Printf("Allocated bytes: %d\n", stats.TotalAllocatedBytes)

	for _, d := range datas {
		d.Dispose()
	}
	dev.PerformCleanup()

	stats = dev.MemoryStats()
	fmt.Printf("After cleanup:   %d buffers, %d bytes pooled\n",
		stats.ActiveBuffers, stats.TotalAllocatedBytes)
}
