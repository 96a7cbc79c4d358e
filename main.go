package main

import (
	"fmt"
	"os"

	"github.com/kilianp07/evpolicy/cmd"
	_ "github.com/kilianp07/evpolicy/infra/metrics"
	_ "github.com/kilianp07/evpolicy/infra/mqtt"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
