package main

import (
	"os"

	"github.com/operator-framework/sqlguard/pkg/metrics"
)

func init() {
	metrics.Register()
}

func main() {
	cmd := newRootCmd(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
