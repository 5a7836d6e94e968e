// Command vitalguard trains, evaluates and serves the vital-signs anomaly detector.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
