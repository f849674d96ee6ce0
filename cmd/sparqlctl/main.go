// Command sparqlctl probes, queries and federates SPARQL endpoints using
// the sparqlops packages, and can serve endpoint health and metrics over
// HTTP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
