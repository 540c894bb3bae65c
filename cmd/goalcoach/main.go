// Command goalcoach tracks goals, journal entries and saved places locally
// and mirrors them to a remote backend.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	e := newEnv()
	err := newRootCmd(e).ExecuteContext(context.Background())
	if cerr := e.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
