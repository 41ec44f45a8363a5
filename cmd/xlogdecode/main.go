// Command xlogdecode decodes xlog binary log files into plain text.
package main

import (
	"fmt"
	"os"

	"github.com/eunmann/xlog-decoder/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
