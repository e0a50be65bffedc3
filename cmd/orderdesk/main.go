// Command orderdesk is the command-line client for the orders and users API.
package main

import (
	"fmt"
	"os"

	"github.com/99minutos/orderdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
