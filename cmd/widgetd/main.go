// Command widgetd serves and inspects the widget repository.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/widgetd/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
