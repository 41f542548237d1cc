// Command scoreboard keeps score of tennis matches.
package main

import (
	"fmt"
	"os"

	"github.com/jaminalder/tennis-scoreboard/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
