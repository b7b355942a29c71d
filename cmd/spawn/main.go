// Command spawn runs programs with their combined output streamed to the
// terminal and recorded for later.
package main

import (
	"os"

	"github.com/jmgilman/spawn/internal/cmd"
)

func main() {
	os.Exit(cmd.Main())
}
