// Command bluescan manages artworks on a bluescan backend and renders their
// outlines over scene-described host surfaces.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"blue-scan/internal/cli"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
