package main

import (
	"errors"
	"fmt"
	"os"
)

// errReported marks a failure the command already printed.
var errReported = errors.New("reported")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, styles.Error.Render("Error: ")+err.Error())
		}
		os.Exit(1)
	}
}
