package cli

import "fmt"

// Version is stamped at build time via -ldflags.
var Version = "dev"

func (a *App) runVersion() int {
	fmt.Fprintf(a.stdout, "mixseek %s\n", Version)
	return exitOK
}
