// k16brightd is a privileged D-Bus helper that sets CPU frequency governors
// and backlight brightness on behalf of unprivileged callers.
package main

import "github.com/iczelia/k16brightd/internal/cmd"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}
