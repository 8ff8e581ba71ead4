// Command dnsdash serves a per-viewer DNS analytics dashboard over a DNS
// telemetry backend, and can draw the same dashboard in a terminal.
package main

func main() {
	Execute()
}
