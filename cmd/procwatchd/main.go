// Command procwatchd is a process supervisor daemon: it reads a
// declarative list of child programs, keeps each alive under a bounded
// restart budget, and shuts the fleet down cleanly on operator signal or
// unhandled host-level fault.
package main

func main() {
	Execute()
}
