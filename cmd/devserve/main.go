// Package main provides the entry point for the devserve CLI.
//
// Devserve launches and supervises the CRIC-V development server: it
// provisions the data workspace, resolves the project's virtual-environment
// interpreter, starts the server process, and restarts it on source changes
// or crashes.
//
// Usage:
//
//	devserve up
//	devserve up api worker
//	devserve run manage.py migrate
//
// See --help for all available options.
package main

// main is the entry point for devserve.
func main() {
	Execute()
}
