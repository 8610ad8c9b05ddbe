// Package app provides application initialization and lifecycle management
// for the cable burial analysis server. It wires configuration, logging,
// observability, the websocket hub, the cable registry and the operations
// manager together, mounts the HTTP API and handles graceful shutdown.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from environment and files
//	2. Initialize logging and OpenTelemetry
//	3. Create the websocket hub, operations manager and cable registry
//	4. Set up the HTTP router and middleware
//	5. Configure the HTTP server
//
// # Usage
//
// The main entry point is typically:
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM. Shutdown drains in-flight requests,
// disconnects websocket clients, flushes telemetry and closes the log
// file before returning.
//
// # Error Handling
//
// All initialization errors are returned to the caller. The package never
// calls os.Exit() directly, leaving exit codes to the main function.
package app
