// Package operations orchestrates complete survey analyses as staged
// pipelines.
//
// One operation takes a survey file from raw bytes to finished
// deliverables through a fixed sequence of phases:
//
//	load -> bind -> [depth | position] -> ranges -> charts -> reports
//
// The two analysis steps of the middle phase run concurrently and
// fail independently: a broken position record stream still produces
// a full burial depth report, and the operation finishes with status
// partial instead of failed.
//
// Core components:
//
// Manager: runs operations, retains their states for later
// inspection, and exposes snapshots, results and cancellation. One
// manager serves both the HTTP API and the CLI.
//
// Step: a single unit of pipeline work. Steps read the artifacts of
// earlier steps from the shared State and write their own back. A
// step that finds its inputs missing, or that the request disabled,
// skips instead of failing.
//
// State: the mutex-guarded record of one operation, holding per-step
// states and the accumulated artifacts. Snapshots of it are safe to
// serialize while steps keep running.
//
// Publisher: the event sink. Every step transition produces an Event;
// the server feeds them to its websocket hub, the CLI logs them.
//
// Example usage:
//
//	manager := operations.NewManager(logger,
//		operations.WithPublisher(hub),
//		operations.WithMetrics(metrics),
//	)
//
//	req := operations.NewRequest(cfg)
//	req.File = "survey.xlsx"
//	req.Cable = "EXC-01"
//
//	st, err := manager.Execute(ctx, req)
//	if err != nil {
//		return err
//	}
//	for _, path := range st.Reports() {
//		fmt.Println(path)
//	}
package operations
