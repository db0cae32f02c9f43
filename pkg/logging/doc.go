// Package logging provides subsystem-tagged structured logging for diracci.
//
// It is a thin layer over log/slog: every entry carries a "subsystem"
// attribute naming the component that produced it (Matrix, Topology, Engine,
// Pipeline, ...), and errors are attached as an "error" attribute.
//
// Initialise once from the command layer:
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//
// then log with a printf-style message:
//
//	logging.Info("Topology", "Starting %s", svc.Name)
//	logging.Error("Engine", err, "Failed to remove %s", name)
package logging
