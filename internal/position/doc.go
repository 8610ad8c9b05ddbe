// Package position implements positioning quality analysis for cable
// survey data: KP continuity checks, cross-track deviation scoring,
// coordinate consistency and composite per-record quality grading,
// plus detection of sustained poor-quality segments.
//
// Analysis requires a bound KP column; cross-track and coordinate
// checks switch on automatically when their columns are bound. Like
// the depth analyzer, an Analyzer carries immutable parameters only
// and returns a fresh result per call.
package position
