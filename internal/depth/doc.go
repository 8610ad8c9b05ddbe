// Package depth implements burial-depth analysis for submarine cable
// surveys: anomaly detection, target-compliance assessment and problem
// section summarization.
//
// # Core Components
//
// Analysis combines three passes over the bound depth column:
//
//  1. Anomaly detection: physical bound checks, point-to-point spike
//     detection, and centered rolling z-score outlier detection
//  2. Compliance: per-record target comparison, burial deficit and
//     section run-length labelling
//  3. Sections: contiguous non-compliant runs summarized with position
//     extents, depth aggregates, severity and a recommendation
//
// # Architecture
//
//   - types.go: parameters, result types and output column names
//   - analyzer.go: the Analyzer and its public operations
//   - anomalies.go: detection pass including rolling statistics
//   - compliance.go: compliance columns and section summarization
//   - standardized.go: reduction to the shared result envelope
//
// An Analyzer holds immutable parameters and a logger only; every call
// takes the dataset and binding explicitly and returns a fresh result,
// so one value can serve concurrent analyses.
//
// # Usage Example
//
//	analyzer, err := depth.NewAnalyzer(depth.DefaultParams(), logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := analyzer.Analyze(ctx, ds, binding)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range result.Sections {
//	    fmt.Printf("KP %.3f-%.3f: %s\n", s.StartPos, s.EndPos, s.Severity)
//	}
package depth
