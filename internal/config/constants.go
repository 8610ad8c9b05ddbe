package config

import "time"

// Application constants - all hardcoded values for the cable burial analysis system
const (
	// Application Info
	AppName    = "Cable Burial Analysis Tool"
	AppVersion = "2.0.0"

	// Default Directories (relative to the configured base dir)
	DefaultDataDir     = "data"
	DefaultOutputDir   = "output"
	DefaultLogsDir     = "logs"
	DefaultProfilesDir = "configurations"

	// Output File Names
	DepthChartFile      = "cable_burial_analysis.html"
	PositionChartFile   = "position_quality_analysis.html"
	ProblemSectionsFile = "problem_sections_report.xlsx"
	AnomalyReportFile   = "anomaly_report.xlsx"
	PositionReportFile  = "position_quality_report.xlsx"
	SummaryWorkbookFile = "analysis_summary.xlsx"
	AugmentedDataFile   = "analysis_data.csv"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	SnapshotTimeout     = 45 * time.Second // headless browser render budget
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Operation Timeouts
	DefaultOperationTimeout = 30 * time.Minute

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Log Settings
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	MaxLogFileSize    = 100 * 1024 * 1024 // 100MB
	MaxLogFileAge     = 30                // days
	MaxLogFileBackups = 10

	// API Endpoints (internal)
	APIBasePath       = "/api"
	AnalysesEndpoint  = "/api/analyses"
	CablesEndpoint    = "/api/cables"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)
