// Package services holds application services that sit between the
// HTTP transport and the core analysis packages. The operations
// manager exposes its own service surface, so the only resident here
// is the health service feeding the monitoring endpoints.
package services
