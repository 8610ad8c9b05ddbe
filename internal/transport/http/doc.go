// Package http implements the HTTP handlers of the analysis service.
// It is a thin layer between chi routing and the operations manager:
// handlers parse and validate requests, delegate to the service
// interfaces, and translate errors into RFC 7807 problem documents.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Manager/Registry
//	                                              ↓
//	HTTP Response ← render.JSON ← Handler  ←──────┘
//
// # Error Handling
//
// Every error response is an RFC 7807 Problem Details document with a
// trace_id extension:
//
//	{
//	    "type": "/errors/validation",
//	    "title": "Validation Error",
//	    "status": 400,
//	    "detail": "file is required",
//	    "trace_id": "4bf92f3577b34da6a3ce929d0e0e4736"
//	}
//
// Operation errors map to HTTP statuses by their classification:
// validation → 400, not found → 404, invalid state and cancellation →
// 409, execution → 500.
package http
