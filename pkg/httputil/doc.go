// Package httputil provides HTTP utilities for the status server.
//
// # Overview
//
// Handlers reply with JSON through WriteJSON and WriteSuccess; errors always
// use the ErrorResponse shape, echoing the request ID when one was assigned.
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.ContentTypeMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
//
// # Request Parsing
//
//	var values validation.Values
//	if !httputil.ParseJSONOrError(w, r, &values) {
//		return // Error response already written
//	}
//	name := httputil.PathParam(r, "name")
//
// # Related Packages
//
//   - pkg/plugins: Plugin status handlers
//   - pkg/dependencies: Dependency graph handlers
package httputil
