// Package files provides file system operations for survey data and
// analysis outputs.
//
// Discovery finds survey workbooks and CSV exports in a directory and
// can pick the most recent one. Manager handles output-side operations
// (ensuring report directories, writing artifacts) relative to a base
// path. Fingerprint produces a stable digest of a survey file so that
// reports can record exactly which input they were generated from.
package files
