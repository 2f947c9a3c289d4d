// Package model defines the data structures shared by the checker, the
// pipeline, the report writers and the history database.
//
// This package contains the following main types:
//   - Finding: one l-value use of a deny-listed symbol
//   - FileResult: everything learned about one scanned file
//   - Report: the ordered FileResults of one run plus run metadata
//
// The models are serializable to JSON for report output and database
// storage, and import no other package of this module.
package model
