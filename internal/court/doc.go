// Package court holds the records that flow through an audit: evidence
// gathered by detectives, opinions rendered by judges, and the verdict the
// chief justice derives from both. Sets are append-only while a stage runs
// and are read through frozen views afterwards.
package court
