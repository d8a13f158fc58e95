// Package errors defines the error taxonomy for the worker driver.
//
// Only correlator-level outcomes (timeout, process exit, duplicate
// identifier) and spawn failures are surfaced to callers; transport and
// classification anomalies are absorbed where forward progress is possible.
package errors
