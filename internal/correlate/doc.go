// Package correlate matches worker responses to outstanding requests by
// identifier, enforcing per-request deadlines and converting premature
// process exit into a terminal failure for every pending request.
package correlate
