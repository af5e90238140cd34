// Package basestation owns the ingestion runtime.
//
// Ownership boundary:
// - service lifecycle: bootstrap -> serve -> shutdown
// - the consumer tick that drains at most one frame per Poll
// - the registry of observed identities, selections and notices
//
// Lifecycle order:
// - bootstrap opens the data log and builds the pipeline
// - serve starts the reader, then ticks the consumer until cancelled
// - shutdown cancels the pipe, joins the reader, closes the data log
//
// A reader that cannot open its transport leaves the service running with
// an idle pipeline; collaborators still see an empty, healthy station.
package basestation
