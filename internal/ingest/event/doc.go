// Package event carries ingestion job status changes to interested parties.
//
// A Broadcaster is shared by the job manager, which publishes, and the HTTP
// layer, which adapts a Sink to a server-sent event stream.
package event
