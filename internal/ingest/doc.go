// Package ingest owns the hand-off between the transport and the consumer.
//
// Ownership boundary:
// - Pipe: the queue and cancellation signal shared by reader and consumer
// - Queue: bounded FIFO, one mutex held only across push/pop
// - Reader: the only goroutine that performs blocking transport reads
//
// Shutdown is Pipe.Close followed by Reader.Wait. A frame read already in
// progress is completed before the reader observes cancellation.
package ingest
