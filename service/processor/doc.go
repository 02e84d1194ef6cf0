// Package processor runs one claimed task on the worker: it binds the control
// channel, streams the prefetched inputs, keeps the dispatch lease alive while
// the worker runs and reconciles the final task status.
package processor
