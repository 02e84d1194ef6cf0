// Package progress keeps aggregated message counters for a running agent.
// Components that receive the context update them through a Delta without a
// global registry.
package progress
