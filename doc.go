// Package gridagent implements the execution agent of a compute grid.
//
// The agent pulls task messages from a queue, checks that each task is
// eligible to run, streams the task inputs to a local worker process and
// records the outcome:
//
//   - pollster     – the message pump
//   - precondition – eligibility check and dispatch claim
//   - resolver     – transitive dependency resolution
//   - prefetch     – input streaming through the codec
//   - agent        – local control channel serving worker pull requests
//   - processor    – worker exchange and status reconciliation
//
// Typical embedding:
//
//	srv, _ := gridagent.New(cfg, gridagent.WithWorker(client))
//	_ = srv.Submit(ctx, &task.TaskData{ID: "t1", SessionID: "s1"})
//	err := srv.Run(ctx)
package gridagent
