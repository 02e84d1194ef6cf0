// Package model groups the records shared by the agent components: task and
// session state in the task and session sub-packages, wire records in protocol.
package model
