// Package protocol defines the records exchanged between the agent, the
// worker process and the local control channel. Records are framed as
// newline delimited JSON; byte payloads travel base64 encoded.
package protocol

import (
	"time"

	"github.com/viant/gridagent/model/task"
)

// KeyNotFound is the init error string sent when a requested key does not exist.
const KeyNotFound = "Key not found"

// DataChunk carries either a payload piece or the completion marker.
type DataChunk struct {
	Data         []byte `json:"data,omitempty"`
	DataComplete bool   `json:"dataComplete,omitempty"`
}

// DataInit opens a reply for Key with either the first chunk or an error.
type DataInit struct {
	Key   string     `json:"key"`
	Data  *DataChunk `json:"data,omitempty"`
	Error string     `json:"error,omitempty"`
}

// DataReply is one record of a streamed blob. Exactly one of Init or Data is set.
type DataReply struct {
	ReplyID string     `json:"replyId"`
	Init    *DataInit  `json:"init,omitempty"`
	Data    *DataChunk `json:"data,omitempty"`
}

// IsInit returns true for the opening record
func (r *DataReply) IsInit() bool { return r != nil && r.Init != nil }

// IsError returns true for a self terminating error reply
func (r *DataReply) IsError() bool { return r.IsInit() && r.Init.Error != "" }

// IsComplete returns true for the terminating record
func (r *DataReply) IsComplete() bool { return r != nil && r.Data != nil && r.Data.DataComplete }

// Payload returns the bytes carried by the record, if any
func (r *DataReply) Payload() []byte {
	switch {
	case r == nil:
		return nil
	case r.Init != nil && r.Init.Data != nil:
		return r.Init.Data.Data
	case r.Data != nil:
		return r.Data.Data
	}
	return nil
}

// TaskHeader opens the compute stream sent to the worker.
type TaskHeader struct {
	SessionID          string        `json:"sessionId"`
	TaskID             string        `json:"taskId"`
	DispatchID         string        `json:"dispatchId"`
	PayloadKey         string        `json:"payloadKey,omitempty"`
	DataDependencies   []string      `json:"dataDependencies,omitempty"`
	ExpectedOutputKeys []string      `json:"expectedOutputKeys,omitempty"`
	Options            *task.Options `json:"options,omitempty"`
	AgentAddress       string        `json:"agentAddress,omitempty"`
	Deadline           *time.Time    `json:"deadline,omitempty"`
}

// ComputeRequest is one record of the agent -> worker compute stream:
// a header, then input data replies, then LastData.
type ComputeRequest struct {
	Header   *TaskHeader `json:"header,omitempty"`
	Data     *DataReply  `json:"data,omitempty"`
	LastData bool        `json:"lastData,omitempty"`
}

// ResourceRequest asks the agent for a named resource during execution.
type ResourceRequest struct {
	Key string `json:"key"`
}

// ResultChunk uploads a piece of an output key produced by the worker.
type ResultChunk struct {
	Key      string `json:"key"`
	Data     []byte `json:"data,omitempty"`
	Complete bool   `json:"complete,omitempty"`
}

// ResultAck acknowledges a completed result upload.
type ResultAck struct {
	Key   string `json:"key"`
	Error string `json:"error,omitempty"`
}

// Output is the final worker verdict for an execution attempt.
type Output struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ProcessRequest is sent by the agent: compute records on the worker channel,
// resource or result replies on the control channel.
type ProcessRequest struct {
	Compute  *ComputeRequest `json:"compute,omitempty"`
	Resource *DataReply      `json:"resource,omitempty"`
	Result   *ResultAck      `json:"result,omitempty"`
	// RequestID echoes the ProcessReply the record answers.
	RequestID string `json:"requestId,omitempty"`
}

// ProcessReply is sent by the worker: pull requests and result uploads on the
// control channel, the final Output on the worker channel.
type ProcessReply struct {
	RequestID string           `json:"requestId"`
	Resource  *ResourceRequest `json:"resource,omitempty"`
	Result    *ResultChunk     `json:"result,omitempty"`
	Output    *Output          `json:"output,omitempty"`
}
