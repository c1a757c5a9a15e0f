package channel

import (
	"encoding/json"

	"github.com/marmos91/syncbox/pkg/errdefs"
)

// Inbound event names (peer to server). Every inbound event carries an
// ack id and is acknowledged exactly once.
const (
	EventCreatedFile  = "created-file"
	EventModifiedFile = "modified-file"
	EventDeletedFile  = "deleted-file"
	EventRenamedFile  = "renamed-file"
)

// Outbound event names (server to peers).
const (
	EventFileCreated  = "file-created"
	EventFileModified = "file-modified"
	EventFileDeleted  = "file-deleted"
	EventFileRenamed  = "file-renamed"
)

// inboundFrame is a client-originated message: a named event with an ack
// correlation id chosen by the client.
type inboundFrame struct {
	ID    *uint64         `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outboundFrame is a server-originated message: either an ack (Ack set,
// Event empty) or a broadcast event (Event set, Ack nil).
type outboundFrame struct {
	Ack   *uint64 `json:"ack,omitempty"`
	Event string  `json:"event,omitempty"`
	Data  any     `json:"data"`
}

// AckEnvelope is the payload of an acknowledgment.
type AckEnvelope struct {
	Success bool      `json:"success"`
	Hash    string    `json:"hash,omitempty"`
	Error   *AckError `json:"error,omitempty"`
}

// AckError carries the taxonomy code and message of a failed event.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ackSuccess builds a success envelope, optionally with a content hash.
func ackSuccess(hash string) AckEnvelope {
	return AckEnvelope{Success: true, Hash: hash}
}

// ackFailure builds an error envelope from a classified error.
func ackFailure(err error) AckEnvelope {
	typed := errdefs.FromError(err)
	return AckEnvelope{
		Success: false,
		Error:   &AckError{Code: string(typed.Code), Message: typed.Message},
	}
}
