package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello           = "HELLO"
	TypeWelcome         = "WELCOME"
	TypeTrace           = "TRACE"
	TypeTraceResult     = "TRACE_RESULT"
	TypeAssetPut        = "ASSET_PUT"
	TypeAssetAck        = "ASSET_ACK"
	TypeAssetGet        = "ASSET_GET"
	TypeAssetData       = "ASSET_DATA"
	TypeAssetList       = "ASSET_LIST"
	TypeAssetListResult = "ASSET_LIST_RESULT"
	TypeError           = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
