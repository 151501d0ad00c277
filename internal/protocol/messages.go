package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	SessionID       string       `json:"session_id"`
	Limits          ServerLimits `json:"limits"`
	AssetCount      int          `json:"asset_count"`
}

type ServerLimits struct {
	MaxDepth int `json:"max_depth"`
	MaxSteps int `json:"max_steps"`
}

// TRACE (client -> server): cast one ray against a stored asset.
type TraceMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version,omitempty"`
	ID              string     `json:"id,omitempty"`
	Asset           string     `json:"asset"`
	Origin          [3]float64 `json:"origin"`
	Dir             [3]float64 `json:"dir"`
	MaxDepth        int        `json:"max_depth,omitempty"`
	MaxSteps        int        `json:"max_steps,omitempty"`
}

// TRACE_RESULT (server -> client)
type TraceResultMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version,omitempty"`
	ID              string     `json:"id,omitempty"`
	Hit             bool       `json:"hit"`
	Value           uint8      `json:"value,omitempty"`
	Depth           int        `json:"depth,omitempty"`
	Cell            [3]int     `json:"cell,omitempty"`
	Normal          string     `json:"normal,omitempty"`
	Pos             [3]float64 `json:"pos,omitempty"`
	World           [3]float64 `json:"world,omitempty"`
}

// ASSET_PUT (client -> server): data is base64 for "bcf",
// plain source text for "csm".
type AssetPutMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Name            string `json:"name"`
	Format          string `json:"format"`
	Data            string `json:"data"`
}

// ASSET_ACK (server -> client)
type AssetAckMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version,omitempty"`
	Name            string   `json:"name"`
	Info            AssetRef `json:"info"`
}

// ASSET_GET (client -> server)
type AssetGetMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Name            string `json:"name"`
}

// ASSET_DATA (server -> client): data is base64 BCF bytes.
type AssetDataMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version,omitempty"`
	Name            string   `json:"name"`
	Data            string   `json:"data"`
	Info            AssetRef `json:"info"`
}

// ASSET_LIST (client -> server)
type AssetListMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

// ASSET_LIST_RESULT (server -> client)
type AssetListResultMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version,omitempty"`
	Assets          []AssetRef `json:"assets"`
}

type AssetRef struct {
	Name           string `json:"name"`
	SHA256         string `json:"sha256"`
	RawSize        int64  `json:"raw_size"`
	CompressedSize int64  `json:"compressed_size"`
	MaxDepth       int    `json:"max_depth"`
	CreatedAt      string `json:"created_at"` // RFC3339Nano
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ID              string `json:"id,omitempty"`
	For             string `json:"for,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
