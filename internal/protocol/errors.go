package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Asset store.
	ErrAssetNotFound = "E_ASSET_NOT_FOUND"
	ErrAssetInvalid  = "E_ASSET_INVALID"
	ErrAssetName     = "E_ASSET_NAME"

	// Trace requests.
	ErrBadRay = "E_BAD_RAY"

	ErrBadRequest = "E_BAD_REQUEST"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrAssetNotFound:   {},
	ErrAssetInvalid:    {},
	ErrAssetName:       {},
	ErrBadRay:          {},
	ErrBadRequest:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
