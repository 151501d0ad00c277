package ws

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"
	"github.com/gorilla/websocket"

	"voxelforge.dev/internal/bcf"
	"voxelforge.dev/internal/csm"
	"voxelforge.dev/internal/cube"
	"voxelforge.dev/internal/protocol"
	"voxelforge.dev/internal/store"
)

type Server struct {
	store *store.Store
	log   *log.Logger

	upgrader websocket.Upgrader

	sessions atomic.Uint64

	// Decompressed BCF payloads keyed by digest, so repeated TRACE
	// requests against the same asset skip the store round trip.
	mu    sync.RWMutex
	cache map[string][]byte
}

func NewServer(st *store.Store, logger *log.Logger) *Server {
	s := &Server{
		store: st,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		cache: make(map[string][]byte),
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID := s.handshake(conn)
		if sessionID == "" {
			return
		}

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.sendError(conn, "", "", protocol.ErrProtoBadRequest, "malformed JSON")
				continue
			}
			if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
				s.sendError(conn, base.Type, "", protocol.ErrProtoVersion, "unsupported protocol_version")
				continue
			}

			switch base.Type {
			case protocol.TypeTrace:
				s.handleTrace(conn, msg)
			case protocol.TypeAssetPut:
				s.handleAssetPut(conn, msg)
			case protocol.TypeAssetGet:
				s.handleAssetGet(conn, msg)
			case protocol.TypeAssetList:
				s.handleAssetList(conn)
			default:
				s.sendError(conn, base.Type, "", protocol.ErrProtoBadRequest, "unexpected message type")
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return ""
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return ""
	}

	count := 0
	if assets, err := s.store.List(); err == nil {
		count = len(assets)
	}

	lim := cube.DefaultTraceLimits()
	sessionID := fmt.Sprintf("S%d", s.sessions.Add(1))
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		Limits:          protocol.ServerLimits{MaxDepth: lim.MaxDepth, MaxSteps: lim.MaxSteps},
		AssetCount:      count,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	return sessionID
}

func (s *Server) handleTrace(conn *websocket.Conn, msg []byte) {
	var req protocol.TraceMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		s.sendError(conn, protocol.TypeTrace, "", protocol.ErrProtoBadRequest, "malformed TRACE")
		return
	}
	if req.Asset == "" {
		s.sendError(conn, protocol.TypeTrace, req.ID, protocol.ErrBadRequest, "asset required")
		return
	}
	dir := r3.Vector{X: req.Dir[0], Y: req.Dir[1], Z: req.Dir[2]}
	if dir == (r3.Vector{}) {
		s.sendError(conn, protocol.TypeTrace, req.ID, protocol.ErrBadRay, "zero direction")
		return
	}

	data, err := s.payload(req.Asset)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(conn, protocol.TypeTrace, req.ID, protocol.ErrAssetNotFound, err.Error())
			return
		}
		s.log.Printf("trace: load %q: %v", req.Asset, err)
		s.sendError(conn, protocol.TypeTrace, req.ID, protocol.ErrInternal, "asset unavailable")
		return
	}

	lim := cube.DefaultTraceLimits()
	if req.MaxDepth > 0 && req.MaxDepth < lim.MaxDepth {
		lim.MaxDepth = req.MaxDepth
	}
	if req.MaxSteps > 0 && req.MaxSteps < lim.MaxSteps {
		lim.MaxSteps = req.MaxSteps
	}

	origin := r3.Vector{X: req.Origin[0], Y: req.Origin[1], Z: req.Origin[2]}
	hit, ok := bcf.RaycastLimits(data, origin, dir, lim)

	resp := protocol.TraceResultMsg{
		Type: protocol.TypeTraceResult,
		ID:   req.ID,
		Hit:  ok,
	}
	if ok {
		world := hit.World()
		resp.Value = hit.Value
		resp.Depth = hit.Coord.Depth
		resp.Cell = [3]int{hit.Coord.Pos.X, hit.Coord.Pos.Y, hit.Coord.Pos.Z}
		resp.Normal = hit.Normal.String()
		resp.Pos = [3]float64{hit.Pos.X, hit.Pos.Y, hit.Pos.Z}
		resp.World = [3]float64{world.X, world.Y, world.Z}
	}
	_ = writeJSON(conn, resp)
}

func (s *Server) handleAssetPut(conn *websocket.Conn, msg []byte) {
	var req protocol.AssetPutMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		s.sendError(conn, protocol.TypeAssetPut, "", protocol.ErrProtoBadRequest, "malformed ASSET_PUT")
		return
	}

	var data []byte
	switch req.Format {
	case "bcf":
		b, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			s.sendError(conn, protocol.TypeAssetPut, "", protocol.ErrAssetInvalid, "data is not valid base64")
			return
		}
		data = b
	case "csm":
		root, err := csm.Parse(req.Data)
		if err != nil {
			s.sendError(conn, protocol.TypeAssetPut, "", protocol.ErrAssetInvalid, err.Error())
			return
		}
		data = bcf.Marshal(root)
	default:
		s.sendError(conn, protocol.TypeAssetPut, "", protocol.ErrBadRequest, "format must be bcf or csm")
		return
	}

	info, err := s.store.Put(req.Name, data)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrBadName):
			s.sendError(conn, protocol.TypeAssetPut, "", protocol.ErrAssetName, err.Error())
		case isFormatError(err):
			s.sendError(conn, protocol.TypeAssetPut, "", protocol.ErrAssetInvalid, err.Error())
		default:
			s.log.Printf("asset put %q: %v", req.Name, err)
			s.sendError(conn, protocol.TypeAssetPut, "", protocol.ErrInternal, "store failure")
		}
		return
	}

	s.mu.Lock()
	s.cache[info.SHA256] = data
	s.mu.Unlock()

	_ = writeJSON(conn, protocol.AssetAckMsg{
		Type: protocol.TypeAssetAck,
		Name: info.Name,
		Info: assetRef(info),
	})
}

func (s *Server) handleAssetGet(conn *websocket.Conn, msg []byte) {
	var req protocol.AssetGetMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		s.sendError(conn, protocol.TypeAssetGet, "", protocol.ErrProtoBadRequest, "malformed ASSET_GET")
		return
	}

	info, err := s.store.Info(req.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(conn, protocol.TypeAssetGet, "", protocol.ErrAssetNotFound, err.Error())
			return
		}
		s.log.Printf("asset get %q: %v", req.Name, err)
		s.sendError(conn, protocol.TypeAssetGet, "", protocol.ErrInternal, "store failure")
		return
	}
	data, err := s.payload(req.Name)
	if err != nil {
		s.log.Printf("asset get %q: %v", req.Name, err)
		s.sendError(conn, protocol.TypeAssetGet, "", protocol.ErrInternal, "asset unavailable")
		return
	}

	_ = writeJSON(conn, protocol.AssetDataMsg{
		Type: protocol.TypeAssetData,
		Name: info.Name,
		Data: base64.StdEncoding.EncodeToString(data),
		Info: assetRef(info),
	})
}

func (s *Server) handleAssetList(conn *websocket.Conn) {
	assets, err := s.store.List()
	if err != nil {
		s.log.Printf("asset list: %v", err)
		s.sendError(conn, protocol.TypeAssetList, "", protocol.ErrInternal, "store failure")
		return
	}
	refs := make([]protocol.AssetRef, 0, len(assets))
	for _, info := range assets {
		refs = append(refs, assetRef(info))
	}
	_ = writeJSON(conn, protocol.AssetListResultMsg{
		Type:   protocol.TypeAssetListResult,
		Assets: refs,
	})
}

// payload returns the raw BCF bytes for name, through the digest cache.
func (s *Server) payload(name string) ([]byte, error) {
	info, err := s.store.Info(name)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.cache[info.SHA256]
	s.mu.RUnlock()
	if ok {
		return data, nil
	}

	data, err = s.store.Get(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[info.SHA256] = data
	s.mu.Unlock()
	return data, nil
}

func (s *Server) sendError(conn *websocket.Conn, forType, id, code, message string) {
	_ = writeJSON(conn, protocol.ErrorMsg{
		Type:    protocol.TypeError,
		ID:      id,
		For:     forType,
		Code:    code,
		Message: message,
	})
}

func assetRef(info store.AssetInfo) protocol.AssetRef {
	return protocol.AssetRef{
		Name:           info.Name,
		SHA256:         info.SHA256,
		RawSize:        info.RawSize,
		CompressedSize: info.CompressedSize,
		MaxDepth:       info.MaxDepth,
		CreatedAt:      info.CreatedAt,
	}
}

func isFormatError(err error) bool {
	return errors.Is(err, bcf.ErrInvalidMagic) ||
		errors.Is(err, bcf.ErrUnsupportedVersion) ||
		errors.Is(err, bcf.ErrTruncated) ||
		errors.Is(err, bcf.ErrInvalidOffset) ||
		errors.Is(err, bcf.ErrInvalidType) ||
		errors.Is(err, bcf.ErrInvalidPointerSize) ||
		errors.Is(err, bcf.ErrRecursionLimit)
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
