package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/mnehpets/onerpc/jsonrpc"
)

// WebSocketHandler upgrades the connection and serves one request per
// message. Text messages use the JSON codec and binary messages use CBOR; each
// response is written as a message of the same type.
//
// Requests on one connection are served in order. An undecodable message
// closes the connection with StatusInvalidFramePayloadData and a fault closes
// it with StatusInternalError.
func (s *Server) WebSocketHandler(opts *websocket.AcceptOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			// Accept has already written the HTTP error.
			s.logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.CloseNow()
		conn.SetReadLimit(s.maxBodyBytes)

		ctx := s.logger.WithContext(r.Context())
		if err := s.serveConn(ctx, conn); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("websocket connection closed")
		}
	})
}

func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return err
		}

		codec := jsonrpc.Codec(jsonrpc.JSON)
		if typ == websocket.MessageBinary {
			codec = jsonrpc.CBOR
		}

		out, err := s.HandleWith(ctx, codec, data)
		if err != nil {
			var decodeErr *jsonrpc.DecodeError
			if errors.As(err, &decodeErr) {
				conn.Close(websocket.StatusInvalidFramePayloadData, "malformed request")
			} else {
				conn.Close(websocket.StatusInternalError, "internal error")
			}
			return err
		}
		if err := conn.Write(ctx, typ, out); err != nil {
			return err
		}
	}
}
