package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mnehpets/onerpc/jsonrpc"
)

type callOptions struct {
	url     string
	ws      bool
	id      string
	timeout time.Duration
}

func newCallCmd(a *app) *cobra.Command {
	var o callOptions
	cmd := &cobra.Command{
		Use:   "call METHOD [PARAMS]",
		Short: "Send one request to a running server and print the response",
		Long: `Send one request to a running server and print the response.

PARAMS is a JSON array or object. The request id is a random UUID unless
--id is given. The response is printed as indented JSON whatever codec was
used on the wire.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params jsonrpc.Value
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("params are not valid JSON: %s", args[1])
				}
				params = jsonrpc.RawJSON([]byte(args[1]))
			}
			id := o.id
			if id == "" {
				id = uuid.NewString()
			}
			req := &jsonrpc.Request{
				Version: jsonrpc.Version,
				Method:  args[0],
				Params:  params,
				ID:      jsonrpc.StringID(id),
			}

			codec, _ := jsonrpc.CodecByName(a.cfg.Codec)
			target := o.url
			if target == "" {
				target = defaultURL(a.cfg.ListenAddr, a.cfg.RPCPath, a.cfg.WSPath, o.ws)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()

			a.logger.Debug().Str("url", target).Str("method", req.Method).Str("id", id).Msg("calling")
			var resp *jsonrpc.Response
			var err error
			if o.ws {
				resp, err = callWebSocket(ctx, target, codec, req)
			} else {
				resp, err = callHTTP(ctx, target, codec, req)
			}
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.url, "url", "", "server URL (default derived from the listen address)")
	f.BoolVar(&o.ws, "ws", false, "call over WebSocket")
	f.StringVar(&o.id, "id", "", "request id (default random UUID)")
	f.DurationVar(&o.timeout, "timeout", 30*time.Second, "overall call timeout")
	return cmd
}

// defaultURL points at a server on this host listening on listenAddr.
func defaultURL(listenAddr, rpcPath, wsPath string, ws bool) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		host, port = listenAddr, ""
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	}
	if ws {
		return "ws://" + host + wsPath
	}
	return "http://" + host + rpcPath
}

func callHTTP(ctx context.Context, url string, codec jsonrpc.Codec, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	payload, err := codec.EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", codec.ContentType())
	hreq.Header.Set("Accept", codec.ContentType())

	hresp, err := http.DefaultClient.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer hresp.Body.Close()
	body, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, err
	}
	if hresp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s: %s", hresp.Status, strings.TrimSpace(string(body)))
	}
	return codec.DecodeResponse(body)
}

func callWebSocket(ctx context.Context, url string, codec jsonrpc.Codec, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	payload, err := codec.EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	defer conn.CloseNow()

	typ := websocket.MessageText
	if codec.Binary() {
		typ = websocket.MessageBinary
	}
	if err := conn.Write(ctx, typ, payload); err != nil {
		return nil, err
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			return nil, fmt.Errorf("server closed the connection: %s (%s)", ce.Reason, ce.Code)
		}
		return nil, err
	}
	conn.Close(websocket.StatusNormalClosure, "")
	return codec.DecodeResponse(data)
}

var indentedJSON = &jsonrpc.JSONCodec{Indent: "  "}

func printResponse(w io.Writer, resp *jsonrpc.Response) error {
	out, err := indentedJSON.EncodeResponse(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}
