// Package websocket streams frames of a Hub to websocket clients.
// Each websocket message is a serialized msgs.Frame in both directions.
package websocket

import (
	"context"
	"net"
	"net/http"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/trackside/pkg/bridge"
	"github.com/robotalks/trackside/pkg/bridge/msgs"
	fx "github.com/robotalks/trackside/pkg/framework"
)

// DefaultPath is where the websocket is served.
const DefaultPath = "/frames"

// Server is a websocket server on a Hub.
type Server struct {
	Addr string
	Path string
	Hub  *bridge.Hub
}

// NewServer creates a Server.
func NewServer(addr string, hub *bridge.Hub) *Server {
	return &Server{Addr: addr, Path: DefaultPath, Hub: hub}
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "websocket"
}

// Handler serves a websocket connection.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(s.serveConn)
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(s.Path, s.Handler())
	srv := &http.Server{Handler: mux}
	glog.Infof("websocket listening on %s%s", ln.Addr(), s.Path)
	return fx.RunWithContextCloser(ctx, srv, func() error {
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}

func (s *Server) serveConn(conn *websocket.Conn) {
	defer conn.Close()
	sub := s.Hub.Subscribe()
	defer sub.Close()
	remote := conn.Request().RemoteAddr
	glog.V(1).Infof("websocket %s connected", remote)

	done := make(chan struct{})
	go func() {
		s.receiveLoop(conn, remote)
		close(done)
	}()
	for {
		select {
		case <-done:
			return
		case f, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := msgs.Encode(f)
			if err != nil {
				glog.Errorf("encode frame %d: %v", f.Seq, err)
				continue
			}
			if err := websocket.Message.Send(conn, payload); err != nil {
				glog.V(1).Infof("websocket %s: %v", remote, err)
				return
			}
		}
	}
}

// receiveLoop submits frames from the client until it's gone.
func (s *Server) receiveLoop(conn *websocket.Conn, remote string) {
	for {
		var payload []byte
		if err := websocket.Message.Receive(conn, &payload); err != nil {
			glog.V(1).Infof("websocket %s disconnected: %v", remote, err)
			return
		}
		f, err := msgs.Decode(payload)
		if err != nil {
			glog.Warningf("websocket %s: %v", remote, err)
			continue
		}
		f.Direction = msgs.Submit
		if err := s.Hub.Submit(f); err != nil {
			glog.Warningf("websocket %s: submit % X: %v", remote, f.Data, err)
		}
	}
}
