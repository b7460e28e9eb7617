package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// wsSubscriber is one websocket client. Writes from broadcasts and from
// control frame replies are serialized by mu.
type wsSubscriber struct {
	conn      net.Conn
	mu        sync.Mutex
	closeOnce sync.Once
}

func (s *wsSubscriber) Send(ctx context.Context, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return wsutil.WriteServerText(s.conn, []byte(msg))
}

func (s *wsSubscriber) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}

// control answers ping and close frames. r is already unmasked by the frame
// reader. The reply is written in one go so it cannot interleave with a
// broadcast frame.
func (s *wsSubscriber) control(hdr ws.Header, r io.Reader) error {
	var buf bytes.Buffer
	err := wsutil.ControlHandler{
		Src:                 r,
		Dst:                 &buf,
		State:               ws.StateServerSide,
		DisableSrcCiphering: true,
	}.Handle(hdr)

	if buf.Len() > 0 {
		s.mu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(DefaultSendTimeout))
		_, werr := s.conn.Write(buf.Bytes())
		s.mu.Unlock()
		if err == nil {
			err = werr
		}
	}
	return err
}

// ServeHTTP upgrades the request to a websocket and subscribes it until the
// client disconnects. Text sent by the client is logged and otherwise ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	sub := &wsSubscriber{conn: conn}
	h.Subscribe(sub)
	h.logger.Info("websocket client connected", "remote", r.RemoteAddr)

	defer func() {
		h.Unsubscribe(sub)
		_ = sub.Close()
		h.logger.Info("websocket client disconnected", "remote", r.RemoteAddr)
	}()

	rd := &wsutil.Reader{
		Source:    conn,
		State:     ws.StateServerSide,
		CheckUTF8: true,
		OnIntermediate: func(hdr ws.Header, r io.Reader) error {
			return sub.control(hdr, r)
		},
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			h.logReadErr(err)
			return
		}

		if hdr.OpCode.IsControl() {
			if err := sub.control(hdr, rd); err != nil {
				h.logReadErr(err)
				return
			}
			continue
		}

		if hdr.OpCode != ws.OpText {
			if err := rd.Discard(); err != nil {
				return
			}
			continue
		}

		data, err := io.ReadAll(rd)
		if err != nil {
			h.logReadErr(err)
			return
		}
		h.logger.Info("websocket client message", "remote", r.RemoteAddr, "text", string(data))
	}
}

func (h *Hub) logReadErr(err error) {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return
	}
	h.logger.Debug("websocket read failed", "err", err)
}
