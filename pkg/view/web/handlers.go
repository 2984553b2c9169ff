// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/n0ot/rtcdash/pkg/view/table"
)

// rowsMessage is the body of /api/rows, and of every websocket message.
type rowsMessage struct {
	Version uint64          `json:"version"`
	Rows    []table.RowView `json:"rows"`
}

func (s *Server) rows(withFrames bool) rowsMessage {
	// Read the version first; if the table changes in between, the next message will catch up.
	msg := rowsMessage{Version: s.Table.Version(), Rows: s.Table.Rows()}
	if !withFrames {
		for i := range msg.Rows {
			msg.Rows[i].Video = ""
		}
	}
	return msg
}

func (s *Server) serveIndex(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	err := s.page.Execute(c.Writer, struct {
		Source string
		Rows   []table.RowView
	}{s.Source, s.Table.Rows()})
	if err != nil {
		s.Log.WithFields(logrus.Fields{
			"error": err,
		}).Error("Render page")
	}
}

func (s *Server) serveRows(c *gin.Context) {
	withFrames := true
	if raw, ok := c.GetQuery("frames"); ok {
		if b, err := strconv.ParseBool(raw); err == nil {
			withFrames = b
		}
	}
	c.JSON(http.StatusOK, s.rows(withFrames))
}

func (s *Server) serveFrame(c *gin.Context) {
	clientID := c.Param("client")
	row, ok := s.Table.Row(clientID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No such client"})
		return
	}
	if row.Frame == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No frame for client"})
		return
	}
	b, err := row.Frame.Bytes()
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", b)
}

func (s *Server) serveHealth(c *gin.Context) {
	s.statusLock.Lock()
	pass, at, failures := s.lastPass, s.lastPassAt, s.failures
	s.statusLock.Unlock()

	body := gin.H{
		"status": "ok",
		"rows":   s.Table.Len(),
		"source": s.Source,
	}
	status := http.StatusOK
	if !at.IsZero() {
		body["last_poll"] = at.UTC().Format(time.RFC3339)
	}
	if pass.Err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "failing"
		body["error"] = pass.Err.Error()
		body["consecutive_failures"] = failures
	}
	c.JSON(status, body)
}

func (s *Server) serveWebsocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written an error response.
		s.Log.WithFields(logrus.Fields{
			"error": err,
		}).Warn("WebSocket upgrade failed")
		return
	}

	s.Log.WithFields(logrus.Fields{
		"remote_addr": conn.RemoteAddr().String(),
	}).Debug("WebSocket client connected")
	s.pushRows(conn)
	s.Log.WithFields(logrus.Fields{
		"remote_addr": conn.RemoteAddr().String(),
	}).Debug("WebSocket client disconnected")
}

// pushRows writes the rows to conn now, and again after every change, until conn closes.
func (s *Server) pushRows(conn *websocket.Conn) {
	defer conn.Close()

	changes, unsubscribe := s.Table.Subscribe()
	defer unsubscribe()

	// Reads are only for noticing when the browser goes away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.Log.WithFields(logrus.Fields{
						"error": err,
					}).Debug("WebSocket read error")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	var sent uint64
	write := func() error {
		msg := s.rows(true)
		if msg.Version == sent && sent != 0 {
			return nil
		}
		sent = msg.Version
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(msg)
	}

	if err := write(); err != nil {
		return
	}
	for {
		select {
		case <-changes:
			if err := write(); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-s.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}
