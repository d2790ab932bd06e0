/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

const maxFrameBytes = 64 * 1024

// tcpTransport adapts a raw stream socket to the transport interface. The
// write mutex keeps frames from interleaving when broadcasts overlap.
type tcpTransport struct {
	conn net.Conn
	mu   sync.Mutex
}

func (t *tcpTransport) WriteFrame(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(timeout))
	_, err := t.conn.Write(data)
	return err
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// GameServer accepts stream connections on the game port and runs one
// reader goroutine per connection.
type GameServer struct {
	cfg      *Config
	session  *Session
	listener net.Listener
}

func newGameServer(cfg *Config, session *Session) (*GameServer, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)))
	if err != nil {
		return nil, err
	}

	return &GameServer{
		cfg:      cfg,
		session:  session,
		listener: listener,
	}, nil
}

func (g *GameServer) addr() *net.TCPAddr {
	return g.listener.Addr().(*net.TCPAddr)
}

func (g *GameServer) acceptLoop() {
	for {
		conn, err := g.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logf(g.cfg, "ERROR: accept: %v", err)
			continue
		}
		go g.handleConn(conn)
	}
}

// handleConn owns one connection's inbound half: accumulate bytes, extract
// complete newline-delimited frames, dispatch each into the session.
// Partial frames stay buffered until the next read; undecodable frames are
// dropped and the connection stays open.
func (g *GameServer) handleConn(conn net.Conn) {
	logf(g.cfg, "SERVE: Connection from %s", conn.RemoteAddr())

	t := &tcpTransport{conn: conn}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024), maxFrameBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		msg, err := decodeFrame(line)
		if err != nil {
			logf(g.cfg, "SERVE: Dropped frame from %s: %v", conn.RemoteAddr(), err)
			continue
		}

		g.session.dispatch(t, msg)
	}

	g.session.disconnect(t)
}

// Serve runs the game listener, and optionally the discovery responder and
// the status endpoints, until the context is done.
func Serve(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logf(cfg, "START: blendin v%s", releaseVersion)

	session := newSession(cfg)

	game, err := newGameServer(cfg, session)
	if err != nil {
		return err
	}
	logf(cfg, "SERVE: Game listening on %s", game.listener.Addr())

	go game.acceptLoop()

	var disc *discovery
	if cfg.discovery {
		disc, err = newDiscovery(cfg, game.addr().Port)
		if err != nil {
			_ = game.listener.Close()
			return err
		}
		logf(cfg, "SERVE: Discovery responder on %s", disc.conn.LocalAddr())

		go disc.respondLoop()
	}

	var srv *http.Server
	if cfg.httpPort > 0 {
		srv = newStatusServer(cfg, session, game)

		go func() {
			var err error
			if cfg.tlsKey != "" && cfg.tlsCert != "" {
				logf(cfg, "SERVE: Status endpoints on %s://%s/", cfg.scheme(), srv.Addr)
				err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
			} else {
				logf(cfg, "SERVE: Status endpoints on %s://%s/", cfg.scheme(), srv.Addr)
				err = srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Printf("%s | ERROR: %v\n", time.Now().Format(logDate), err)
			}
		}()
	}

	<-ctx.Done()

	_ = game.listener.Close()
	if disc != nil {
		disc.close()
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	return nil
}
