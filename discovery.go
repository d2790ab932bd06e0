// Optional discovery sub-protocol: a connectionless probe/response pair so
// clients on the same network can locate the server before opening the
// stream connection. A client broadcasts the probe line on the game port
// over UDP; the server answers with its TCP port.

package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const discoveryProbe = "BLENDIN?"

type discovery struct {
	cfg   *Config
	conn  net.PacketConn
	reply []byte
}

func newDiscovery(cfg *Config, tcpPort int) (*discovery, error) {
	conn, err := net.ListenPacket("udp", net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)))
	if err != nil {
		return nil, err
	}

	return &discovery{
		cfg:   cfg,
		conn:  conn,
		reply: []byte(fmt.Sprintf("BLENDIN %d\n", tcpPort)),
	}, nil
}

func (d *discovery) respondLoop() {
	buf := make([]byte, 64)

	for {
		n, addr, err := d.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if strings.TrimSpace(string(buf[:n])) != discoveryProbe {
			continue
		}

		_, _ = d.conn.WriteTo(d.reply, addr)
		logf(d.cfg, "SERVE: Discovery probe answered for %s", addr)
	}
}

func (d *discovery) close() {
	_ = d.conn.Close()
}
