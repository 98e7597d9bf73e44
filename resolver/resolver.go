/*
Licensed to the Apache Software Foundation (ASF) under one
or more contributor license agreements.  See the NOTICE file
distributed with this work for additional information
regarding copyright ownership.  The ASF licenses this file
to you under the Apache License, Version 2.0 (the
"License"); you may not use this file except in compliance
with the License.  You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing,
software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
KIND, either express or implied.  See the License for the
specific language governing permissions and limitations
under the License.
*/

// Package resolver maps switch port names to OpenFlow port numbers by
// querying the OVSDB server running next to each switch.
package resolver

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"k8s.io/klog"
)

const (
	// DefaultOVSDBPort is the port ovsdb-server listens on for remote sessions
	DefaultOVSDBPort = 6640

	// DefaultRedialBackoff is how long lookups fail fast after a failed dial
	DefaultRedialBackoff = 5 * time.Second
)

var (
	// ErrResolve wraps every failed lookup
	ErrResolve      = errors.New("cannot resolve port")
	ErrPortNotFound = errors.New("port not found")

	errClosed = errors.New("resolver closed")
)

// Session is an open connection to the port directory of one switch
type Session interface {
	PortNumber(ctx context.Context, portName string) (uint32, error)
	Close() error
}

// DialFunc opens a directory session to addr. It must give up once ctx is done.
type DialFunc func(ctx context.Context, addr string) (Session, error)

// directoryConn is the directory session of one datapath. mu serializes
// lookups for that datapath only, so a slow OVSDB server never delays
// lookups on other switches.
type directoryConn struct {
	mu sync.Mutex

	addr           string
	session        Session
	lastResolvedOK bool

	dialErr     error
	redialAfter time.Time
	closed      bool
}

// Resolver keeps at most one directory session per datapath. The session
// is replaced when the switch shows up from a different address. After a
// failed dial, lookups fail with the dial error until RedialBackoff has
// passed, then the next lookup dials again.
type Resolver struct {
	port int
	dial DialFunc

	// RedialBackoff is how long lookups fail fast after a failed dial,
	// zero to dial on every lookup
	RedialBackoff time.Duration

	mu     sync.Mutex
	conns  map[uint64]*directoryConn
	closed bool
}

// NewResolver returns a Resolver talking OVSDB on port
func NewResolver(port int) *Resolver {
	return NewResolverWithDialer(port, DialOVSDB)
}

func NewResolverWithDialer(port int, dial DialFunc) *Resolver {
	return &Resolver{
		port:          port,
		dial:          dial,
		RedialBackoff: DefaultRedialBackoff,
		conns:         make(map[uint64]*directoryConn),
	}
}

// ResolvePort returns the OpenFlow port number of portName on the switch
// dpid that connected from host. Every failure is returned as an error
// wrapping ErrResolve. Dialing and querying both stop when ctx is done.
func (r *Resolver) ResolvePort(ctx context.Context, dpid uint64, host, portName string) (uint32, error) {
	conn := r.connection(dpid)

	conn.mu.Lock()
	defer conn.mu.Unlock()

	if err := r.open(ctx, dpid, conn, host); err != nil {
		return 0, errors.Wrapf(ErrResolve, "switch %d: %v", dpid, err)
	}

	port, err := conn.session.PortNumber(ctx, portName)
	if err != nil {
		conn.lastResolvedOK = false
		return 0, errors.Wrapf(ErrResolve, "port %q on switch %d: %v", portName, dpid, err)
	}

	conn.lastResolvedOK = true
	return port, nil
}

// connection returns the entry of dpid, creating it if needed
func (r *Resolver) connection(dpid uint64) *directoryConn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[dpid]
	if !ok {
		conn = &directoryConn{closed: r.closed}
		r.conns[dpid] = conn
	}

	return conn
}

// open makes sure conn holds a session to host. conn.mu must be held.
func (r *Resolver) open(ctx context.Context, dpid uint64, conn *directoryConn, host string) error {
	if conn.closed {
		return errClosed
	}

	addr := net.JoinHostPort(host, strconv.Itoa(r.port))
	if conn.session != nil {
		if conn.addr == addr {
			return nil
		}

		klog.Infof("switch %d moved from %s to %s, reopening OVSDB session", dpid, conn.addr, addr)
		conn.closeSession()
	}

	if conn.dialErr != nil && conn.addr == addr && time.Now().Before(conn.redialAfter) {
		return conn.dialErr
	}

	session, err := r.dial(ctx, addr)
	if err != nil {
		conn.addr = addr
		conn.dialErr = errors.Wrapf(err, "cannot open OVSDB session to %s", addr)
		conn.redialAfter = time.Now().Add(r.RedialBackoff)
		return conn.dialErr
	}

	conn.addr = addr
	conn.session = session
	conn.lastResolvedOK = false
	conn.dialErr = nil
	return nil
}

func (c *directoryConn) closeSession() {
	if err := c.session.Close(); err != nil {
		klog.Errorf("error closing OVSDB session to %s: %v", c.addr, err)
	}

	c.session = nil
	c.lastResolvedOK = false
}

// Close tears down every open session. Lookups after Close fail.
func (r *Resolver) Close() {
	r.mu.Lock()
	r.closed = true
	conns := make([]*directoryConn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		conn.mu.Lock()
		if conn.session != nil {
			conn.closeSession()
		}
		conn.closed = true
		conn.mu.Unlock()
	}
}
