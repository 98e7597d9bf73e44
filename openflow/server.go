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

package openflow

import (
	"fmt"
	"net"
	"sync"

	"github.com/kube-ovs/tt-ovs/controllers"

	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/klog"
)

type Server struct {
	listener  net.Listener
	queueSize int
	factories []controllers.Factory

	mu    sync.Mutex
	conns map[*OFConn]struct{}
}

// NewServer listens for switch connections on port. queueSize bounds the
// number of outbound messages buffered per connection.
func NewServer(port, queueSize int) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}

	return newServer(listener, queueSize), nil
}

func newServer(listener net.Listener, queueSize int) *Server {
	return &Server{
		listener:  listener,
		queueSize: queueSize,
		conns:     make(map[*OFConn]struct{}),
	}
}

// RegisterControllers adds controllers created for every new connection.
// Messages are dispatched to controllers in registration order.
func (s *Server) RegisterControllers(factories ...controllers.Factory) {
	s.factories = append(s.factories, factories...)
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the server is closed
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Temporary() {
				klog.Errorf("error accepting TCP connections: %v", err)
				continue
			}

			return err
		}

		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer utilruntime.HandleCrash()

	ofconn := NewOFConn(conn, s.factories, s.queueSize)
	s.track(ofconn, true)
	defer s.track(ofconn, false)

	if err := ofconn.Serve(); err != nil {
		klog.Errorf("error initializing controllers: %v", err)
	}
}

func (s *Server) track(conn *OFConn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// Close stops accepting connections and closes every open one
func (s *Server) Close() error {
	err := s.listener.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}

	return err
}
