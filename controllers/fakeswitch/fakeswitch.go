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

// Package fakeswitch provides a controllers.Switch that records the messages
// sent to it instead of writing them to a connection.
package fakeswitch

import (
	"sync"

	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
	"github.com/kube-ovs/tt-ovs/controllers"
)

type Switch struct {
	ID   uint64
	Addr string

	mu     sync.Mutex
	sent   []ofp13.OFMessage
	closed bool
}

var _ controllers.Switch = &Switch{}

func New(id uint64, addr string) *Switch {
	return &Switch{ID: id, Addr: addr}
}

func (s *Switch) DatapathID() uint64 {
	return s.ID
}

func (s *Switch) Host() string {
	return s.Addr
}

func (s *Switch) Send(msg ofp13.OFMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, msg)
}

// Sent returns a copy of every message sent so far, in order
func (s *Switch) Sent() []ofp13.OFMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]ofp13.OFMessage(nil), s.sent...)
}

func (s *Switch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = nil
}

func (s *Switch) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
}

// Closed reports whether a controller dropped the connection
func (s *Switch) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
