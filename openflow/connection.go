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
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
	"github.com/davecgh/go-spew/spew"
	"github.com/kube-ovs/tt-ovs/controllers"
	"github.com/kube-ovs/tt-ovs/openflow/protocol"

	"k8s.io/klog"
)

// OFConn handles message processes coming from a specific connection
// There should be one instance of OFConn per connection from the switch
type OFConn struct {
	conn        net.Conn
	controllers []controllers.Controller
	datapathID  uint64

	sendBuffer chan ofp13.OFMessage
	done       chan struct{}
	closeOnce  sync.Once
}

var _ controllers.Switch = &OFConn{}

func NewOFConn(conn net.Conn, factories []controllers.Factory, queueSize int) *OFConn {
	of := &OFConn{
		conn:       conn,
		sendBuffer: make(chan ofp13.OFMessage, queueSize),
		done:       make(chan struct{}),
	}

	for _, factory := range factories {
		of.controllers = append(of.controllers, factory(of))
	}

	return of
}

func (of *OFConn) DatapathID() uint64 {
	return atomic.LoadUint64(&of.datapathID)
}

func (of *OFConn) Host() string {
	host, _, err := net.SplitHostPort(of.conn.RemoteAddr().String())
	if err != nil {
		return of.conn.RemoteAddr().String()
	}

	return host
}

// Send queues msg for the write loop. It only blocks while the queue is full
// and drops the message once the connection is closed.
func (of *OFConn) Send(msg ofp13.OFMessage) {
	select {
	case of.sendBuffer <- msg:
	case <-of.done:
		klog.V(4).Infof("connection to switch %d closed, dropping %T", of.DatapathID(), msg)
	}
}

func (of *OFConn) InitializeControllers() error {
	for _, controller := range of.controllers {
		err := controller.Initialize()
		if err != nil {
			return fmt.Errorf("error initializing controller %q, err: %v", controller.Name(), err)
		}
	}

	return nil
}

// Serve runs the connection until the switch goes away
func (of *OFConn) Serve() error {
	go of.WriteMessages()

	if err := of.InitializeControllers(); err != nil {
		of.Close()
		of.closeControllers()
		return err
	}

	of.ReadMessages()
	return nil
}

func (of *OFConn) WriteMessages() {
	for {
		select {
		case msg := <-of.sendBuffer:
			if _, err := of.conn.Write(msg.Serialize()); err != nil {
				klog.Errorf("failed to write to switch %d: %v", of.DatapathID(), err)
				of.Close()
				return
			}
		case <-of.done:
			return
		}
	}
}

func (of *OFConn) ReadMessages() {
	defer of.closeControllers()
	defer of.Close()
	klog.Infof("reading messages from %s", of.conn.RemoteAddr())

	reader := bufio.NewReader(of.conn)
	for {
		buf, err := readMessage(reader)
		if err != nil {
			if err != io.EOF {
				klog.Errorf("error reading connection from switch %d: %v", of.DatapathID(), err)
			}
			return
		}

		msg, err := protocol.ParseMessage(buf)
		if err != nil {
			klog.Errorf("dropping message from switch %d: %v", of.DatapathID(), err)
			continue
		}
		if klog.V(5) {
			klog.Infof("received message %s", spew.Sdump(msg))
		}

		// the features reply carries the datapath ID, record it before any
		// controller reacts to the switch being connected
		if features, ok := msg.(*ofp13.OfpSwitchFeatures); ok {
			atomic.StoreUint64(&of.datapathID, features.DatapathId)
			klog.Infof("switch %s connected with datapath ID %d", of.conn.RemoteAddr(), features.DatapathId)
		}

		of.DispatchToControllers(msg)
	}
}

// readMessage reads one length-framed OpenFlow message
func readMessage(reader *bufio.Reader) ([]byte, error) {
	// peek into the first 8 bytes (the size of OF header messages)
	// the header message contains the length of the entire message
	header, err := reader.Peek(protocol.HeaderLen)
	if err != nil {
		return nil, err
	}

	msgLen := protocol.MessageLength(header)
	if msgLen < protocol.HeaderLen {
		return nil, fmt.Errorf("invalid message length %d", msgLen)
	}

	buf := make([]byte, msgLen)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// DispatchToControllers sends the OFMessage to each controller in order
func (of *OFConn) DispatchToControllers(msg ofp13.OFMessage) {
	for _, controller := range of.controllers {
		err := controller.HandleMessage(msg)
		if err != nil {
			klog.Errorf("error handling message from %q controller, err: %v", controller.Name(), err)
			continue
		}
	}
}

// Close closes the connection, ending both the read and write loops.
// It is safe to call more than once and from any goroutine.
func (of *OFConn) Close() {
	of.closeOnce.Do(func() {
		close(of.done)
		of.conn.Close()
	})
}

// closeControllers lets every controller drop the state it kept for this
// switch. It runs on the read goroutine so it never races a handler.
func (of *OFConn) closeControllers() {
	for _, controller := range of.controllers {
		if closer, ok := controller.(controllers.Closer); ok {
			closer.Close()
		}
	}

	klog.Infof("connection to switch %d closed", of.DatapathID())
}
