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

package echo

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
	"github.com/kube-ovs/tt-ovs/controllers"
	"github.com/kube-ovs/tt-ovs/openflow/protocol"

	"k8s.io/klog"
)

const (
	DefaultInterval = 15 * time.Second

	// missedIntervals is how many echo intervals a switch may stay silent
	// before its connection is dropped
	missedIntervals = 3
)

// echoController implements the controllers.Controller interface
// echoController answers echo requests and sends its own every interval.
// A switch that sends nothing for missedIntervals intervals is disconnected.
type echoController struct {
	sw       controllers.Switch
	interval time.Duration
	timeout  time.Duration

	// unix nanoseconds of the last message received from the switch
	lastSeen int64

	stop     chan struct{}
	stopOnce sync.Once
}

var _ controllers.Controller = &echoController{}
var _ controllers.Closer = &echoController{}

// NewFactory returns a factory of echo controllers probing the switch every interval
func NewFactory(interval time.Duration) controllers.Factory {
	return func(sw controllers.Switch) controllers.Controller {
		return newEchoController(sw, interval)
	}
}

func NewEchoController(sw controllers.Switch) controllers.Controller {
	return newEchoController(sw, DefaultInterval)
}

func newEchoController(sw controllers.Switch, interval time.Duration) *echoController {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &echoController{
		sw:       sw,
		interval: interval,
		timeout:  missedIntervals * interval,
		stop:     make(chan struct{}),
	}
}

func (e *echoController) Name() string {
	return "echo"
}

func (e *echoController) Initialize() error {
	e.markSeen()

	// send initial echo request
	e.sw.Send(protocol.NewEchoRequest())
	klog.V(2).Infof("initial echo request sent to %s", e.sw.Host())

	go e.keepalive()
	return nil
}

func (e *echoController) HandleMessage(msg ofp13.OFMessage) error {
	// any message proves the switch is alive
	e.markSeen()

	header, ok := msg.(*ofp13.OfpHeader)
	if !ok {
		return nil
	}

	switch header.Type {
	case ofp13.OFPT_ECHO_REQUEST:
		e.sw.Send(protocol.NewEchoReply(header.Xid))
	case ofp13.OFPT_ECHO_REPLY:
		klog.V(4).Infof("received echo reply from switch %d", e.sw.DatapathID())
	}

	return nil
}

// Close stops the keepalive loop
func (e *echoController) Close() {
	e.stopOnce.Do(func() {
		close(e.stop)
	})
}

func (e *echoController) markSeen() {
	atomic.StoreInt64(&e.lastSeen, time.Now().UnixNano())
}

func (e *echoController) silence() time.Duration {
	return time.Since(time.Unix(0, atomic.LoadInt64(&e.lastSeen)))
}

func (e *echoController) keepalive() {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			if silence := e.silence(); silence > e.timeout {
				klog.Errorf("switch %d silent for %s, closing connection", e.sw.DatapathID(), silence)
				e.sw.Close()
				return
			}

			e.sw.Send(protocol.NewEchoRequest())
		}
	}
}
