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

// Package ttflow downloads a Time-Triggered schedule table into a switch.
//
// The download is framed by two request/reply pairs: a start request
// announcing the number of flows, then, once the switch accepts, one TT
// flow mod per schedule entry followed by an end request repeating the
// flow count. Flow mods are not acknowledged; ordering relies on the
// in-order delivery of the control connection.
//
// There is no timeout on the replies. A switch that never answers leaves
// the download waiting until it disconnects.
package ttflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
	"github.com/kube-ovs/tt-ovs/controllers"
	"github.com/kube-ovs/tt-ovs/openflow/tt"
	"github.com/kube-ovs/tt-ovs/schedule"

	"k8s.io/klog"
)

const (
	// DefaultPortNameFormat turns a logical port of the schedule into a port name
	DefaultPortNameFormat = "s1-eth%d"

	DefaultResolveTimeout = 5 * time.Second
)

// ErrIllegalTransition is returned for an event that is not valid in the
// current state, such as an end reply without a download in progress
var ErrIllegalTransition = errors.New("illegal TT download transition")

// PortResolver maps a port name to its OpenFlow port number on a switch
type PortResolver interface {
	ResolvePort(ctx context.Context, dpid uint64, host, portName string) (uint32, error)
}

type Config struct {
	Schedules      schedule.Source
	Resolver       PortResolver
	PortNameFormat string
	ResolveTimeout time.Duration
}

// Stats counts the flows of the current or last download
type Stats struct {
	Total   int
	Sent    int
	Skipped int
}

// Coordinator implements the controllers.Controller interface
// Coordinator starts a download when the switch connects and drives it
// from the TT control replies
type Coordinator struct {
	sw  controllers.Switch
	cfg Config

	state State
	batch schedule.Batch
	stats Stats
}

var _ controllers.Controller = &Coordinator{}
var _ controllers.Closer = &Coordinator{}

func NewCoordinator(sw controllers.Switch, cfg Config) *Coordinator {
	if cfg.PortNameFormat == "" {
		cfg.PortNameFormat = DefaultPortNameFormat
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultResolveTimeout
	}

	return &Coordinator{
		sw:    sw,
		cfg:   cfg,
		state: Idle,
	}
}

func (c *Coordinator) Name() string {
	return "ttflow"
}

func (c *Coordinator) Initialize() error {
	return nil
}

func (c *Coordinator) HandleMessage(msg ofp13.OFMessage) error {
	switch m := msg.(type) {
	case *ofp13.OfpSwitchFeatures:
		return c.fire(SwitchConnected, nil)
	case *tt.FlowCtrl:
		klog.Infof("switch %d: TT flow control %s, flow count %d", c.sw.DatapathID(), m.Type, m.FlowCount)
		return c.fire(eventForReply(m.Type), m)
	}

	return nil
}

// Close abandons any download in progress
func (c *Coordinator) Close() {
	_ = c.fire(Disconnected, nil)
}

func (c *Coordinator) State() State {
	return c.state
}

func (c *Coordinator) Stats() Stats {
	return c.stats
}

func (c *Coordinator) fire(event Event, reply *tt.FlowCtrl) error {
	dpid := c.sw.DatapathID()

	switch event {
	case UnknownReply:
		klog.Warningf("switch %d: ignoring TT control message %s in state %s", dpid, reply.Type, c.state)
		return nil
	case Disconnected:
		if c.state != Idle {
			klog.Warningf("switch %d: disconnected in state %s, TT download abandoned", dpid, c.state)
		}
		c.state = Idle
		c.batch = nil
		return nil
	}

	act, ok := transitions[transitionKey{c.state, event}]
	if !ok {
		return fmt.Errorf("switch %d: %s in state %s: %w", dpid, event, c.state, ErrIllegalTransition)
	}

	from := c.state
	c.state = act(c, reply)
	klog.V(2).Infof("switch %d: TT download %s -(%s)-> %s", dpid, from, event, c.state)

	return nil
}

func (c *Coordinator) startDownload(_ *tt.FlowCtrl) State {
	dpid := c.sw.DatapathID()

	batch, err := c.cfg.Schedules.Load(dpid)
	if err != nil {
		klog.Errorf("switch %d: error loading TT schedule table: %v", dpid, err)
		return Idle
	}

	c.batch = batch
	c.stats = Stats{Total: len(batch)}

	klog.Infof("switch %d: requesting download of %d TT flows", dpid, len(batch))
	c.sw.Send(tt.NewFlowCtrl(tt.DownloadStartRequest, uint32(len(batch))))

	return AwaitingStartReply
}

func (c *Coordinator) streamFlows(_ *tt.FlowCtrl) State {
	c.state = Streaming
	dpid := c.sw.DatapathID()

	for _, record := range c.batch {
		port, err := c.resolvePort(record.LogicalPort)
		if err != nil {
			klog.Errorf("switch %d: skipping TT flow %d: %v", dpid, record.FlowID, err)
			c.stats.Skipped++
			continue
		}

		klog.V(3).Infof("switch %d: logical port %d is port number %d", dpid, record.LogicalPort, port)
		c.sw.Send(flowModForRecord(record, port))
		c.stats.Sent++
	}

	// the end request carries the size of the schedule, not the number of
	// flows sent, so the switch can tell that entries are missing
	c.sw.Send(tt.NewFlowCtrl(tt.DownloadEndRequest, uint32(len(c.batch))))

	return AwaitingEndReply
}

func (c *Coordinator) abortDownload(_ *tt.FlowCtrl) State {
	klog.Errorf("switch %d: TT download of %d flows rejected", c.sw.DatapathID(), len(c.batch))
	c.batch = nil

	return Idle
}

func (c *Coordinator) finishDownload(reply *tt.FlowCtrl) State {
	klog.Infof("switch %d: TT schedule table download end, %d of %d flows sent, %d skipped, switch reports %d",
		c.sw.DatapathID(), c.stats.Sent, c.stats.Total, c.stats.Skipped, reply.FlowCount)
	c.batch = nil

	return Idle
}

func (c *Coordinator) resolvePort(logicalPort int) (uint32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ResolveTimeout)
	defer cancel()

	portName := fmt.Sprintf(c.cfg.PortNameFormat, logicalPort)
	return c.cfg.Resolver.ResolvePort(ctx, c.sw.DatapathID(), c.sw.Host(), portName)
}

func flowModForRecord(record schedule.FlowRecord, port uint32) *tt.FlowMod {
	mod := tt.NewFlowMod()
	mod.Port = port
	mod.EtherType = record.EtherType
	mod.FlowID = record.FlowID
	mod.BaseOffset = record.BaseOffset
	mod.Period = record.Period
	mod.BufferID = record.BufferID
	mod.PacketSize = record.PacketSize
	// TT flows take effect immediately
	mod.ExecuteTime = 0

	return mod
}
