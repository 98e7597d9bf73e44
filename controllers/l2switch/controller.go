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

package l2switch

import (
	"errors"
	"fmt"

	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
	"github.com/kube-ovs/tt-ovs/controllers"
	"github.com/kube-ovs/tt-ovs/controllers/flows"
	"github.com/kube-ovs/tt-ovs/openflow/protocol"
	"github.com/kube-ovs/tt-ovs/packet"

	"k8s.io/klog"
)

// PriorityLearned is the priority of flows installed for learned destinations
const PriorityLearned = 1

var errNoInPort = errors.New("packet-in without in_port")

// switchController implements the controllers.Controller interface
// switchController is a learning bridge: it learns source MACs from
// packet-ins, floods unknown destinations and installs a flow for known ones
type switchController struct {
	sw     controllers.Switch
	tables *Tables
}

var _ controllers.Controller = &switchController{}

func NewSwitchController(sw controllers.Switch, tables *Tables) controllers.Controller {
	return &switchController{
		sw:     sw,
		tables: tables,
	}
}

func (s *switchController) Name() string {
	return "l2switch"
}

func (s *switchController) Initialize() error {
	return nil
}

func (s *switchController) HandleMessage(msg ofp13.OFMessage) error {
	packetIn, ok := msg.(*ofp13.OfpPacketIn)
	if !ok {
		return nil
	}

	// errors are reported and the packet is dropped, the next
	// packet-in is handled normally
	if err := s.handlePacketIn(packetIn); err != nil {
		return fmt.Errorf("dropping packet-in from switch %d: %v", s.sw.DatapathID(), err)
	}

	return nil
}

func (s *switchController) handlePacketIn(msg *ofp13.OfpPacketIn) error {
	// If you hit this you might want to increase
	// the "miss_send_length" of your switch
	if len(msg.Data) < int(msg.TotalLen) {
		klog.V(4).Infof("packet truncated: only %d of %d bytes", len(msg.Data), msg.TotalLen)
	}

	inPort, ok := inPortFromMatch(msg.Match)
	if !ok {
		return errNoInPort
	}

	frame, err := packet.Decode(msg.Data)
	if err != nil {
		return err
	}

	if frame.IsLinkDiscovery() {
		return nil
	}

	dpid := s.sw.DatapathID()
	table := s.tables.ForSwitch(dpid)

	klog.V(2).Infof("packet in %d %s %s %d", dpid, frame.Src, frame.Dst, inPort)

	// learn a mac address to avoid FLOOD next time
	table.Learn(frame.Src, inPort)

	outPort, known := table.Lookup(frame.Dst)
	if !known {
		outPort = ofp13.OFPP_FLOOD
	}

	actions := []ofp13.OfpAction{ofp13.NewOfpActionOutput(outPort, 0)}

	// install a flow to avoid packet_in next time
	if known {
		match, err := exactMatch(inPort, frame.Dst.String(), frame.Src.String())
		if err != nil {
			return err
		}

		// with a valid buffer id the switch replays the buffered packet
		// through the new flow, so no packet-out is sent
		if msg.BufferId != ofp13.OFP_NO_BUFFER {
			flows.InstallFlow(s.sw, PriorityLearned, match, actions, msg.BufferId)
			return nil
		}

		flows.InstallFlow(s.sw, PriorityLearned, match, actions, ofp13.OFP_NO_BUFFER)
	}

	var data []byte
	if msg.BufferId == ofp13.OFP_NO_BUFFER {
		data = msg.Data
	}

	s.sw.Send(protocol.NewPacketOut(msg.BufferId, inPort, actions, data))
	return nil
}

func exactMatch(inPort uint32, dst, src string) (*ofp13.OfpMatch, error) {
	ethDst, err := ofp13.NewOxmEthDst(dst)
	if err != nil {
		return nil, fmt.Errorf("error getting EthDst match: %v", err)
	}

	ethSrc, err := ofp13.NewOxmEthSrc(src)
	if err != nil {
		return nil, fmt.Errorf("error getting EthSrc match: %v", err)
	}

	match := ofp13.NewOfpMatch()
	match.Append(ofp13.NewOxmInPort(inPort))
	match.Append(ethDst)
	match.Append(ethSrc)

	return match, nil
}

func inPortFromMatch(match *ofp13.OfpMatch) (uint32, bool) {
	if match == nil {
		return 0, false
	}

	for _, field := range match.OxmFields {
		if inPort, ok := field.(*ofp13.OxmInPort); ok {
			return inPort.Value, true
		}
	}

	return 0, false
}
