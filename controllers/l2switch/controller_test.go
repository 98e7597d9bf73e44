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
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
	"github.com/google/gopacket/layers"
	"github.com/kube-ovs/tt-ovs/controllers/fakeswitch"
	"github.com/kube-ovs/tt-ovs/controllers/flows"
	"github.com/kube-ovs/tt-ovs/packet"
)

const (
	dpid = 0x1
	macA = "00:00:00:00:00:0a"
	macB = "00:00:00:00:00:0b"
)

func newPacketIn(t *testing.T, inPort, bufferID uint32, src, dst string, etherType layers.EthernetType) *ofp13.OfpPacketIn {
	t.Helper()

	srcMAC, err := net.ParseMAC(src)
	if err != nil {
		t.Fatal(err)
	}
	dstMAC, err := net.ParseMAC(dst)
	if err != nil {
		t.Fatal(err)
	}

	data, err := packet.EthernetFrame(srcMAC, dstMAC, etherType, []byte("hello"))
	if err != nil {
		t.Fatalf("error building frame: %v", err)
	}

	match := ofp13.NewOfpMatch()
	match.Append(ofp13.NewOxmInPort(inPort))

	return &ofp13.OfpPacketIn{
		BufferId: bufferID,
		TotalLen: uint16(len(data)),
		Match:    match,
		Data:     data,
	}
}

func setup() (*fakeswitch.Switch, *Tables, *switchController) {
	sw := fakeswitch.New(dpid, "10.0.0.1")
	tables := NewTables()
	return sw, tables, NewSwitchController(sw, tables).(*switchController)
}

func outputPort(t *testing.T, actions []ofp13.OfpAction) uint32 {
	t.Helper()

	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}

	output, ok := actions[0].(*ofp13.OfpActionOutput)
	if !ok {
		t.Fatalf("action is %T, want output", actions[0])
	}

	return output.Port
}

func TestLinkDiscoveryIgnored(t *testing.T) {
	sw, tables, controller := setup()

	msg := newPacketIn(t, 1, ofp13.OFP_NO_BUFFER, macA, macB, layers.EthernetTypeLinkLayerDiscovery)
	if err := controller.HandleMessage(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sw.Sent()) != 0 {
		t.Errorf("expected no messages, got %d", len(sw.Sent()))
	}
	if _, ok := tables.Get(dpid); ok {
		t.Error("expected no forwarding table to be created for LLDP traffic")
	}
}

func TestUnknownDestinationFloods(t *testing.T) {
	tests := []struct {
		name     string
		bufferID uint32
		wantData bool
	}{
		{"buffered", 12, false},
		{"unbuffered", ofp13.OFP_NO_BUFFER, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sw, tables, controller := setup()

			msg := newPacketIn(t, 1, test.bufferID, macA, macB, layers.EthernetTypeIPv4)
			if err := controller.HandleMessage(msg); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			sent := sw.Sent()
			if len(sent) != 1 {
				t.Fatalf("sent %d messages, want 1", len(sent))
			}

			packetOut, ok := sent[0].(*ofp13.OfpPacketOut)
			if !ok {
				t.Fatalf("sent %T, want packet-out", sent[0])
			}
			if port := outputPort(t, packetOut.Actions); port != ofp13.OFPP_FLOOD {
				t.Errorf("output port %#x, want OFPP_FLOOD", port)
			}
			if packetOut.BufferId != test.bufferID {
				t.Errorf("buffer id %#x, want %#x", packetOut.BufferId, test.bufferID)
			}
			if packetOut.InPort != 1 {
				t.Errorf("in port %d, want 1", packetOut.InPort)
			}
			if hasData := len(packetOut.Data) > 0; hasData != test.wantData {
				t.Errorf("packet-out carries data: %v, want %v", hasData, test.wantData)
			}

			table, ok := tables.Get(dpid)
			if !ok {
				t.Fatal("expected a forwarding table for the switch")
			}
			mac, _ := net.ParseMAC(macA)
			if port, ok := table.Lookup(mac); !ok || port != 1 {
				t.Errorf("source lookup = %d, %v; want 1, true", port, ok)
			}
		})
	}
}

func TestKnownDestinationInstallsFlow(t *testing.T) {
	tests := []struct {
		name          string
		bufferID      uint32
		wantPacketOut bool
	}{
		{"buffered", 12, false},
		{"unbuffered", ofp13.OFP_NO_BUFFER, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sw, _, controller := setup()

			// B talks first so that its port is known
			if err := controller.HandleMessage(newPacketIn(t, 2, ofp13.OFP_NO_BUFFER, macB, macA, layers.EthernetTypeIPv4)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			sw.Reset()

			msg := newPacketIn(t, 1, test.bufferID, macA, macB, layers.EthernetTypeIPv4)
			if err := controller.HandleMessage(msg); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var flowMods []*flows.FlowMod
			var packetOuts []*ofp13.OfpPacketOut
			for _, m := range sw.Sent() {
				switch m := m.(type) {
				case *flows.FlowMod:
					flowMods = append(flowMods, m)
				case *ofp13.OfpPacketOut:
					packetOuts = append(packetOuts, m)
				default:
					t.Fatalf("unexpected message %T", m)
				}
			}

			if len(flowMods) != 1 {
				t.Fatalf("sent %d flow mods, want 1", len(flowMods))
			}

			flowMod := flowMods[0]
			if flowMod.Priority != PriorityLearned {
				t.Errorf("priority %d, want %d", flowMod.Priority, PriorityLearned)
			}
			if flowMod.BufferId != test.bufferID {
				t.Errorf("flow mod buffer id %#x, want %#x", flowMod.BufferId, test.bufferID)
			}

			wantMatch, err := exactMatch(1, macB, macA)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(flowMod.Match.Serialize(), wantMatch.Serialize()) {
				t.Error("flow mod does not match exactly on in_port, eth_dst and eth_src")
			}

			instruction := flowMod.Instructions[0].(*ofp13.OfpInstructionActions)
			if port := outputPort(t, instruction.Actions); port != 2 {
				t.Errorf("flow output port %d, want 2", port)
			}

			// the 32 byte exact match needs no padding, the instruction
			// must start right after it
			buf := flowMod.Serialize()
			if matchLen := binary.BigEndian.Uint16(buf[50:52]); matchLen != 32 {
				t.Fatalf("match length %d, want 32", matchLen)
			}
			if instType := binary.BigEndian.Uint16(buf[80:82]); instType != ofp13.OFPIT_APPLY_ACTIONS {
				t.Errorf("instruction type %d after the match, want OFPIT_APPLY_ACTIONS", instType)
			}
			if got := int(binary.BigEndian.Uint16(buf[2:4])); got != len(buf) {
				t.Errorf("header length %d, message is %d bytes", got, len(buf))
			}

			if test.wantPacketOut {
				if len(packetOuts) != 1 {
					t.Fatalf("sent %d packet-outs, want 1", len(packetOuts))
				}
				if port := outputPort(t, packetOuts[0].Actions); port != 2 {
					t.Errorf("packet-out port %d, want 2", port)
				}
				if !bytes.Equal(packetOuts[0].Data, msg.Data) {
					t.Error("packet-out does not carry the original payload")
				}
			} else if len(packetOuts) != 0 {
				t.Errorf("sent %d packet-outs with a buffered packet, want 0", len(packetOuts))
			}
		})
	}
}

func TestMostRecentPortWins(t *testing.T) {
	_, tables, controller := setup()

	for _, port := range []uint32{1, 4} {
		if err := controller.HandleMessage(newPacketIn(t, port, ofp13.OFP_NO_BUFFER, macA, macB, layers.EthernetTypeIPv4)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	table, _ := tables.Get(dpid)
	mac, _ := net.ParseMAC(macA)
	if port, ok := table.Lookup(mac); !ok || port != 4 {
		t.Errorf("lookup = %d, %v; want 4, true", port, ok)
	}
	if table.Len() != 1 {
		t.Errorf("table has %d entries, want 1", table.Len())
	}
}

func TestTablesArePerSwitch(t *testing.T) {
	tables := NewTables()
	mac, _ := net.ParseMAC(macA)

	tables.ForSwitch(1).Learn(mac, 3)

	if _, ok := tables.ForSwitch(2).Lookup(mac); ok {
		t.Error("MAC learned on switch 1 resolved on switch 2")
	}
	if port, ok := tables.ForSwitch(1).Lookup(mac); !ok || port != 3 {
		t.Errorf("lookup = %d, %v; want 3, true", port, ok)
	}
}

func TestMalformedPacketInDropped(t *testing.T) {
	sw, _, controller := setup()

	noInPort := newPacketIn(t, 1, ofp13.OFP_NO_BUFFER, macA, macB, layers.EthernetTypeIPv4)
	noInPort.Match = ofp13.NewOfpMatch()

	garbage := newPacketIn(t, 1, ofp13.OFP_NO_BUFFER, macA, macB, layers.EthernetTypeIPv4)
	garbage.Data = []byte{0x01, 0x02}

	for _, msg := range []*ofp13.OfpPacketIn{noInPort, garbage} {
		if err := controller.HandleMessage(msg); err == nil {
			t.Error("expected an error for a malformed packet-in")
		}
	}

	if len(sw.Sent()) != 0 {
		t.Errorf("expected no messages, got %d", len(sw.Sent()))
	}
}
