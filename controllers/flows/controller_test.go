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

package flows

import (
	"encoding/binary"
	"testing"

	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
	"github.com/kube-ovs/tt-ovs/controllers/fakeswitch"
)

func onlyFlowMod(t *testing.T, sw *fakeswitch.Switch) *FlowMod {
	t.Helper()

	sent := sw.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}

	flowMod, ok := sent[0].(*FlowMod)
	if !ok {
		t.Fatalf("sent %T, want *FlowMod", sent[0])
	}

	return flowMod
}

func outputAction(t *testing.T, flowMod *FlowMod) *ofp13.OfpActionOutput {
	t.Helper()

	if len(flowMod.Instructions) != 1 {
		t.Fatalf("flow mod has %d instructions, want 1", len(flowMod.Instructions))
	}

	instruction, ok := flowMod.Instructions[0].(*ofp13.OfpInstructionActions)
	if !ok {
		t.Fatalf("instruction is %T, want apply actions", flowMod.Instructions[0])
	}
	if len(instruction.Actions) != 1 {
		t.Fatalf("instruction has %d actions, want 1", len(instruction.Actions))
	}

	output, ok := instruction.Actions[0].(*ofp13.OfpActionOutput)
	if !ok {
		t.Fatalf("action is %T, want output", instruction.Actions[0])
	}

	return output
}

func TestMissFlowOnSwitchFeatures(t *testing.T) {
	sw := fakeswitch.New(1, "10.0.0.1")
	controller := NewFlowsController(sw)

	if err := controller.HandleMessage(&ofp13.OfpSwitchFeatures{DatapathId: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	flowMod := onlyFlowMod(t, sw)
	if flowMod.Priority != PriorityMiss {
		t.Errorf("priority %d, want %d", flowMod.Priority, PriorityMiss)
	}
	if flowMod.BufferId != ofp13.OFP_NO_BUFFER {
		t.Errorf("buffer id %#x, want OFP_NO_BUFFER", flowMod.BufferId)
	}
	if n := len(flowMod.Match.OxmFields); n != 0 {
		t.Errorf("miss flow matches %d fields, want none", n)
	}

	output := outputAction(t, flowMod)
	if output.Port != ofp13.OFPP_CONTROLLER {
		t.Errorf("output port %#x, want OFPP_CONTROLLER", output.Port)
	}
	if output.MaxLen != ofp13.OFPCML_NO_BUFFER {
		t.Errorf("max len %#x, want OFPCML_NO_BUFFER", output.MaxLen)
	}
}

func TestOtherMessagesIgnored(t *testing.T) {
	sw := fakeswitch.New(1, "10.0.0.1")
	controller := NewFlowsController(sw)

	if err := controller.HandleMessage(ofp13.NewOfpHello()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sw.Sent()) != 0 {
		t.Errorf("expected no messages, got %d", len(sw.Sent()))
	}
}

func TestInstallFlowBufferID(t *testing.T) {
	tests := []struct {
		name     string
		bufferID uint32
	}{
		{"with buffered packet", 7},
		{"without buffered packet", ofp13.OFP_NO_BUFFER},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sw := fakeswitch.New(1, "10.0.0.1")
			actions := []ofp13.OfpAction{ofp13.NewOfpActionOutput(3, 0)}

			InstallFlow(sw, 1, ofp13.NewOfpMatch(), actions, test.bufferID)

			flowMod := onlyFlowMod(t, sw)
			if flowMod.BufferId != test.bufferID {
				t.Errorf("buffer id %#x, want %#x", flowMod.BufferId, test.bufferID)
			}
			if flowMod.Priority != 1 {
				t.Errorf("priority %d, want 1", flowMod.Priority)
			}
			if output := outputAction(t, flowMod); output.Port != 3 {
				t.Errorf("output port %d, want 3", output.Port)
			}
		})
	}
}

func TestInstallFlowWireFormat(t *testing.T) {
	ethMatch := func(t *testing.T) *ofp13.OfpMatch {
		ethDst, err := ofp13.NewOxmEthDst("00:00:00:00:00:0b")
		if err != nil {
			t.Fatal(err)
		}
		ethSrc, err := ofp13.NewOxmEthSrc("00:00:00:00:00:0a")
		if err != nil {
			t.Fatal(err)
		}

		match := ofp13.NewOfpMatch()
		match.Append(ofp13.NewOxmInPort(1))
		match.Append(ethDst)
		match.Append(ethSrc)
		return match
	}

	tests := []struct {
		name     string
		match    func(t *testing.T) *ofp13.OfpMatch
		matchLen int
	}{
		{
			name:     "empty match",
			match:    func(*testing.T) *ofp13.OfpMatch { return ofp13.NewOfpMatch() },
			matchLen: 4,
		},
		{
			name: "in_port only",
			match: func(*testing.T) *ofp13.OfpMatch {
				match := ofp13.NewOfpMatch()
				match.Append(ofp13.NewOxmInPort(1))
				return match
			},
			matchLen: 12,
		},
		{
			// in_port, eth_dst and eth_src fill the match to exactly 32 bytes
			name:     "aligned match",
			match:    ethMatch,
			matchLen: 32,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sw := fakeswitch.New(1, "10.0.0.1")
			actions := []ofp13.OfpAction{ofp13.NewOfpActionOutput(2, 0)}

			InstallFlow(sw, 1, test.match(t), actions, ofp13.OFP_NO_BUFFER)
			flowMod := onlyFlowMod(t, sw)
			buf := flowMod.Serialize()

			if got := int(binary.BigEndian.Uint16(buf[2:4])); got != len(buf) {
				t.Fatalf("header length %d, message is %d bytes", got, len(buf))
			}
			if flowMod.Size() != len(buf) {
				t.Errorf("size %d, message is %d bytes", flowMod.Size(), len(buf))
			}

			matchLen := int(binary.BigEndian.Uint16(buf[50:52]))
			if matchLen != test.matchLen {
				t.Fatalf("match length %d, want %d", matchLen, test.matchLen)
			}

			offset := 48 + (matchLen+7)/8*8
			if offset+8 > len(buf) {
				t.Fatalf("no room for an instruction at offset %d in %d bytes", offset, len(buf))
			}

			instType := binary.BigEndian.Uint16(buf[offset : offset+2])
			instLen := int(binary.BigEndian.Uint16(buf[offset+2 : offset+4]))
			if instType != ofp13.OFPIT_APPLY_ACTIONS {
				t.Errorf("instruction type %d at offset %d, want OFPIT_APPLY_ACTIONS", instType, offset)
			}
			// instruction header plus one 16 byte output action
			if instLen != 24 {
				t.Errorf("instruction length %d, want 24", instLen)
			}
			if offset+instLen != len(buf) {
				t.Errorf("instruction ends at %d, message is %d bytes", offset+instLen, len(buf))
			}

			action := buf[offset+8:]
			if actionType := binary.BigEndian.Uint16(action[0:2]); actionType != ofp13.OFPAT_OUTPUT {
				t.Errorf("action type %d, want OFPAT_OUTPUT", actionType)
			}
			if port := binary.BigEndian.Uint32(action[4:8]); port != 2 {
				t.Errorf("action output port %d, want 2", port)
			}
		})
	}
}
