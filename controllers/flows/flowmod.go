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

	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
	"github.com/kube-ovs/tt-ovs/openflow/protocol"
)

// flowModFixedLen is the size of ofp_flow_mod up to the match
const flowModFixedLen = 48

// FlowMod is an OpenFlow 1.3 flow mod whose match is padded to the next
// multiple of 8 bytes. ofp13.OfpFlowMod adds 8 bytes of padding to a match
// that is already aligned, which a switch reads as an empty instruction and
// rejects the whole flow mod.
type FlowMod struct {
	*ofp13.OfpFlowMod
}

var _ ofp13.OFMessage = &FlowMod{}

func NewFlowModAdd(tableID uint8, priority uint16, match *ofp13.OfpMatch,
	instructions []ofp13.OfpInstruction) *FlowMod {
	return &FlowMod{protocol.NewFlowModAdd(tableID, priority, match, instructions)}
}

func (m *FlowMod) Serialize() []byte {
	fixed := m.OfpFlowMod.Serialize()[:flowModFixedLen]

	match := m.Match.Serialize()
	matchLen := int(binary.BigEndian.Uint16(match[2:4]))

	buf := make([]byte, 0, len(fixed)+len(match))
	buf = append(buf, fixed...)
	buf = append(buf, match[:padded(matchLen)]...)
	for _, instruction := range m.Instructions {
		buf = append(buf, instruction.Serialize()...)
	}

	binary.BigEndian.PutUint16(buf[2:4], uint16(len(buf)))
	return buf
}

func (m *FlowMod) Size() int {
	return len(m.Serialize())
}

// padded rounds an ofp_match length up to a multiple of 8
func padded(length int) int {
	return (length + 7) / 8 * 8
}
