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

package protocol

import (
	"sync"

	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
)

// gofc hands out transaction IDs from an unsynchronized package counter.
// Every gofc constructor that takes one runs under xidMu so connections
// served concurrently never build messages at the same time.
var xidMu sync.Mutex

func NewHello() *ofp13.OfpHello {
	xidMu.Lock()
	defer xidMu.Unlock()

	return ofp13.NewOfpHello()
}

func NewFeaturesRequest() *ofp13.OfpHeader {
	xidMu.Lock()
	defer xidMu.Unlock()

	return ofp13.NewOfpFeaturesRequest()
}

func NewEchoRequest() *ofp13.OfpHeader {
	xidMu.Lock()
	defer xidMu.Unlock()

	return ofp13.NewOfpEchoRequest()
}

// NewEchoReply answers the echo request with transaction ID xid
func NewEchoReply(xid uint32) *ofp13.OfpHeader {
	xidMu.Lock()
	defer xidMu.Unlock()

	reply := ofp13.NewOfpEchoReply()
	reply.Xid = xid
	return reply
}

// NewFlowModAdd returns an OFPFC_ADD flow mod in table tableID
func NewFlowModAdd(tableID uint8, priority uint16, match *ofp13.OfpMatch,
	instructions []ofp13.OfpInstruction) *ofp13.OfpFlowMod {
	xidMu.Lock()
	defer xidMu.Unlock()

	return ofp13.NewOfpFlowModAdd(0, 0, tableID, priority, 0, match, instructions)
}

func NewPacketOut(bufferID, inPort uint32, actions []ofp13.OfpAction, data []byte) *ofp13.OfpPacketOut {
	xidMu.Lock()
	defer xidMu.Unlock()

	return ofp13.NewOfpPacketOut(bufferID, inPort, actions, data)
}
