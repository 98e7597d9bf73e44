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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
	"github.com/kube-ovs/tt-ovs/openflow/tt"
)

// HeaderLen is the size of the OpenFlow header every message starts with
const HeaderLen = 8

var ErrShortMessage = errors.New("message shorter than the OpenFlow header")

// MessageLength returns the length of the entire message as declared in its header
func MessageLength(header []byte) int {
	return int(binary.BigEndian.Uint16(header[2:4]))
}

// ParseMessage decodes one framed OpenFlow message. TT experimenter messages
// are decoded by the tt package, everything else by gofc.
func ParseMessage(buf []byte) (msg ofp13.OFMessage, err error) {
	if len(buf) < HeaderLen {
		return nil, ErrShortMessage
	}

	// gofc indexes into the buffer without bounds checks
	defer func() {
		if r := recover(); r != nil {
			msg = nil
			err = fmt.Errorf("malformed message of type %d: %v", buf[1], r)
		}
	}()

	if buf[1] == tt.TypeExperimenter {
		return tt.Parse(buf)
	}

	msg = parseLocked(buf)
	if msg == nil {
		return nil, fmt.Errorf("unsupported message type %d", buf[1])
	}

	return msg, nil
}

// parseLocked runs ofp13.Parse, which builds its messages with gofc's
// constructors, while holding xidMu
func parseLocked(buf []byte) ofp13.OFMessage {
	xidMu.Lock()
	defer xidMu.Unlock()

	return ofp13.Parse(buf)
}
