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

package packet

import (
	"bytes"
	"net"
	"testing"

	"github.com/google/gopacket/layers"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()

	mac, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("invalid MAC %q: %v", s, err)
	}

	return mac
}

func TestDecode(t *testing.T) {
	src := mustMAC(t, "00:00:00:00:00:01")
	dst := mustMAC(t, "00:00:00:00:00:02")

	tests := []struct {
		name      string
		etherType layers.EthernetType
		lldp      bool
	}{
		{"ipv4", layers.EthernetTypeIPv4, false},
		{"ptp", layers.EthernetType(0x88f7), false},
		{"lldp", layers.EthernetTypeLinkLayerDiscovery, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data, err := EthernetFrame(src, dst, test.etherType, []byte("payload"))
			if err != nil {
				t.Fatalf("error building frame: %v", err)
			}

			frame, err := Decode(data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !bytes.Equal(frame.Src, src) || !bytes.Equal(frame.Dst, dst) {
				t.Errorf("got src %s dst %s, want %s %s", frame.Src, frame.Dst, src, dst)
			}
			if frame.EtherType != test.etherType {
				t.Errorf("ether type %#x, want %#x", uint16(frame.EtherType), uint16(test.etherType))
			}
			if frame.IsLinkDiscovery() != test.lldp {
				t.Errorf("IsLinkDiscovery() = %v, want %v", frame.IsLinkDiscovery(), test.lldp)
			}
		})
	}
}

func TestDecodeShortFrame(t *testing.T) {
	if _, err := Decode([]byte{0x00, 0x01, 0x02}); err != ErrNoEthernet {
		t.Errorf("got %v, want ErrNoEthernet", err)
	}
}
