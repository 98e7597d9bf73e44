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
	"errors"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var ErrNoEthernet = errors.New("couldn't get ethernet layer")

// Frame holds the Ethernet header fields the learning switch needs
type Frame struct {
	Src       net.HardwareAddr
	Dst       net.HardwareAddr
	EtherType layers.EthernetType
}

// IsLinkDiscovery reports whether the frame is LLDP control traffic
func (f *Frame) IsLinkDiscovery() bool {
	return f.EtherType == layers.EthernetTypeLinkLayerDiscovery
}

// Decode reads the Ethernet header of a packet-in payload. Only the
// Ethernet layer is decoded, upper layers are left untouched.
func Decode(data []byte) (*Frame, error) {
	p := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Lazy)

	ethLayer := p.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return nil, ErrNoEthernet
	}

	eth := ethLayer.(*layers.Ethernet)
	return &Frame{
		Src:       eth.SrcMAC,
		Dst:       eth.DstMAC,
		EtherType: eth.EthernetType,
	}, nil
}

// EthernetFrame serializes an Ethernet frame carrying payload
func EthernetFrame(src, dst net.HardwareAddr, etherType layers.EthernetType, payload []byte) ([]byte, error) {
	eth := layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       dst,
		EthernetType: etherType,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{}

	err := gopacket.SerializeLayers(buf, opts, &eth, gopacket.Payload(payload))
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
