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

// Package tt implements the ONF Time-Triggered flow experimenter messages
// used to download a TT schedule table into a switch.
package tt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
)

const (
	ofpVersion       = 0x04
	TypeExperimenter = 4

	// ExperimenterONF is the experimenter ID assigned to the ONF extensions
	ExperimenterONF uint32 = 0x4f4e4600

	ExpTypeFlowCtrl uint32 = 2350
	ExpTypeFlowMod  uint32 = 2351

	headerLen       = 8
	experimenterLen = headerLen + 8
	flowCtrlLen     = experimenterLen + 8
	flowModLen      = experimenterLen + 48
)

var (
	ErrTooShort            = errors.New("tt: message too short")
	ErrUnknownExperimenter = errors.New("tt: unknown experimenter message")
)

var xid uint32

func nextXid() uint32 {
	return atomic.AddUint32(&xid, 1)
}

// CtrlType is the kind carried by a TT flow control message
type CtrlType uint32

const (
	DownloadStartRequest CtrlType = iota
	DownloadStartReply
	DownloadEndRequest
	DownloadEndReply
	DownloadStartReject
)

func (t CtrlType) String() string {
	switch t {
	case DownloadStartRequest:
		return "DownloadStartRequest"
	case DownloadStartReply:
		return "DownloadStartReply"
	case DownloadEndRequest:
		return "DownloadEndRequest"
	case DownloadEndReply:
		return "DownloadEndReply"
	case DownloadStartReject:
		return "DownloadStartReject"
	}

	return fmt.Sprintf("CtrlType(%d)", uint32(t))
}

func newHeader(length int) ofp13.OfpHeader {
	return ofp13.OfpHeader{
		Version: ofpVersion,
		Type:    TypeExperimenter,
		Length:  uint16(length),
		Xid:     nextXid(),
	}
}

func putHeader(buf []byte, h ofp13.OfpHeader, expType uint32) {
	buf[0] = h.Version
	buf[1] = h.Type
	binary.BigEndian.PutUint16(buf[2:], h.Length)
	binary.BigEndian.PutUint32(buf[4:], h.Xid)
	binary.BigEndian.PutUint32(buf[8:], ExperimenterONF)
	binary.BigEndian.PutUint32(buf[12:], expType)
}

func parseHeader(buf []byte) ofp13.OfpHeader {
	return ofp13.OfpHeader{
		Version: buf[0],
		Type:    buf[1],
		Length:  binary.BigEndian.Uint16(buf[2:]),
		Xid:     binary.BigEndian.Uint32(buf[4:]),
	}
}

// FlowCtrl frames a TT download: the controller sends start and end requests,
// the switch answers each with a reply carrying the same flow count.
type FlowCtrl struct {
	Header    ofp13.OfpHeader
	Type      CtrlType
	FlowCount uint32
}

func NewFlowCtrl(t CtrlType, flowCount uint32) *FlowCtrl {
	return &FlowCtrl{
		Header:    newHeader(flowCtrlLen),
		Type:      t,
		FlowCount: flowCount,
	}
}

func (m *FlowCtrl) Serialize() []byte {
	buf := make([]byte, flowCtrlLen)
	putHeader(buf, m.Header, ExpTypeFlowCtrl)
	binary.BigEndian.PutUint32(buf[16:], uint32(m.Type))
	binary.BigEndian.PutUint32(buf[20:], m.FlowCount)

	return buf
}

func (m *FlowCtrl) Parse(packet []byte) {
	m.Header = parseHeader(packet)
	m.Type = CtrlType(binary.BigEndian.Uint32(packet[16:]))
	m.FlowCount = binary.BigEndian.Uint32(packet[20:])
}

func (m *FlowCtrl) Size() int {
	return flowCtrlLen
}

// FlowMod installs a single TT flow entry on a switch port
type FlowMod struct {
	Header      ofp13.OfpHeader
	Port        uint32
	EtherType   uint16
	FlowID      uint32
	BufferID    uint32
	BaseOffset  uint64
	Period      uint64
	PacketSize  uint32
	ExecuteTime uint64
}

func NewFlowMod() *FlowMod {
	return &FlowMod{
		Header: newHeader(flowModLen),
	}
}

func (m *FlowMod) Serialize() []byte {
	buf := make([]byte, flowModLen)
	putHeader(buf, m.Header, ExpTypeFlowMod)

	body := buf[experimenterLen:]
	binary.BigEndian.PutUint32(body[0:], m.Port)
	binary.BigEndian.PutUint16(body[4:], m.EtherType)
	binary.BigEndian.PutUint32(body[8:], m.FlowID)
	binary.BigEndian.PutUint32(body[12:], m.BufferID)
	binary.BigEndian.PutUint64(body[16:], m.BaseOffset)
	binary.BigEndian.PutUint64(body[24:], m.Period)
	binary.BigEndian.PutUint32(body[32:], m.PacketSize)
	binary.BigEndian.PutUint64(body[40:], m.ExecuteTime)

	return buf
}

func (m *FlowMod) Parse(packet []byte) {
	m.Header = parseHeader(packet)

	body := packet[experimenterLen:]
	m.Port = binary.BigEndian.Uint32(body[0:])
	m.EtherType = binary.BigEndian.Uint16(body[4:])
	m.FlowID = binary.BigEndian.Uint32(body[8:])
	m.BufferID = binary.BigEndian.Uint32(body[12:])
	m.BaseOffset = binary.BigEndian.Uint64(body[16:])
	m.Period = binary.BigEndian.Uint64(body[24:])
	m.PacketSize = binary.BigEndian.Uint32(body[32:])
	m.ExecuteTime = binary.BigEndian.Uint64(body[40:])
}

func (m *FlowMod) Size() int {
	return flowModLen
}

// Parse decodes an OFPT_EXPERIMENTER message carrying one of the TT
// extensions. Other experimenter messages return ErrUnknownExperimenter.
func Parse(buf []byte) (ofp13.OFMessage, error) {
	if len(buf) < experimenterLen {
		return nil, ErrTooShort
	}

	experimenter := binary.BigEndian.Uint32(buf[8:])
	expType := binary.BigEndian.Uint32(buf[12:])
	if experimenter != ExperimenterONF {
		return nil, ErrUnknownExperimenter
	}

	var msg ofp13.OFMessage
	switch expType {
	case ExpTypeFlowCtrl:
		msg = &FlowCtrl{}
	case ExpTypeFlowMod:
		msg = &FlowMod{}
	default:
		return nil, ErrUnknownExperimenter
	}

	if len(buf) < msg.Size() {
		return nil, ErrTooShort
	}

	msg.Parse(buf)
	return msg, nil
}
