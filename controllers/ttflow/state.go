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

package ttflow

import (
	"fmt"

	"github.com/kube-ovs/tt-ovs/openflow/tt"
)

// State of a TT schedule download
type State int

const (
	Idle State = iota
	AwaitingStartReply
	Streaming
	AwaitingEndReply
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingStartReply:
		return "AwaitingStartReply"
	case Streaming:
		return "Streaming"
	case AwaitingEndReply:
		return "AwaitingEndReply"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// Event drives the download state machine
type Event int

const (
	SwitchConnected Event = iota
	StartAccepted
	StartRejected
	EndAck
	UnknownReply
	Disconnected
)

func (e Event) String() string {
	switch e {
	case SwitchConnected:
		return "SwitchConnected"
	case StartAccepted:
		return "StartAccepted"
	case StartRejected:
		return "StartRejected"
	case EndAck:
		return "EndAck"
	case UnknownReply:
		return "UnknownReply"
	case Disconnected:
		return "Disconnected"
	}

	return fmt.Sprintf("Event(%d)", int(e))
}

// eventForReply maps a control message received from the switch to an event.
// Request types only ever travel to the switch, receiving one is a protocol
// mismatch like any unknown type.
func eventForReply(t tt.CtrlType) Event {
	switch t {
	case tt.DownloadStartReply:
		return StartAccepted
	case tt.DownloadStartReject:
		return StartRejected
	case tt.DownloadEndReply:
		return EndAck
	}

	return UnknownReply
}

type transitionKey struct {
	state State
	event Event
}

// action performs the side effects of a transition and returns the next state
type action func(c *Coordinator, reply *tt.FlowCtrl) State

// transitions lists every legal transition. UnknownReply and Disconnected
// are legal in every state and handled before this table is consulted.
var transitions = map[transitionKey]action{
	{Idle, SwitchConnected}:             (*Coordinator).startDownload,
	{AwaitingStartReply, StartAccepted}: (*Coordinator).streamFlows,
	{AwaitingStartReply, StartRejected}: (*Coordinator).abortDownload,
	{AwaitingEndReply, EndAck}:          (*Coordinator).finishDownload,
}
