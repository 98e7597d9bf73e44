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

package controllers

import (
	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
)

// Controller handles OpenFlow messages for a single switch connection.
// There is one instance of each Controller per connection and all calls
// for a connection are made from the same goroutine.
type Controller interface {
	Name() string
	Initialize() error
	HandleMessage(msg ofp13.OFMessage) error
}

// Closer is implemented by controllers holding state that must be
// discarded when the switch disconnects
type Closer interface {
	Close()
}

// Switch is the handle a controller uses to reach the switch it serves
type Switch interface {
	// DatapathID is zero until the features reply has been received
	DatapathID() uint64
	// Host is the address the switch connected from, without the port
	Host() string
	// Send queues msg for the switch and returns without waiting for it to be written
	Send(msg ofp13.OFMessage)
	// Close drops the connection to the switch. Controllers implementing
	// Closer are notified once the connection is torn down.
	Close()
}

// Factory creates the controller instance for a new switch connection
type Factory func(sw Switch) Controller
