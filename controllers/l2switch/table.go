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
	"net"
	"sync"
)

// Table maps learned MAC addresses to the port they were last seen on.
// Entries are never aged out.
// TODO: bound the table size and evict idle entries before running this on
// large layer 2 domains.
type Table struct {
	mu    sync.RWMutex
	ports map[string]uint32
}

func newTable() *Table {
	return &Table{ports: make(map[string]uint32)}
}

// Learn records that mac was seen on port, replacing any earlier port
func (t *Table) Learn(mac net.HardwareAddr, port uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ports[mac.String()] = port
}

func (t *Table) Lookup(mac net.HardwareAddr) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	port, ok := t.ports[mac.String()]
	return port, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.ports)
}

// Tables holds one forwarding table per datapath ID. Tables outlive the
// switch connection so a reconnecting switch keeps what was learned.
type Tables struct {
	mu     sync.Mutex
	tables map[uint64]*Table
}

func NewTables() *Tables {
	return &Tables{tables: make(map[uint64]*Table)}
}

// ForSwitch returns the table of datapath dpid, creating it on first use
func (t *Tables) ForSwitch(dpid uint64) *Table {
	t.mu.Lock()
	defer t.mu.Unlock()

	table, ok := t.tables[dpid]
	if !ok {
		table = newTable()
		t.tables[dpid] = table
	}

	return table
}

// Get returns the table of dpid without creating one
func (t *Tables) Get(dpid uint64) (*Table, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	table, ok := t.tables[dpid]
	return table, ok
}
