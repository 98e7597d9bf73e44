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
	"testing"

	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
)

func TestConcurrentConstructorsUseDistinctXids(t *testing.T) {
	const (
		workers    = 8
		perWorker  = 200
		totalCount = workers * perWorker
	)

	xids := make(chan uint32, totalCount)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if worker%2 == 0 {
					xids <- NewEchoRequest().Xid
				} else {
					xids <- NewFeaturesRequest().Xid
				}
			}
		}(i)
	}
	wg.Wait()
	close(xids)

	seen := make(map[uint32]bool)
	for xid := range xids {
		if seen[xid] {
			t.Fatalf("transaction ID %d handed out twice", xid)
		}
		seen[xid] = true
	}
	if len(seen) != totalCount {
		t.Errorf("got %d transaction IDs, want %d", len(seen), totalCount)
	}
}

func TestNewEchoReplyKeepsXid(t *testing.T) {
	reply := NewEchoReply(42)
	if reply.Type != ofp13.OFPT_ECHO_REPLY {
		t.Errorf("type %d, want OFPT_ECHO_REPLY", reply.Type)
	}
	if reply.Xid != 42 {
		t.Errorf("xid %d, want 42", reply.Xid)
	}
}
