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
	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
	"github.com/kube-ovs/tt-ovs/controllers"

	"k8s.io/klog"
)

const (
	tableDefault = 0

	// PriorityMiss is the priority of the table-miss flow
	PriorityMiss = 0
)

// flowsController implements the controllers.Controller interface
// flowsController installs the table-miss flow once the switch is connected
type flowsController struct {
	sw controllers.Switch
}

var _ controllers.Controller = &flowsController{}

func NewFlowsController(sw controllers.Switch) controllers.Controller {
	return &flowsController{sw: sw}
}

func (f *flowsController) Name() string {
	return "flows"
}

func (f *flowsController) Initialize() error {
	return nil
}

func (f *flowsController) HandleMessage(msg ofp13.OFMessage) error {
	if _, ok := msg.(*ofp13.OfpSwitchFeatures); !ok {
		return nil
	}

	klog.Infof("installing table-miss flow on switch %d", f.sw.DatapathID())
	InstallMissFlow(f.sw)
	return nil
}

// InstallFlow sends a single flow-mod adding a flow that applies actions to
// packets matching match. bufferID refers to a packet buffered by the switch
// which is then processed by the new flow, ofp13.OFP_NO_BUFFER for none.
// Flow mods are not acknowledged, so this never waits on the switch.
func InstallFlow(sw controllers.Switch, priority uint16, match *ofp13.OfpMatch,
	actions []ofp13.OfpAction, bufferID uint32) {
	instruction := ofp13.NewOfpInstructionActions(ofp13.OFPIT_APPLY_ACTIONS)
	for _, action := range actions {
		instruction.Append(action)
	}

	flowMod := NewFlowModAdd(tableDefault, priority, match, []ofp13.OfpInstruction{instruction})
	flowMod.BufferId = bufferID

	sw.Send(flowMod)
}

// InstallMissFlow sends unmatched traffic to the controller.
//
// The output action asks for the whole packet (OFPCML_NO_BUFFER): with a
// smaller max length some Open vSwitch releases send packet-ins with an
// invalid buffer ID and truncated data, which cannot be forwarded correctly.
func InstallMissFlow(sw controllers.Switch) {
	actions := []ofp13.OfpAction{
		ofp13.NewOfpActionOutput(ofp13.OFPP_CONTROLLER, ofp13.OFPCML_NO_BUFFER),
	}

	InstallFlow(sw, PriorityMiss, ofp13.NewOfpMatch(), actions, ofp13.OFP_NO_BUFFER)
}
