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

package hello

import (
	"github.com/Kmotiko/gofc/ofprotocol/ofp13"
	"github.com/kube-ovs/tt-ovs/controllers"
	"github.com/kube-ovs/tt-ovs/openflow/protocol"

	"k8s.io/klog"
)

// helloController implements the Controller interface
// helloController immediately sends a OF_HELLO message and asks for the
// switch features once the switch says hello back
type helloController struct {
	sw controllers.Switch
}

var _ controllers.Controller = &helloController{}

func NewHelloController(sw controllers.Switch) controllers.Controller {
	return &helloController{sw: sw}
}

func (h *helloController) Name() string {
	return "hello"
}

func (h *helloController) Initialize() error {
	h.sw.Send(protocol.NewHello())
	return nil
}

func (h *helloController) HandleMessage(msg ofp13.OFMessage) error {
	if _, ok := msg.(*ofp13.OfpHello); !ok {
		return nil
	}

	// hello received, next thing to do is send a feature request message
	// to receive the data path ID of the switch
	klog.V(2).Infof("hello received from %s, requesting features", h.sw.Host())
	h.sw.Send(protocol.NewFeaturesRequest())
	return nil
}
