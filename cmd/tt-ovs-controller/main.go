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

package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/kube-ovs/tt-ovs/config"
	"github.com/kube-ovs/tt-ovs/controllers"
	"github.com/kube-ovs/tt-ovs/controllers/echo"
	"github.com/kube-ovs/tt-ovs/controllers/flows"
	"github.com/kube-ovs/tt-ovs/controllers/hello"
	"github.com/kube-ovs/tt-ovs/controllers/l2switch"
	"github.com/kube-ovs/tt-ovs/controllers/ttflow"
	"github.com/kube-ovs/tt-ovs/openflow"
	"github.com/kube-ovs/tt-ovs/resolver"
	"github.com/kube-ovs/tt-ovs/schedule"

	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/klog"
)

const defaultConfigPath = "/etc/tt-ovs/config.yaml"

func main() {
	klog.InitFlags(flag.CommandLine)
	configPath := flag.String("config", defaultConfigPath, "path to the controller configuration file")
	flag.Parse()
	defer klog.Flush()

	klog.Info("starting tt-ovs-controller")

	// a panic while handling one switch only drops that connection
	utilruntime.ReallyCrash = false

	cfg, err := config.Load(*configPath)
	if err != nil {
		klog.Errorf("error loading config %q: %v", *configPath, err)
		os.Exit(1)
	}

	overrides, err := cfg.ScheduleOverrides()
	if err != nil {
		klog.Errorf("error reading schedule overrides: %v", err)
		os.Exit(1)
	}

	schedules := schedule.NewFileSource(cfg.SchedulePath, overrides)
	portResolver := resolver.NewResolver(cfg.OVSDBPort)
	defer portResolver.Close()
	forwardingTables := l2switch.NewTables()

	server, err := openflow.NewServer(cfg.ListenPort, cfg.SendQueueSize)
	if err != nil {
		klog.Errorf("error starting open flow server: %v", err)
		os.Exit(1)
	}

	// order matters: the miss flow is installed before the TT download starts
	server.RegisterControllers(
		hello.NewHelloController,
		echo.NewFactory(cfg.EchoInterval.Duration),
		flows.NewFlowsController,
		func(sw controllers.Switch) controllers.Controller {
			return l2switch.NewSwitchController(sw, forwardingTables)
		},
		func(sw controllers.Switch) controllers.Controller {
			return ttflow.NewCoordinator(sw, ttflow.Config{
				Schedules:      schedules,
				Resolver:       portResolver,
				PortNameFormat: cfg.PortNameFormat,
				ResolveTimeout: cfg.OVSDBTimeout.Duration,
			})
		},
	)

	term := make(chan os.Signal, 1)
	signal.Notify(term, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-term
		klog.Info("shutting down")
		server.Close()
	}()

	klog.Infof("listening for switches on %s", server.Addr())
	if err := server.Serve(); err != nil {
		klog.Infof("server stopped: %v", err)
	}
}
