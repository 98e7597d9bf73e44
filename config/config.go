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

package config

import (
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/yaml"
)

const (
	DefaultListenPort     = 6653
	DefaultOVSDBPort      = 6640
	DefaultOVSDBTimeout   = 5 * time.Second
	DefaultPortNameFormat = "s1-eth%d"
	DefaultSendQueueSize  = 1024
	DefaultEchoInterval   = 15 * time.Second
)

// Config is the configuration of the controller daemon
type Config struct {
	// ListenPort is the TCP port switches connect to
	ListenPort int `json:"listenPort"`
	// OVSDBPort is the port of the OVSDB server on every switch host
	OVSDBPort    int             `json:"ovsdbPort"`
	OVSDBTimeout metav1.Duration `json:"ovsdbTimeout"`
	// PortNameFormat turns a logical schedule port into an interface name
	PortNameFormat string `json:"portNameFormat"`
	// SchedulePath is the TT schedule table of every switch
	SchedulePath string `json:"schedulePath"`
	// Schedules overrides SchedulePath per datapath ID (decimal or 0x hex)
	Schedules     map[string]string `json:"schedules,omitempty"`
	SendQueueSize int               `json:"sendQueueSize"`
	// EchoInterval is the period of the echo requests sent to every switch
	EchoInterval metav1.Duration `json:"echoInterval"`
}

// Load reads the YAML configuration at path, fills in defaults and validates it
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %v", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.ListenPort == 0 {
		c.ListenPort = DefaultListenPort
	}
	if c.OVSDBPort == 0 {
		c.OVSDBPort = DefaultOVSDBPort
	}
	if c.OVSDBTimeout.Duration == 0 {
		c.OVSDBTimeout.Duration = DefaultOVSDBTimeout
	}
	if c.PortNameFormat == "" {
		c.PortNameFormat = DefaultPortNameFormat
	}
	if c.SendQueueSize == 0 {
		c.SendQueueSize = DefaultSendQueueSize
	}
	if c.EchoInterval.Duration == 0 {
		c.EchoInterval.Duration = DefaultEchoInterval
	}
}

// Validate reports every invalid field at once
func (c *Config) Validate() error {
	var errs []error

	if c.ListenPort <= 0 || c.ListenPort > 0xffff {
		errs = append(errs, fmt.Errorf("invalid listenPort %d", c.ListenPort))
	}
	if c.OVSDBPort <= 0 || c.OVSDBPort > 0xffff {
		errs = append(errs, fmt.Errorf("invalid ovsdbPort %d", c.OVSDBPort))
	}
	if c.OVSDBTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("invalid ovsdbTimeout %s", c.OVSDBTimeout.Duration))
	}
	if strings.Count(c.PortNameFormat, "%d") != 1 {
		errs = append(errs, fmt.Errorf("portNameFormat %q must contain exactly one %%d", c.PortNameFormat))
	}
	if c.SchedulePath == "" {
		errs = append(errs, fmt.Errorf("schedulePath is required"))
	}
	if c.SendQueueSize < 0 {
		errs = append(errs, fmt.Errorf("invalid sendQueueSize %d", c.SendQueueSize))
	}
	if c.EchoInterval.Duration < 0 {
		errs = append(errs, fmt.Errorf("invalid echoInterval %s", c.EchoInterval.Duration))
	}
	if _, err := c.ScheduleOverrides(); err != nil {
		errs = append(errs, err)
	}

	return utilerrors.NewAggregate(errs)
}

// ScheduleOverrides returns Schedules keyed by datapath ID
func (c *Config) ScheduleOverrides() (map[uint64]string, error) {
	overrides := make(map[uint64]string, len(c.Schedules))
	for key, path := range c.Schedules {
		dpid, err := strconv.ParseUint(key, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid datapath ID %q in schedules: %v", key, err)
		}
		overrides[dpid] = path
	}

	return overrides, nil
}
