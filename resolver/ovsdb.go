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

package resolver

import (
	"context"
	"net"

	"github.com/digitalocean/go-openvswitch/ovsdb"
	"github.com/pkg/errors"
)

const (
	databaseOpenVSwitch = "Open_vSwitch"
	tableInterface      = "Interface"
)

type ovsdbSession struct {
	client *ovsdb.Client
}

var _ Session = &ovsdbSession{}

// DialOVSDB opens a JSON-RPC session to the OVSDB server at addr. The TCP
// connect gives up once ctx is done.
func DialOVSDB(ctx context.Context, addr string) (Session, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	client, err := ovsdb.New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &ovsdbSession{client: client}, nil
}

// PortNumber reads the ofport column of the interface named portName
func (s *ovsdbSession) PortNumber(ctx context.Context, portName string) (uint32, error) {
	rows, err := s.client.Transact(ctx, databaseOpenVSwitch, []ovsdb.TransactOp{
		ovsdb.Select{
			Table: tableInterface,
			Where: []ovsdb.Cond{
				ovsdb.Equal("name", portName),
			},
		},
	})
	if err != nil {
		return 0, errors.Wrap(err, "OVSDB transaction failed")
	}

	if len(rows) == 0 {
		return 0, ErrPortNotFound
	}

	return ofPortFromRow(rows[0])
}

func (s *ovsdbSession) Close() error {
	return s.client.Close()
}

// ofPortFromRow reads the ofport column. An interface that has not been
// assigned a port yet has an empty set or -1 there.
func ofPortFromRow(row ovsdb.Row) (uint32, error) {
	var ofport float64
	switch v := row["ofport"].(type) {
	case float64:
		ofport = v
	case int:
		ofport = float64(v)
	default:
		return 0, errors.Wrapf(ErrPortNotFound, "no ofport assigned (%v)", v)
	}

	if ofport <= 0 {
		return 0, errors.Wrapf(ErrPortNotFound, "invalid ofport %v", ofport)
	}

	return uint32(ofport), nil
}
