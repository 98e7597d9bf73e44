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

// Package schedule loads TT schedule tables.
//
// A schedule table is a text file with one flow per line. Each line holds
// seven integers separated by spaces, tabs or commas:
//
//	logical_port eth_type flow_id base_offset period buffer_id packet_size
//
// Numbers may be written in decimal or with a 0x prefix. Blank lines and
// lines starting with # are ignored.
package schedule

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const fieldsPerRecord = 7

var ErrMalformedRecord = errors.New("malformed schedule record")

// FlowRecord describes one TT flow to install
type FlowRecord struct {
	LogicalPort int
	EtherType   uint16
	FlowID      uint32
	BaseOffset  uint64
	Period      uint64
	BufferID    uint32
	PacketSize  uint32
}

// Batch is the ordered schedule of a switch. Flows are installed in order.
type Batch []FlowRecord

// Source supplies the schedule of a switch
type Source interface {
	Load(dpid uint64) (Batch, error)
}

// FileSource reads schedules from disk. The file in Paths for a datapath
// takes precedence over DefaultPath.
type FileSource struct {
	DefaultPath string
	Paths       map[uint64]string
}

var _ Source = &FileSource{}

func NewFileSource(defaultPath string, paths map[uint64]string) *FileSource {
	return &FileSource{
		DefaultPath: defaultPath,
		Paths:       paths,
	}
}

// Load reads the schedule table of dpid, reading the file again on every call
func (s *FileSource) Load(dpid uint64) (Batch, error) {
	path := s.DefaultPath
	if p, ok := s.Paths[dpid]; ok {
		path = p
	}

	return LoadFile(path)
}

func LoadFile(path string) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening schedule table")
	}
	defer f.Close()

	batch, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading schedule table %q", path)
	}

	return batch, nil
}

func Parse(r io.Reader) (Batch, error) {
	batch := Batch{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		record, err := parseRecord(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}

		batch = append(batch, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return batch, nil
}

func parseRecord(line string) (FlowRecord, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != fieldsPerRecord {
		return FlowRecord{}, errors.Wrapf(ErrMalformedRecord, "want %d fields, got %d", fieldsPerRecord, len(fields))
	}

	var values [fieldsPerRecord]uint64
	bits := [fieldsPerRecord]int{31, 16, 32, 64, 64, 32, 32}
	for i, field := range fields {
		v, err := strconv.ParseUint(field, 0, bits[i])
		if err != nil {
			return FlowRecord{}, errors.Wrapf(ErrMalformedRecord, "field %d: %v", i+1, err)
		}
		values[i] = v
	}

	return FlowRecord{
		LogicalPort: int(values[0]),
		EtherType:   uint16(values[1]),
		FlowID:      uint32(values[2]),
		BaseOffset:  values[3],
		Period:      values[4],
		BufferID:    uint32(values[5]),
		PacketSize:  uint32(values[6]),
	}, nil
}
