// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jsonwgrpc

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/pjscruggs/jsonw"
)

var payloadMarshalOptions = protojson.MarshalOptions{
	AllowPartial:  true,
	UseProtoNames: true,
}

// writePayload renders a protobuf message under name. An untruncated payload
// is spliced in as a nested JSON value; a truncated one is no longer valid
// JSON and is emitted as a string alongside a marker field. Non-proto
// messages are skipped.
func writePayload(w *jsonw.Writer, name string, m any, maxSize int) {
	p, ok := m.(proto.Message)
	if !ok || p == nil {
		return
	}

	data, err := payloadMarshalOptions.Marshal(p)
	if err != nil {
		w.Name(name)
		w.String("!ERROR:" + err.Error())
		return
	}

	if maxSize > 0 && len(data) > maxSize {
		w.Name(name + "_truncated")
		w.Bool(true)
		w.Name(name + "_size")
		w.Int(int64(len(data)))
		w.Name(name)
		w.StringBytes(data[:maxSize])
		return
	}

	w.Name(name)
	w.Raw(data)
}

// protoSize returns the wire size of a protobuf message, or -1 for anything
// else.
func protoSize(m any) int64 {
	p, ok := m.(proto.Message)
	if !ok || p == nil {
		return -1
	}
	return int64(proto.Size(p))
}
