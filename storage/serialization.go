// Copyright 2025 Poiesic Systems
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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/notevec/core"
)

// Records are encoded with MUS primitives in field order. Timestamps are
// stored as UTC microseconds.

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, sizeChunk(chunk))
	n := varint.Uint64.Marshal(uint64(chunk.Id), buf)
	n += ord.String.Marshal(chunk.DocID, buf[n:])
	n += ord.String.Marshal(chunk.BlockID, buf[n:])
	n += varint.PositiveInt.Marshal(chunk.Index, buf[n:])
	n += ord.String.Marshal(string(chunk.SourceType), buf[n:])
	n += ord.String.Marshal(chunk.SourceTitle, buf[n:])
	n += ord.String.Marshal(chunk.BlockType, buf[n:])
	n += ord.String.Marshal(chunk.Heading, buf[n:])
	n += ord.String.Marshal(chunk.Text, buf[n:])
	n += marshalVector(chunk.Vector, buf[n:])
	n += ord.String.Marshal(chunk.Model, buf[n:])
	marshalTime(chunk.UpdatedAt, buf[n:])
	return buf
}

func sizeChunk(chunk *core.Chunk) int {
	return varint.Uint64.Size(uint64(chunk.Id)) +
		ord.String.Size(chunk.DocID) +
		ord.String.Size(chunk.BlockID) +
		varint.PositiveInt.Size(chunk.Index) +
		ord.String.Size(string(chunk.SourceType)) +
		ord.String.Size(chunk.SourceTitle) +
		ord.String.Size(chunk.BlockType) +
		ord.String.Size(chunk.Heading) +
		ord.String.Size(chunk.Text) +
		sizeVector(chunk.Vector) +
		ord.String.Size(chunk.Model) +
		sizeTime(chunk.UpdatedAt)
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	r := reader{data: data}
	chunk := &core.Chunk{}
	chunk.Id = core.ID(r.uint64())
	chunk.DocID = r.string()
	chunk.BlockID = r.string()
	chunk.Index = r.positiveInt()
	chunk.SourceType = core.SourceType(r.string())
	chunk.SourceTitle = r.string()
	chunk.BlockType = r.string()
	chunk.Heading = r.string()
	chunk.Text = r.string()
	chunk.Vector = r.vector()
	chunk.Model = r.string()
	chunk.UpdatedAt = r.time()
	if r.err != nil {
		return nil, fmt.Errorf("%w: chunk: %w", ErrSerializationFailed, r.err)
	}
	return chunk, nil
}

// MarshalBlockState serializes a BlockState to bytes.
func MarshalBlockState(state *core.BlockState) []byte {
	size := ord.String.Size(state.DocID) +
		ord.String.Size(state.BlockID) +
		ord.String.Size(string(state.SourceType)) +
		ord.String.Size(state.Locator) +
		ord.String.Size(state.Title) +
		ord.Bool.Size(state.Indexed) +
		ord.Bool.Size(state.Indexing) +
		ord.String.Size(state.IndexError) +
		varint.PositiveInt.Size(state.ChunkCount) +
		sizeTime(state.UpdatedAt)
	buf := make([]byte, size)
	n := ord.String.Marshal(state.DocID, buf)
	n += ord.String.Marshal(state.BlockID, buf[n:])
	n += ord.String.Marshal(string(state.SourceType), buf[n:])
	n += ord.String.Marshal(state.Locator, buf[n:])
	n += ord.String.Marshal(state.Title, buf[n:])
	n += ord.Bool.Marshal(state.Indexed, buf[n:])
	n += ord.Bool.Marshal(state.Indexing, buf[n:])
	n += ord.String.Marshal(state.IndexError, buf[n:])
	n += varint.PositiveInt.Marshal(state.ChunkCount, buf[n:])
	marshalTime(state.UpdatedAt, buf[n:])
	return buf
}

// UnmarshalBlockState deserializes a BlockState from bytes.
func UnmarshalBlockState(data []byte) (*core.BlockState, error) {
	r := reader{data: data}
	state := &core.BlockState{}
	state.DocID = r.string()
	state.BlockID = r.string()
	state.SourceType = core.SourceType(r.string())
	state.Locator = r.string()
	state.Title = r.string()
	state.Indexed = r.bool()
	state.Indexing = r.bool()
	state.IndexError = r.string()
	state.ChunkCount = r.positiveInt()
	state.UpdatedAt = r.time()
	if r.err != nil {
		return nil, fmt.Errorf("%w: block state: %w", ErrSerializationFailed, r.err)
	}
	return state, nil
}

// MarshalIndexMeta serializes IndexMeta to bytes.
func MarshalIndexMeta(meta core.IndexMeta) []byte {
	buf := make([]byte, ord.String.Size(meta.ModelTag)+sizeTime(meta.LastIndexTime))
	n := ord.String.Marshal(meta.ModelTag, buf)
	marshalTime(meta.LastIndexTime, buf[n:])
	return buf
}

// UnmarshalIndexMeta deserializes IndexMeta from bytes.
func UnmarshalIndexMeta(data []byte) (core.IndexMeta, error) {
	r := reader{data: data}
	meta := core.IndexMeta{
		ModelTag:      r.string(),
		LastIndexTime: r.time(),
	}
	if r.err != nil {
		return core.IndexMeta{}, fmt.Errorf("%w: index meta: %w", ErrSerializationFailed, r.err)
	}
	return meta, nil
}

// MarshalString serializes a string to bytes.
func MarshalString(s string) []byte {
	buf := make([]byte, ord.String.Size(s))
	ord.String.Marshal(s, buf)
	return buf
}

// UnmarshalString deserializes a string from bytes.
func UnmarshalString(data []byte) (string, error) {
	s, _, err := ord.String.Unmarshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return s, nil
}

func sizeVector(v []float32) int {
	size := varint.PositiveInt.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalVector(v []float32, buf []byte) int {
	n := varint.PositiveInt.Marshal(len(v), buf)
	for _, f := range v {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	return n
}

// Zero times are stored as 0 so they round-trip to time.Time{}.
func timeToMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(timeToMicros(t))
}

func marshalTime(t time.Time, buf []byte) int {
	return varint.Int64.Marshal(timeToMicros(t), buf)
}

// reader decodes fields sequentially, keeping the first error.
type reader struct {
	data []byte
	n    int
	err  error
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.data[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) bool() bool {
	if r.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(r.data[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.data[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) positiveInt() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.PositiveInt.Unmarshal(r.data[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) vector() []float32 {
	length := r.positiveInt()
	if r.err != nil || length == 0 {
		return nil
	}
	if length > len(r.data)-r.n {
		r.err = fmt.Errorf("vector length %d exceeds remaining %d bytes", length, len(r.data)-r.n)
		return nil
	}
	v := make([]float32, length)
	for i := range v {
		f, n, err := raw.Float32.Unmarshal(r.data[r.n:])
		r.n += n
		if err != nil {
			r.err = err
			return nil
		}
		v[i] = f
	}
	return v
}

func (r *reader) time() time.Time {
	if r.err != nil {
		return time.Time{}
	}
	v, n, err := varint.Int64.Unmarshal(r.data[r.n:])
	r.n += n
	r.err = err
	if err != nil || v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}
