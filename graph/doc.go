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


// Package graph derives the relationship graph of indexed sources.
//
// Every document body and every external block with chunks in the index is
// a node. A source is represented by the normalized mean of its chunk
// vectors and two sources are as similar as the cosine of their means.
// Edges also connect sources whose owning documents share a tag, except a
// document and its own blocks, which trivially share every tag.
//
// BuildGraph compares every pair of sources, so its cost grows with the
// square of the number of indexed sources. That is fine for one user's
// collection of notes.
package graph
