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


// Package chunker splits text into overlapping windows sized for an
// embedding model.
//
// Sizes are measured in runes. Windows are contiguous: each window starts at
// or before the end of the previous one, the first starts at offset 0 and the
// last ends at the end of the text, so the windows cover the input with no
// gaps. Boundaries prefer a paragraph break, then a sentence end, then
// whitespace in the second half of a window, and fall back to a hard cut.
package chunker
