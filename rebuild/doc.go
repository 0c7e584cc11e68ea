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


// Package rebuild reindexes every document and external block of a
// document store, for example after the embedding model changed.
//
// A rebuild runs documents first, then external blocks, reporting progress
// after each item. A failing item is logged and counted but does not stop
// the rebuild. Sources left in the index whose document or block no longer
// exists are pruned at the end.
package rebuild
