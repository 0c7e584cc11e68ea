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


// Package extract converts external sources into plain text for indexing.
//
// Supported sources are plain text, Markdown, HTML, PDF, Word (.docx) and
// spreadsheet (.xlsx) files, web bookmarks and folders of such files.
//
// Failure policy: Extract returns an error only when the top-level locator
// itself is unusable (missing path, bad URL, non-2xx response). A page of
// a PDF or a file inside a folder that fails is recorded in
// core.ExtractedContent.Items and the rest of the source is still returned.
package extract
