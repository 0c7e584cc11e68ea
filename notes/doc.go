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


// Package notes stores notes as Markdown files in a directory tree and
// exposes them to the engine as a core.DocumentStore.
//
// A note's id is its path relative to the root without the .md extension,
// e.g. "projects/garden". An optional YAML front matter block carries the
// title, tags and external attachments:
//
//	---
//	title: Garden
//	tags: [home, plants]
//	attachments:
//	  - id: seeds
//	    type: file
//	    locator: ./seeds.pdf
//	  - id: guide
//	    type: bookmark
//	    locator: https://example.com/guide
//	---
//	# Garden
//
//	Body text.
//
// A note without a front matter title takes the text of its first level-one
// heading, or else its file name. Relative file and folder locators are
// resolved against the note's directory.
package notes
