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


package notes

import "errors"

var (
	// ErrInvalidID indicates a note id that is empty or escapes the notes directory.
	ErrInvalidID = errors.New("invalid note id")

	// ErrFrontMatter indicates a note whose front matter cannot be parsed.
	ErrFrontMatter = errors.New("invalid front matter")

	// ErrAttachmentNotFound indicates an unknown attachment block id.
	ErrAttachmentNotFound = errors.New("attachment not found")
)
