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


package extract

import "errors"

var (
	// ErrNotFound indicates the file or directory does not exist.
	ErrNotFound = errors.New("source not found")

	// ErrUnsupported indicates a file type or content type that cannot be extracted.
	ErrUnsupported = errors.New("unsupported source")

	// ErrFetchFailed indicates a bookmark URL could not be fetched.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrTooLarge indicates a file exceeds Options.MaxFileSize.
	ErrTooLarge = errors.New("source too large")
)
