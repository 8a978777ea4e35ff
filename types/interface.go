/*
 * Copyright 2025 StreamHouse
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

// StreamInterface is the read side of a configured catalog stream as the
// driver and writer pool consume it
type StreamInterface interface {
	ID() string
	Name() string
	Namespace() string
	Self() *ConfiguredStream
	GetStream() *Stream
	Schema() *TypeSchema
	GetDestinationTable() string

	// sync behavior
	GetSyncMode() SyncMode
	SupportedSyncModes() *Set[SyncMode]
	Cursor() (string, string)
	GetFilter() (Filter, error)
	NormalizationEnabled() bool

	Validate(source *Stream) error
}
