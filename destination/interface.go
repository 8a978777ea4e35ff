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

package destination

import (
	"context"

	"github.com/streamhouse/tap-shopify/types"
)

type Config interface {
	Validate() error
}

type Writer interface {
	GetConfigRef() Config
	Spec() any
	Type() string
	// Check sets up connections and performs checks; doesn't load streams
	Check(ctx context.Context) error
	// Setup prepares the writer for dedicated use by one stream thread
	Setup(stream types.StreamInterface, opts *Options) error
	// Write persists a batch of records
	Write(ctx context.Context, records []types.RawRecord) error
	// DropStreams clears previously written output before a full reload
	DropStreams(ctx context.Context, selectedStreams []string) error
	Close(ctx context.Context) error
}
