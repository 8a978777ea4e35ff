package types

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"

	"github.com/streamhouse/tap-shopify/constants"
	"github.com/streamhouse/tap-shopify/utils/logger"
)

type StateType string

// StreamType tracks bookmarks per stream; the Admin API has no shared
// source position, so it is the only state layout
const StreamType StateType = "STREAM"

// ChunksKey is the state key holding pending backfill chunks
const ChunksKey = "chunks"

// Chunk is a min/max bounded slice of a stream used for resumable backfill
type Chunk struct {
	Min any `json:"min"`
	Max any `json:"max"`
}

// State holds the sync position of all streams; it is shared between
// reader threads so all access goes through the mutex
type State struct {
	*sync.RWMutex `json:"-"`
	Type          StateType      `json:"type"`
	Streams       []*StreamState `json:"streams"`
}

type StreamState struct {
	HoldsValue atomic.Bool `json:"-"`

	Stream    string   `json:"stream"`
	Namespace string   `json:"namespace"`
	State     sync.Map `json:"-"`
}

func NewState() *State {
	return &State{
		RWMutex: &sync.RWMutex{},
		Streams: []*StreamState{},
	}
}

func (s *State) SetType(typ StateType) {
	s.Type = typ
}

func (s *State) ResetStreams() {
	s.Lock()
	defer s.Unlock()

	s.Streams = []*StreamState{}
}

func (s *State) initStreamState(stream *ConfiguredStream) *StreamState {
	return &StreamState{
		Stream:    stream.Name(),
		Namespace: stream.Namespace(),
		State:     sync.Map{},
	}
}

// fetchStream returns the stream state, creating it when create is set
func (s *State) fetchStream(stream *ConfiguredStream, create bool) *StreamState {
	s.Lock()
	defer s.Unlock()

	for _, ss := range s.Streams {
		if ss.Stream == stream.Name() && ss.Namespace == stream.Namespace() {
			return ss
		}
	}

	if create {
		ss := s.initStreamState(stream)
		s.Streams = append(s.Streams, ss)
		return ss
	}

	return nil
}

func (s *State) SetCursor(stream *ConfiguredStream, key string, value any) {
	if key == "" {
		return
	}

	ss := s.fetchStream(stream, true)
	ss.State.Store(key, value)
	ss.HoldsValue.Store(true)

	LogState(s)
}

func (s *State) GetCursor(stream *ConfiguredStream, key string) any {
	if key == "" {
		return nil
	}

	ss := s.fetchStream(stream, false)
	if ss == nil {
		return nil
	}

	value, _ := ss.State.Load(key)
	return value
}

// ResetCursor drops both cursors of the stream; used when a full reload
// gets forced
func (s *State) ResetCursor(stream *ConfiguredStream) {
	ss := s.fetchStream(stream, false)
	if ss == nil {
		return
	}

	primary, secondary := stream.Cursor()
	ss.State.Delete(primary)
	if secondary != "" {
		ss.State.Delete(secondary)
	}

	LogState(s)
}

func (s *State) SetChunks(stream *ConfiguredStream, chunks *Set[Chunk]) {
	// chunk recovery only matters for resumable modes
	if stream.GetSyncMode() == FULLREFRESH {
		return
	}

	ss := s.fetchStream(stream, true)
	ss.State.Store(ChunksKey, chunks)
	ss.HoldsValue.Store(true)

	LogState(s)
}

func (s *State) GetChunks(stream *ConfiguredStream) *Set[Chunk] {
	ss := s.fetchStream(stream, false)
	if ss == nil {
		return nil
	}

	chunks, found := ss.State.Load(ChunksKey)
	if !found {
		return nil
	}

	return chunks.(*Set[Chunk])
}

// RemoveChunk deletes a finished chunk and returns the remaining count,
// or -1 when the stream holds no chunks
func (s *State) RemoveChunk(stream *ConfiguredStream, chunk Chunk) int {
	ss := s.fetchStream(stream, false)
	if ss == nil {
		return -1
	}

	stored, found := ss.State.Load(ChunksKey)
	if !found {
		return -1
	}

	chunks := stored.(*Set[Chunk])
	chunks.Remove(chunk)
	ss.State.Store(ChunksKey, chunks)

	LogState(s)
	return chunks.Len()
}

func (s *State) HasCompletedBackfill(stream *ConfiguredStream) bool {
	chunks := s.GetChunks(stream)
	return chunks != nil && chunks.Len() == 0
}

// MarshalJSON serializes only streams that actually hold a value
func (s *State) MarshalJSON() ([]byte, error) {
	populated := []*StreamState{}
	for _, ss := range s.Streams {
		if ss.HoldsValue.Load() {
			populated = append(populated, ss)
		}
	}

	type Alias State
	return json.Marshal(&struct {
		*Alias
		Streams []*StreamState `json:"streams"`
	}{
		Alias:   (*Alias)(s),
		Streams: populated,
	})
}

func (s *State) UnmarshalJSON(data []byte) error {
	type Alias State
	aux := &struct {
		*Alias
	}{
		Alias: (*Alias)(s),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if s.RWMutex == nil {
		s.RWMutex = &sync.RWMutex{}
	}
	if s.Streams == nil {
		s.Streams = []*StreamState{}
	}

	return nil
}

func (s *StreamState) MarshalJSON() ([]byte, error) {
	stateMap := make(map[string]any)
	s.State.Range(func(key, value any) bool {
		stateMap[key.(string)] = value
		return true
	})

	type Alias StreamState
	return json.Marshal(&struct {
		*Alias
		State map[string]any `json:"state"`
	}{
		Alias: (*Alias)(s),
		State: stateMap,
	})
}

func (s *StreamState) UnmarshalJSON(data []byte) error {
	type Alias StreamState
	aux := &struct {
		*Alias
		State map[string]any `json:"state"`
	}{
		Alias: (*Alias)(s),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	for key, value := range aux.State {
		// chunks need their concrete set type restored
		if key == ChunksKey {
			rawChunks, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("failed to remarshal chunks: %s", err)
			}
			chunks := NewSet[Chunk]()
			if err := json.Unmarshal(rawChunks, chunks); err != nil {
				return fmt.Errorf("failed to parse chunks: %s", err)
			}
			s.State.Store(key, chunks)
			continue
		}
		s.State.Store(key, value)
	}

	if len(aux.State) > 0 {
		s.HoldsValue.Store(true)
	}

	return nil
}

// LogState emits the state message on stdout and persists it for resume
func LogState(state *State) {
	state.RLock()
	defer state.RUnlock()

	logger.Emit(Message{
		Type:  StateMessage,
		State: state,
	})

	if err := logger.FileLoggerPath(state, viper.GetString(constants.StatePath)); err != nil {
		logger.Fatalf("failed to write state file: %s", err)
	}
}
