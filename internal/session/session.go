// Package session keeps the stage outputs of in-flight and finished runs in
// memory. Nothing here outlives the process; deleting a session resets it.
package session

import (
	"sort"
	"sync"
	"time"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
)

// Session holds every stage output of one run. Setting an upstream output
// clears the outputs derived from it.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu             sync.RWMutex
	metadata       *model.DatasetMetadata
	normalization  *model.NormalizationResult
	evaluation     *model.EvaluationReport
	partition      *model.PartitionResult
	interpretation []model.ClusterInterpretation
	geometry       *model.GeoTable
	merge          *model.MergeReport
	mapArtifact    *model.MapArtifact
	exports        []model.ExportResult
}

func newSession(id string) *Session {
	return &Session{ID: id, CreatedAt: time.Now()}
}

// SetNormalization stores the ingest metadata and normalizer output.
func (s *Session) SetNormalization(meta *model.DatasetMetadata, norm *model.NormalizationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata, s.normalization = meta, norm
	s.evaluation, s.partition, s.interpretation = nil, nil, nil
	s.merge, s.mapArtifact = nil, nil
}

func (s *Session) SetEvaluation(r *model.EvaluationReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluation = r
}

// SetPartition stores the final partition and clears interpretation, merge
// and map outputs.
func (s *Session) SetPartition(p *model.PartitionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partition = p
	s.interpretation, s.merge, s.mapArtifact = nil, nil, nil
}

func (s *Session) SetInterpretation(in []model.ClusterInterpretation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interpretation = in
}

func (s *Session) SetGeometry(g *model.GeoTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geometry = g
	s.merge, s.mapArtifact = nil, nil
}

func (s *Session) SetMerge(m *model.MergeReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merge = m
	s.mapArtifact = nil
}

func (s *Session) SetMap(a *model.MapArtifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapArtifact = a
}

// AddExport appends an artifact record.
func (s *Session) AddExport(r model.ExportResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports = append(s.exports, r)
}

// ------------------- Guarded reads -------------------

func (s *Session) Metadata() (*model.DatasetMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.metadata == nil {
		return nil, apperrors.Precondition("data has not been processed")
	}
	return s.metadata, nil
}

func (s *Session) Normalization() (*model.NormalizationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.normalization == nil {
		return nil, apperrors.Precondition("data has not been processed")
	}
	return s.normalization, nil
}

func (s *Session) Evaluation() (*model.EvaluationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.evaluation == nil {
		return nil, apperrors.Precondition("evaluation has not run")
	}
	return s.evaluation, nil
}

func (s *Session) Partition() (*model.PartitionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.partition == nil {
		return nil, apperrors.Precondition("clustering has not run")
	}
	return s.partition, nil
}

func (s *Session) Interpretation() ([]model.ClusterInterpretation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.interpretation == nil {
		return nil, apperrors.Precondition("clusters have not been interpreted")
	}
	return s.interpretation, nil
}

func (s *Session) Geometry() (*model.GeoTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.geometry == nil {
		return nil, apperrors.Precondition("no geometry source loaded")
	}
	return s.geometry, nil
}

func (s *Session) Merge() (*model.MergeReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.merge == nil {
		return nil, apperrors.Precondition("geo merge has not run")
	}
	return s.merge, nil
}

func (s *Session) Map() (*model.MapArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.mapArtifact == nil {
		return nil, apperrors.Precondition("map has not been rendered")
	}
	return s.mapArtifact, nil
}

// Exports returns a copy of the artifact records.
func (s *Session) Exports() []model.ExportResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ExportResult(nil), s.exports...)
}

// ------------------- Registry -------------------

// Registry maps run ids to sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create starts a fresh session for id, replacing any existing one.
func (r *Registry) Create(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := newSession(id)
	r.sessions[id] = s
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("session %s not found", id)
	}
	return s, nil
}

// Delete drops the session and reports whether it existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// IDs returns the session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
