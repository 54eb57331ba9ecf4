package m2mstub

import (
	"sort"
	"sync"
	"time"

	"github.com/ooi-datateam/ingestctl/pkg/model"
)

// memoryStore holds the stub's ingest requests and annotations.
type memoryStore struct {
	mu          sync.Mutex
	requests    map[int64]*model.IngestRequestRecord
	counts      map[int64]model.JobCounts
	annotations map[int64]model.AnnotationRecord
	purges      []model.PurgeRequest
	nextID      int64
	nextAnnoID  int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		requests:    make(map[int64]*model.IngestRequestRecord),
		counts:      make(map[int64]model.JobCounts),
		annotations: make(map[int64]model.AnnotationRecord),
		nextID:      1,
		nextAnnoID:  1,
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func (s *memoryStore) seed(records []model.IngestRequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		rec := rec
		if rec.ID == 0 {
			rec.ID = s.nextID
		}
		if rec.ID >= s.nextID {
			s.nextID = rec.ID + 1
		}
		if rec.Status == "" {
			rec.Status = "ACTIVE"
		}
		s.requests[rec.ID] = &rec
	}
}

func (s *memoryStore) list() []model.IngestRequestRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.IngestRequestRecord, 0, len(s.requests))
	for _, rec := range s.requests {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryStore) get(id int64) (model.IngestRequestRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.requests[id]
	if !ok {
		return model.IngestRequestRecord{}, false
	}
	return *rec, true
}

func (s *memoryStore) create(req *model.IngestRequest) model.IngestRequestRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	now := nowMillis()
	rec := &model.IngestRequestRecord{
		ID:           id,
		Username:     req.Username,
		State:        req.State,
		Status:       "PENDING",
		Type:         req.Type,
		Priority:     req.Priority,
		EntryDate:    now,
		ModifiedDate: now,
	}
	for _, fm := range req.FileMasks {
		rec.FileMasks = append(rec.FileMasks, model.FileMaskRecord{
			ParserDriver: fm.ParserDriver,
			FileMask:     fm.FileMask,
			DataSource:   fm.DataSource,
			Deployment:   fm.Deployment,
			RefDes:       splitRefDes(fm.RefDes),
		})
	}
	s.requests[id] = rec
	s.counts[id] = model.JobCounts{"PENDING": len(rec.FileMasks)}
	return *rec
}

func (s *memoryStore) changeState(id int64, state model.JobState) (model.IngestRequestRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.requests[id]
	if !ok {
		return model.IngestRequestRecord{}, false
	}
	rec.State = state
	rec.ModifiedDate = nowMillis()
	return *rec, true
}

func (s *memoryStore) jobCounts(id int64) (model.JobCounts, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return nil, false
	}
	out := model.JobCounts{}
	for k, v := range s.counts[id] {
		out[k] = v
	}
	return out, true
}

func (s *memoryStore) setJobCounts(id int64, counts model.JobCounts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[id] = counts
}

func (s *memoryStore) purge(req model.PurgeRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purges = append(s.purges, req)
}

func (s *memoryStore) purgeList() []model.PurgeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PurgeRequest(nil), s.purges...)
}

func (s *memoryStore) createAnnotation(rec model.AnnotationRecord) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextAnnoID
	s.nextAnnoID++
	rec.ID = &id
	s.annotations[id] = rec
	return id
}

func (s *memoryStore) updateAnnotation(id int64, rec model.AnnotationRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.annotations[id]; !ok {
		return false
	}
	rec.ID = &id
	s.annotations[id] = rec
	return true
}

func (s *memoryStore) seedAnnotation(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotations[id] = model.AnnotationRecord{ID: &id, Class: model.AnnotationClass}
	if id >= s.nextAnnoID {
		s.nextAnnoID = id + 1
	}
}

func (s *memoryStore) annotation(id int64) (model.AnnotationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.annotations[id]
	return rec, ok
}
