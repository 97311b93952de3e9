package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/Lllllllleong/damageanalysisflow/internal/models"
)

// In-memory fakes for the capability interfaces.

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	readErr error
	// skipped records WriteIfAbsent calls that found the object already
	// present and therefore wrote nothing.
	skipped []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func objectKey(bucket, object string) string { return bucket + "/" + object }

func (s *fakeObjectStore) put(bucket, object string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey(bucket, object)] = data
}

func (s *fakeObjectStore) get(bucket, object string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectKey(bucket, object)]
	return data, ok
}

func (s *fakeObjectStore) Read(_ context.Context, bucket, object string) ([]byte, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	data, ok := s.get(bucket, object)
	if !ok {
		return nil, fmt.Errorf("object gs://%s/%s not found", bucket, object)
	}
	return data, nil
}

func (s *fakeObjectStore) Write(_ context.Context, bucket, object string, data []byte, _ string) error {
	s.put(bucket, object, data)
	return nil
}

func (s *fakeObjectStore) WriteIfAbsent(_ context.Context, bucket, object string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := objectKey(bucket, object)
	if _, exists := s.objects[key]; exists {
		s.skipped = append(s.skipped, key)
		return nil
	}
	s.objects[key] = data
	return nil
}

type fakeLauncher struct {
	arguments []string
	err       error
}

func (l *fakeLauncher) Launch(_ context.Context, argument string) error {
	if l.err != nil {
		return l.err
	}
	l.arguments = append(l.arguments, argument)
	return nil
}

type fakeAnalyst struct {
	text  string
	err   error
	calls int
}

func (a *fakeAnalyst) Analyze(_ context.Context, _ []byte, _ string) (string, error) {
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	return a.text, nil
}

type fakeRouter struct {
	output string
	err    error
	calls  int
}

func (r *fakeRouter) Decide(_ context.Context, _ []byte, _ string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.output, nil
}

type fakeCorrelationStore struct {
	records map[string]*models.CorrelationRecord
	putErr  error
}

func newFakeCorrelationStore() *fakeCorrelationStore {
	return &fakeCorrelationStore{records: make(map[string]*models.CorrelationRecord)}
}

func (s *fakeCorrelationStore) Put(_ context.Context, rec *models.CorrelationRecord) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.records[rec.Token] = rec
	return nil
}

func (s *fakeCorrelationStore) Get(_ context.Context, token string) (*models.CorrelationRecord, error) {
	rec, ok := s.records[token]
	if !ok {
		return nil, fmt.Errorf("correlation record %s not found", token)
	}
	return rec, nil
}

type fakeRoutingStore struct {
	// writes holds one slice per WriteRecords call, keyed nowhere: order is
	// call order.
	writes [][]models.RoutingRecord
	err    error
}

func (s *fakeRoutingStore) WriteRecords(_ context.Context, records []models.RoutingRecord) error {
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, records)
	return nil
}
