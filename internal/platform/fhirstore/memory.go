// Package fhirstore holds the local FHIR resource stores: an in-memory store
// for tests and tooling, and a PostgreSQL mirror for offline staging.
package fhirstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miabis/miabis/internal/platform/fhir"
)

type memoryEntry struct {
	resource map[string]interface{}
	version  int
	seq      int
}

// Memory is a mutex-guarded ResourceStore keeping deep copies of resources.
// Search returns matches in creation order.
type Memory struct {
	mu        sync.RWMutex
	resources map[string]map[string]*memoryEntry
	seq       int
}

func NewMemory() *Memory {
	return &Memory{resources: make(map[string]map[string]*memoryEntry)}
}

func (m *Memory) Create(_ context.Context, resourceType string, resource map[string]interface{}) (string, error) {
	copied, err := clone(resource)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	stamp(copied, resourceType, id, 1)
	if m.resources[resourceType] == nil {
		m.resources[resourceType] = make(map[string]*memoryEntry)
	}
	m.resources[resourceType][id] = &memoryEntry{resource: copied, version: 1, seq: m.seq}
	return id, nil
}

func (m *Memory) Read(_ context.Context, resourceType, id string) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.resources[resourceType][id]
	if !ok {
		return nil, notFound(resourceType, id)
	}
	return clone(e.resource)
}

func (m *Memory) Update(_ context.Context, resourceType, id string, resource map[string]interface{}) error {
	copied, err := clone(resource)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.resources[resourceType][id]
	if !ok {
		return notFound(resourceType, id)
	}
	e.version++
	stamp(copied, resourceType, id, e.version)
	e.resource = copied
	return nil
}

func (m *Memory) Delete(_ context.Context, resourceType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[resourceType][id]; !ok {
		return notFound(resourceType, id)
	}
	delete(m.resources[resourceType], id)
	return nil
}

func (m *Memory) Search(_ context.Context, resourceType string, params url.Values) ([]map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*memoryEntry
	for _, e := range m.resources[resourceType] {
		if fhir.MatchesSearch(e.resource, params) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		r, err := clone(e.resource)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Count returns the number of stored resources of resourceType.
func (m *Memory) Count(resourceType string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.resources[resourceType])
}

func notFound(resourceType, id string) error {
	return fmt.Errorf("%s/%s: %w", resourceType, id, fhir.ErrResourceNotFound)
}

// stamp sets the server-managed fields of a stored resource.
func stamp(resource map[string]interface{}, resourceType, id string, version int) {
	resource["resourceType"] = resourceType
	resource["id"] = id
	meta, _ := resource["meta"].(map[string]interface{})
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["versionId"] = fmt.Sprint(version)
	meta["lastUpdated"] = time.Now().UTC().Format(time.RFC3339Nano)
	resource["meta"] = meta
}

func clone(resource map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(resource)
	if err != nil {
		return nil, fmt.Errorf("encode resource: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}
	return out, nil
}
