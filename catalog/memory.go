package catalog

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used for local runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	advertisers map[string]Advertiser
	plans       map[string]Plan
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		advertisers: make(map[string]Advertiser),
		plans:       make(map[string]Plan),
	}
}

func (m *MemoryStore) ListAdvertisers(_ context.Context, tenantID string) ([]Advertiser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Advertiser
	for _, a := range m.advertisers {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetAdvertiser(_ context.Context, tenantID, id string) (Advertiser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.advertisers[id]
	if !ok || a.TenantID != tenantID {
		return Advertiser{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryStore) SaveAdvertiser(_ context.Context, a Advertiser) (Advertiser, error) {
	if err := a.validate(); err != nil {
		return Advertiser{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if a.ID == "" {
		a.ID = uuid.NewString()
		a.CreatedAt = now
	} else {
		prev, ok := m.advertisers[a.ID]
		if !ok || prev.TenantID != a.TenantID {
			return Advertiser{}, ErrNotFound
		}
		a.CreatedAt = prev.CreatedAt
	}
	a.NGWords = slices.Clone(a.NGWords)
	a.UpdatedAt = now
	m.advertisers[a.ID] = a
	return a, nil
}

// DeleteAdvertiser 同时删除该广告主下的计划。
func (m *MemoryStore) DeleteAdvertiser(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.advertisers[id]
	if !ok || a.TenantID != tenantID {
		return ErrNotFound
	}
	delete(m.advertisers, id)
	for pid, p := range m.plans {
		if p.AdvertiserID == id {
			delete(m.plans, pid)
		}
	}
	return nil
}

func (m *MemoryStore) ListPlans(_ context.Context, tenantID, advertiserID string) ([]Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Plan
	for _, p := range m.plans {
		if p.TenantID != tenantID {
			continue
		}
		if advertiserID != "" && p.AdvertiserID != advertiserID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemoryStore) GetPlan(_ context.Context, tenantID, id string) (Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plans[id]
	if !ok || p.TenantID != tenantID {
		return Plan{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) SavePlan(_ context.Context, p Plan) (Plan, error) {
	if err := p.validate(); err != nil {
		return Plan{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.advertisers[p.AdvertiserID]; !ok || a.TenantID != p.TenantID {
		return Plan{}, ErrNotFound
	}
	now := time.Now()
	if p.ID == "" {
		p.ID = uuid.NewString()
		p.CreatedAt = now
	} else {
		prev, ok := m.plans[p.ID]
		if !ok || prev.TenantID != p.TenantID {
			return Plan{}, ErrNotFound
		}
		p.CreatedAt = prev.CreatedAt
	}
	p.Channels = slices.Clone(p.Channels)
	p.UpdatedAt = now
	m.plans[p.ID] = p
	return p, nil
}

func (m *MemoryStore) DeletePlan(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plans[id]
	if !ok || p.TenantID != tenantID {
		return ErrNotFound
	}
	delete(m.plans, id)
	return nil
}
