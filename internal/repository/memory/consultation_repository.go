package memory

import (
	"errors"

	"ai-consult-copilot/pkg/store"

	"github.com/patrickmn/go-cache"
)

var ErrAlreadyRegistered = errors.New("consultation already registered for patient")

// ConsultationRepository is the registry of live consultations keyed by
// patient id. Entries never expire; they are removed on stop.
type ConsultationRepository struct {
	cache *cache.Cache
}

func NewConsultationRepository() *ConsultationRepository {
	return &ConsultationRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

// Add registers c unless the patient already has a live consultation.
func (r *ConsultationRepository) Add(c *store.Consultation) error {
	if err := r.cache.Add(c.PatientID, c, cache.NoExpiration); err != nil {
		return ErrAlreadyRegistered
	}
	return nil
}

func (r *ConsultationRepository) Get(patientID string) (*store.Consultation, bool) {
	if x, found := r.cache.Get(patientID); found {
		return x.(*store.Consultation), true
	}
	return nil, false
}

// Remove deletes the entry only if it still belongs to c, so a stale stop
// cannot evict a newer consultation.
func (r *ConsultationRepository) Remove(c *store.Consultation) {
	if cur, ok := r.Get(c.PatientID); ok && cur == c {
		r.cache.Delete(c.PatientID)
	}
}

func (r *ConsultationRepository) List() []*store.Consultation {
	items := r.cache.Items()
	out := make([]*store.Consultation, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(*store.Consultation))
	}
	return out
}
