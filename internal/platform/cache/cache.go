// Package cache holds short-lived read models (recent lists, the active
// medicine list, dashboard stats) and drops them when the data behind them
// changes.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Key names a cached read model.
type Key string

const (
	RecentPrescriptions Key = "recent-prescriptions"
	ActiveMedicines     Key = "active-medicines"
	MedicineList        Key = "medicine-list"
	RecentLabTests      Key = "recent-lab-tests"
	RecentPatients      Key = "recent-patients"
	Stats               Key = "stats"
)

// Event is a write that makes some cached keys stale.
type Event string

const (
	PrescriptionCreated   Event = "prescription-created"
	MedicineChanged       Event = "medicine-changed"
	PatientCreated        Event = "patient-created"
	LabTestChanged        Event = "lab-test-changed"
	ClinicalRecordChanged Event = "clinical-record-changed"
)

// Invalidations lists the keys each event makes stale.
var Invalidations = map[Event][]Key{
	PrescriptionCreated:   {RecentPrescriptions, ActiveMedicines, MedicineList, Stats},
	MedicineChanged:       {ActiveMedicines, MedicineList, Stats},
	PatientCreated:        {RecentPatients, Stats},
	LabTestChanged:        {RecentLabTests, Stats},
	ClinicalRecordChanged: {Stats},
}

const namespace = "hms:cache:"

// Recorder observes cache lookups.
type Recorder interface {
	CacheLookup(key string, hit bool)
}

// Cache wraps a Store with typed keys. A nil *Cache disables caching.
type Cache struct {
	store    Store
	ttl      time.Duration
	logger   zerolog.Logger
	recorder Recorder
}

func New(store Store, ttl time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{store: store, ttl: ttl, logger: logger}
}

// WithRecorder sets the lookup observer and returns c.
func (c *Cache) WithRecorder(r Recorder) *Cache {
	if c != nil {
		c.recorder = r
	}
	return c
}

// storeKey builds the backend key. The trailing colon keeps prefix deletes of
// one key from touching another key that shares its leading characters.
func storeKey(key Key, variant string) string {
	return namespace + string(key) + ":" + variant
}

// GetOrLoad returns the cached value for key and variant, or calls load and
// caches its result. Backend failures are logged and fall through to load.
func GetOrLoad[T any](ctx context.Context, c *Cache, key Key, variant string, load func(context.Context) (T, error)) (T, error) {
	if c == nil || c.store == nil {
		return load(ctx)
	}

	sk := storeKey(key, variant)
	data, ok, err := c.store.Get(ctx, sk)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", sk).Msg("cache read failed")
	}
	if ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			c.record(key, true)
			return v, nil
		}
		c.logger.Warn().Str("key", sk).Msg("discarding undecodable cache entry")
	}
	c.record(key, false)

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	if data, err := json.Marshal(v); err != nil {
		c.logger.Warn().Err(err).Str("key", sk).Msg("cache encode failed")
	} else if err := c.store.Set(ctx, sk, data, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", sk).Msg("cache write failed")
	}
	return v, nil
}

// Invalidate drops every key the event makes stale. It never fails the
// caller; backend errors are logged.
func (c *Cache) Invalidate(ctx context.Context, event Event) {
	if c == nil || c.store == nil {
		return
	}
	for _, key := range Invalidations[event] {
		if err := c.store.DeletePrefix(ctx, namespace+string(key)+":"); err != nil {
			c.logger.Warn().Err(err).Str("event", string(event)).Str("key", string(key)).Msg("cache invalidation failed")
		}
	}
}

func (c *Cache) record(key Key, hit bool) {
	if c.recorder != nil {
		c.recorder.CacheLookup(string(key), hit)
	}
}
