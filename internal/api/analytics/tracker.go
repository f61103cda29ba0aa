package analytics

import (
	"strconv"
	"sync"

	"github.com/dukex/mixpanel"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/savaki/amplitude-go"
)

const (
	EventSignedUp            = "signed_up"
	EventSubscriptionStarted = "subscription_started"
	EventSubscriptionChanged = "subscription_changed"
	EventTenantSuspended     = "tenant_suspended"
	EventTenantReactivated   = "tenant_reactivated"
)

type Tracker interface {
	Track(tenantID uint, event string, props map[string]interface{})
}

type NopTracker struct{}

func (NopTracker) Track(uint, string, map[string]interface{}) {}

type amplitudeMixpanelTracker struct {
	amplitude *amplitude.Client
	mixpanel  mixpanel.Mixpanel
	log       logutil.Log
}

// NewTracker uses only the services with configured api keys.
func NewTracker(cfg config.Config, log logutil.Log) Tracker {
	t := amplitudeMixpanelTracker{log: log}
	if key := cfg.GetString("AMPLITUDE_API_KEY"); key != "" {
		t.amplitude = amplitude.New(key)
	}
	if key := cfg.GetString("MIXPANEL_API_KEY"); key != "" {
		t.mixpanel = mixpanel.New(key, "")
	}

	if t.amplitude == nil && t.mixpanel == nil {
		return NopTracker{}
	}
	return t
}

func (t amplitudeMixpanelTracker) Track(tenantID uint, event string, props map[string]interface{}) {
	distinctID := strconv.Itoa(int(tenantID))

	if t.amplitude != nil {
		t.amplitude.Publish(amplitude.Event{
			UserId:          distinctID,
			EventType:       event,
			EventProperties: props,
		})
	}

	if t.mixpanel != nil {
		const ip = "0" // don't auto-detect
		err := t.mixpanel.Track(distinctID, event, &mixpanel.Event{
			IP:         ip,
			Properties: props,
		})
		if err != nil {
			t.log.Warnf("Can't track %s in mixpanel: %s", event, err)
		}
	}
}

type TrackedEvent struct {
	TenantID uint
	Name     string
	Props    map[string]interface{}
}

// MemoryTracker keeps tracked events for tests.
type MemoryTracker struct {
	mu     sync.Mutex
	events []TrackedEvent
}

func (t *MemoryTracker) Track(tenantID uint, event string, props map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, TrackedEvent{TenantID: tenantID, Name: event, Props: props})
}

func (t *MemoryTracker) Events() []TrackedEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TrackedEvent(nil), t.events...)
}

func (t *MemoryTracker) Has(tenantID uint, event string) bool {
	for _, e := range t.Events() {
		if e.TenantID == tenantID && e.Name == event {
			return true
		}
	}
	return false
}
