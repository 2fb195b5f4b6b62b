package businessflow

import (
	"fmt"
	"sync"

	"github.com/sellora/engage/models"
)

// keyedMutex serializes work per string key. Used to keep one reconciliation
// in flight per segment and to serialize cooldown-check-then-record per
// (trigger, customer) pair within a batch run.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

func (k *keyedMutex) Lock(key string) {
	k.get(key).Lock()
}

func (k *keyedMutex) Unlock(key string) {
	k.get(key).Unlock()
}

func segmentLockKey(segmentID uint) string {
	return fmt.Sprintf("segment:%d", segmentID)
}

func triggerLockKey(triggerID uint) string {
	return fmt.Sprintf("trigger:%d", triggerID)
}

func pairLockKey(triggerID, customerID uint) string {
	return fmt.Sprintf("trigger:%d:customer:%d", triggerID, customerID)
}

// executionLockKey picks the serialization scope for a
// check-cooldown-then-dispatch section. Non-recurring cooldown and the global
// execution cap are trigger-wide state, so triggers carrying either serialize
// across the whole population; everything else only needs the pair scope.
func executionLockKey(trigger *models.Trigger, customerID uint) string {
	if !trigger.IsRecurring || trigger.MaxExecutions != nil {
		return triggerLockKey(trigger.ID)
	}
	return pairLockKey(trigger.ID, customerID)
}
