package realtime

import (
	"sync"
)

// SubscriptionIndex looks subscriptions up by job id. Subscriptions without
// a job id are kept under the empty key and match every receipt.
type SubscriptionIndex struct {
	byJob map[string]map[string]*Subscription
	mu    sync.RWMutex
}

// NewSubscriptionIndex creates a new subscription index.
func NewSubscriptionIndex() *SubscriptionIndex {
	return &SubscriptionIndex{
		byJob: make(map[string]map[string]*Subscription),
	}
}

// Add indexes a subscription.
func (idx *SubscriptionIndex) Add(sub *Subscription) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.byJob[sub.JobID] == nil {
		idx.byJob[sub.JobID] = make(map[string]*Subscription)
	}
	idx.byJob[sub.JobID][sub.ID] = sub
}

// Remove removes a subscription from the index.
func (idx *SubscriptionIndex) Remove(sub *Subscription) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if subs, ok := idx.byJob[sub.JobID]; ok {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(idx.byJob, sub.JobID)
		}
	}
}

// GetCandidates returns the subscriptions for jobID plus the wildcard ones.
func (idx *SubscriptionIndex) GetCandidates(jobID string) []*Subscription {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := make([]*Subscription, 0, len(idx.byJob[jobID])+len(idx.byJob[""]))
	for _, sub := range idx.byJob[jobID] {
		result = append(result, sub)
	}
	if jobID != "" {
		for _, sub := range idx.byJob[""] {
			result = append(result, sub)
		}
	}
	return result
}

// Count returns the total number of indexed subscriptions.
func (idx *SubscriptionIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	count := 0
	for _, subs := range idx.byJob {
		count += len(subs)
	}
	return count
}
