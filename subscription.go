package mqttclient

// subscription is one installed entry of the subscription table.
type subscription struct {
	filter  string
	qos     QoS
	handler MessageHandler
}

// subscriptionTable is the set of installed subscriptions. Entries keep
// insertion order so that first-match dispatching is deterministic. All
// methods must be called with the client's global lock held.
type subscriptionTable struct {
	entries []*subscription
}

// install adds s to the table. If a subscription with a byte-equal filter is
// already installed, the new entry is dropped and the existing one stays:
// the broker treats a repeated SUBSCRIBE for the same filter as a
// replacement, and the first handler keeps serving it locally. The check
// uses equality, not wildcard matching; "a/+" does not subsume "a/b".
func (t *subscriptionTable) install(s *subscription) {
	for _, e := range t.entries {
		if topicEquals(e.filter, s.filter) {
			return
		}
	}
	t.entries = append(t.entries, s)
}

// remove deletes the entry whose filter is byte-equal to filter and returns
// it, or nil when absent.
func (t *subscriptionTable) remove(filter string) *subscription {
	for i, e := range t.entries {
		if topicEquals(e.filter, filter) {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return e
		}
	}
	return nil
}

// lookup returns the entry whose filter is byte-equal to filter, or nil.
func (t *subscriptionTable) lookup(filter string) *subscription {
	for _, e := range t.entries {
		if topicEquals(e.filter, filter) {
			return e
		}
	}
	return nil
}

// findFor returns the first installed subscription whose filter matches the
// concrete topic name, scanning in insertion order.
func (t *subscriptionTable) findFor(topic string) *subscription {
	for _, e := range t.entries {
		if topicEquals(e.filter, topic) || topicMatches(e.filter, topic) {
			return e
		}
	}
	return nil
}

// all returns a snapshot of the entries for iteration outside the lock.
func (t *subscriptionTable) all() []*subscription {
	out := make([]*subscription, len(t.entries))
	copy(out, t.entries)
	return out
}

// clear drops every entry.
func (t *subscriptionTable) clear() {
	t.entries = nil
}
