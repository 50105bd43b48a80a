package mqttclient

import "testing"

func noopHandler(*Client, *Message) {}

func TestSubscriptionInstallDeduplicates(t *testing.T) {
	var table subscriptionTable

	first := &subscription{filter: "a/b", qos: AtLeastOnce, handler: noopHandler}
	table.install(first)
	table.install(&subscription{filter: "a/b", qos: ExactlyOnce, handler: noopHandler})

	if len(table.entries) != 1 {
		t.Fatalf("expected 1 entry after duplicate install, got %d", len(table.entries))
	}
	if table.entries[0] != first {
		t.Error("duplicate install should keep the existing entry")
	}

	// Equality, not matching: "a/+" does not subsume "a/b".
	table.install(&subscription{filter: "a/+", qos: AtMostOnce, handler: noopHandler})
	table.install(&subscription{filter: "a/c", qos: AtMostOnce, handler: noopHandler})
	if len(table.entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(table.entries))
	}
}

func TestSubscriptionFindForInsertionOrder(t *testing.T) {
	var table subscriptionTable

	h1 := &subscription{filter: "a/+/c", qos: AtMostOnce, handler: noopHandler}
	h2 := &subscription{filter: "a/#", qos: AtMostOnce, handler: noopHandler}
	table.install(h1)
	table.install(h2)

	// Both filters match "a/b/c"; the first installed one wins.
	if got := table.findFor("a/b/c"); got != h1 {
		t.Errorf("findFor(a/b/c) = %v, want first-installed a/+/c", got)
	}
	if got := table.findFor("a/b/d"); got != h2 {
		t.Errorf("findFor(a/b/d) = %v, want a/#", got)
	}
	if got := table.findFor("x/y"); got != nil {
		t.Errorf("findFor(x/y) = %v, want nil", got)
	}
}

func TestSubscriptionRemove(t *testing.T) {
	var table subscriptionTable

	table.install(&subscription{filter: "a", handler: noopHandler})
	table.install(&subscription{filter: "b", handler: noopHandler})

	if got := table.remove("a"); got == nil || got.filter != "a" {
		t.Fatalf("remove(a) = %v", got)
	}
	if got := table.remove("a"); got != nil {
		t.Errorf("second remove(a) = %v, want nil", got)
	}
	if len(table.entries) != 1 || table.entries[0].filter != "b" {
		t.Errorf("unexpected entries after removal: %v", table.entries)
	}

	// Removal is byte-equal, never wildcard.
	table.install(&subscription{filter: "b/c", handler: noopHandler})
	if got := table.remove("b/+"); got != nil {
		t.Errorf("remove(b/+) = %v, want nil", got)
	}
}

func TestSubscriptionLookup(t *testing.T) {
	var table subscriptionTable
	table.install(&subscription{filter: "a/+", handler: noopHandler})

	if got := table.lookup("a/+"); got == nil {
		t.Error("lookup(a/+) = nil, want entry")
	}
	if got := table.lookup("a/b"); got != nil {
		t.Errorf("lookup(a/b) = %v, want nil (byte-equality only)", got)
	}
}
