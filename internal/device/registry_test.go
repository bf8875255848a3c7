package device

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

// testDevice builds a generic handle for registry tests.
func testDevice(uuid, name, kind string, caps ...Capability) Handle {
	desc := Descriptor{"uuid": uuid, "devName": name, "deviceType": kind, "onlineStatus": float64(StatusOnline)}
	return newGeneric(uuid, uuid, kind, desc, nil, nil, caps...)
}

func ids(handles []Handle) []string {
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.ID())
	}
	sort.Strings(out)
	return out
}

func TestRegistry_InsertIfAbsent(t *testing.T) {
	registry := NewRegistry()
	first := testDevice("uuid-1", "Lamp", "mss310")
	second := testDevice("uuid-1", "Lamp copy", "mss310")

	stored, inserted := registry.InsertIfAbsent("uuid-1", first)
	if !inserted {
		t.Fatal("first InsertIfAbsent() inserted = false, want true")
	}
	if stored != first {
		t.Error("first InsertIfAbsent() did not return the inserted handle")
	}

	stored, inserted = registry.InsertIfAbsent("uuid-1", second)
	if inserted {
		t.Error("second InsertIfAbsent() inserted = true, want false")
	}
	if stored != first {
		t.Error("second InsertIfAbsent() did not return the canonical handle")
	}
	if registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1", registry.Count())
	}
}

func TestRegistry_InsertIfAbsentConcurrent(t *testing.T) {
	registry := NewRegistry()

	const workers = 32
	var wg sync.WaitGroup
	results := make([]bool, workers)
	stored := make([]Handle, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored[i], results[i] = registry.InsertIfAbsent("shared", testDevice("shared", "Shared", "mss310"))
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := range results {
		if results[i] {
			winners++
		}
		if stored[i] != stored[0] {
			t.Errorf("worker %d saw a different canonical handle", i)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

func TestRegistry_Get(t *testing.T) {
	registry := NewRegistry()
	registry.InsertIfAbsent("uuid-1", testDevice("uuid-1", "Lamp", "mss310"))

	t.Run("returns stored handle", func(t *testing.T) {
		h, ok := registry.Get("uuid-1")
		if !ok {
			t.Fatal("Get() ok = false, want true")
		}
		if h.Name() != "Lamp" {
			t.Errorf("Name() = %q, want %q", h.Name(), "Lamp")
		}
	})

	t.Run("miss", func(t *testing.T) {
		if _, ok := registry.Get("nonexistent"); ok {
			t.Error("Get() ok = true, want false")
		}
	})
}

func TestRegistry_GetByName(t *testing.T) {
	registry := NewRegistry()
	registry.InsertIfAbsent("uuid-1", testDevice("uuid-1", "Kitchen", "mss310"))

	tests := []struct {
		name   string
		query  string
		wantOK bool
	}{
		{"exact", "Kitchen", true},
		{"lower case", "kitchen", true},
		{"upper case", "KITCHEN", true},
		{"different name", "Bedroom", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := registry.GetByName(tt.query)
			if ok != tt.wantOK {
				t.Fatalf("GetByName(%q) ok = %v, want %v", tt.query, ok, tt.wantOK)
			}
			if ok && h.ID() != "uuid-1" {
				t.Errorf("GetByName(%q) = %q, want uuid-1", tt.query, h.ID())
			}
		})
	}
}

func TestRegistry_AllIsSnapshot(t *testing.T) {
	registry := NewRegistry()
	registry.InsertIfAbsent("a", testDevice("a", "A", "mss310"))

	snapshot := registry.All()
	registry.InsertIfAbsent("b", testDevice("b", "B", "mss310"))

	if len(snapshot) != 1 {
		t.Errorf("snapshot length = %d after later insert, want 1", len(snapshot))
	}
	snapshot[0] = nil
	if h, _ := registry.Get("a"); h == nil {
		t.Error("mutating the snapshot changed the registry")
	}
}

func TestRegistry_ByCapability(t *testing.T) {
	registry := NewRegistry()
	registry.InsertIfAbsent("plug", testDevice("plug", "Plug", "mss310", CapToggle))
	registry.InsertIfAbsent("bulb", testDevice("bulb", "Bulb", "msl120", CapToggle, CapLight))
	registry.InsertIfAbsent("hub", testDevice("hub", "Hub", "msh300", CapHub))

	tests := []struct {
		capability Capability
		want       []string
	}{
		{CapToggle, []string{"bulb", "plug"}},
		{CapLight, []string{"bulb"}},
		{CapHub, []string{"hub"}},
		{CapSensor, []string{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.capability), func(t *testing.T) {
			got := ids(registry.ByCapability(tt.capability))
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("ByCapability(%q) = %v, want %v", tt.capability, got, tt.want)
			}
		})
	}
}

func TestRegistry_ByType(t *testing.T) {
	registry := NewRegistry()
	registry.InsertIfAbsent("a", testDevice("a", "A", "MSS310"))
	registry.InsertIfAbsent("b", testDevice("b", "B", "mss310"))
	registry.InsertIfAbsent("c", testDevice("c", "C", "msl120"))

	got := ids(registry.ByType("mss310"))
	if fmt.Sprint(got) != "[a b]" {
		t.Errorf("ByType(mss310) = %v, want [a b]", got)
	}
}

func TestRegistry_FilterRunsWithoutLock(t *testing.T) {
	registry := NewRegistry()
	registry.InsertIfAbsent("a", testDevice("a", "A", "mss310"))

	// A predicate that writes to the registry would deadlock if the lock were held.
	got := registry.Filter(func(h Handle) bool {
		registry.InsertIfAbsent("from-predicate", testDevice("from-predicate", "P", "mss310"))
		return true
	})

	if len(got) != 1 {
		t.Errorf("Filter() returned %d handles, want 1", len(got))
	}
	if registry.Count() != 2 {
		t.Errorf("Count() = %d, want 2", registry.Count())
	}
}

func TestRegistry_GetStats(t *testing.T) {
	registry := NewRegistry()
	registry.InsertIfAbsent("a", testDevice("a", "A", "mss310", CapToggle))
	registry.InsertIfAbsent("b", testDevice("b", "B", "MSS310", CapToggle))
	registry.InsertIfAbsent("c", testDevice("c", "C", "msh300", CapHub))

	stats := registry.GetStats()

	if stats.TotalDevices != 3 {
		t.Errorf("TotalDevices = %d, want 3", stats.TotalDevices)
	}
	if stats.Online != 3 {
		t.Errorf("Online = %d, want 3", stats.Online)
	}
	if stats.ByType["mss310"] != 2 {
		t.Errorf("ByType[mss310] = %d, want 2", stats.ByType["mss310"])
	}
	if stats.ByCapability[CapHub] != 1 {
		t.Errorf("ByCapability[hub] = %d, want 1", stats.ByCapability[CapHub])
	}
}
