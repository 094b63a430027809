package kb

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/latency-globe/model"
)

func TestReplaceAndGet(t *testing.T) {
	store := NewCatalog(model.DefaultPalette())
	if err := store.Replace(model.SamplePoints()); err != nil {
		t.Fatalf("Replace error: %v", err)
	}
	if store.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", store.Len())
	}
	got, ok := store.Get("Bitfinex")
	if !ok || got.Region != "us-east-1" {
		t.Fatalf("Get(Bitfinex) = %#v, %v", got, ok)
	}
	if _, ok := store.Get("missing"); ok {
		t.Fatalf("Get(missing) reported found")
	}
}

func TestReplaceRejectsDuplicates(t *testing.T) {
	store := NewCatalog(nil)
	if err := store.Replace([]model.Point{{ID: "a"}}); err != nil {
		t.Fatalf("first Replace error: %v", err)
	}
	err := store.Replace([]model.Point{{ID: "x"}, {ID: "x"}})
	if !errors.Is(err, model.ErrDuplicatePointID) {
		t.Fatalf("Replace err = %v, want ErrDuplicatePointID", err)
	}
	if pts := store.Points(); len(pts) != 1 || pts[0].ID != "a" {
		t.Fatalf("failed Replace modified the catalog: %v", pts)
	}
}

func TestReplaceRejectsUnknownCategory(t *testing.T) {
	store := NewCatalog(model.DefaultPalette())
	err := store.Replace([]model.Point{{ID: "a", Category: "Oracle"}})
	if !errors.Is(err, model.ErrUnknownCategory) {
		t.Fatalf("Replace err = %v, want ErrUnknownCategory", err)
	}
}

func TestPointsReturnsCopy(t *testing.T) {
	store := NewCatalog(nil)
	in := []model.Point{{ID: "a"}, {ID: "b"}}
	if err := store.Replace(in); err != nil {
		t.Fatalf("Replace error: %v", err)
	}
	in[0].ID = "mutated"
	out := store.Points()
	out[1].ID = "mutated"
	if pts := store.Points(); pts[0].ID != "a" || pts[1].ID != "b" {
		t.Fatalf("catalog aliased caller slices: %v", pts)
	}
}

func TestFilteredPreservesOrder(t *testing.T) {
	store := NewCatalog(model.DefaultPalette())
	if err := store.Replace(model.SamplePoints()); err != nil {
		t.Fatalf("Replace error: %v", err)
	}
	aws := store.Filtered(model.Filter(model.CategoryAWS))
	want := []string{"Binance", "OKX", "Bybit", "Bitfinex", "Huobi"}
	if len(aws) != len(want) {
		t.Fatalf("Filtered(AWS) = %d points, want %d", len(aws), len(want))
	}
	for i, p := range aws {
		if p.ID != want[i] {
			t.Fatalf("Filtered(AWS)[%d] = %q, want %q", i, p.ID, want[i])
		}
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	store := NewCatalog(nil)
	var first, second []Event
	unsubFirst := store.Subscribe(func(e Event) { first = append(first, e) })
	store.Subscribe(func(e Event) { second = append(second, e) })

	if err := store.Replace([]model.Point{{ID: "a"}}); err != nil {
		t.Fatalf("Replace error: %v", err)
	}
	unsubFirst()
	unsubFirst()
	if err := store.Replace([]model.Point{{ID: "b"}, {ID: "c"}}); err != nil {
		t.Fatalf("Replace error: %v", err)
	}

	if len(first) != 1 || first[0].Type != EventPointsReplaced {
		t.Fatalf("first subscriber got %d events", len(first))
	}
	if len(second) != 2 || len(second[1].Points) != 2 {
		t.Fatalf("second subscriber got %+v", second)
	}
	second[1].Points[0].ID = "mutated"
	if p, _ := store.Get("b"); p.ID != "b" {
		t.Fatalf("event payload aliased catalog state")
	}
}

func TestConcurrentReaders(t *testing.T) {
	store := NewCatalog(nil)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Replace([]model.Point{{ID: fmt.Sprintf("p-%d", i)}})
			_ = store.Points()
			_ = store.Len()
		}(i)
	}
	wg.Wait()
	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
}
