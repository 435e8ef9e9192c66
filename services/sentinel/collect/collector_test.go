// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collect

import "testing"

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(yieldingCollector("newsapi", 0.8, "x")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	if err := r.Register(yieldingCollector("newsapi", 0.9, "y")); err == nil {
		t.Error("duplicate source name should be rejected")
	}
	if err := r.Register(nil); err == nil {
		t.Error("nil collector should be rejected")
	}
	if err := r.Register(yieldingCollector("", 0.8, "x")); err == nil {
		t.Error("empty source name should be rejected")
	}
}

func TestRegistry_AllSortedByName(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"rss", "gdelt", "newsapi"} {
		if err := r.Register(yieldingCollector(name, 0.8, "x")); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	got := r.All()
	want := []string{"gdelt", "newsapi", "rss"}
	if len(got) != len(want) {
		t.Fatalf("All = %d collectors, want %d", len(got), len(want))
	}
	for i, c := range got {
		if c.SourceName() != want[i] {
			t.Errorf("All[%d] = %s, want %s", i, c.SourceName(), want[i])
		}
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(yieldingCollector("gdelt", 0.75, "x"))

	if _, ok := r.Get("gdelt"); !ok {
		t.Error("Get should find registered collector")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get should miss unknown collector")
	}
}
