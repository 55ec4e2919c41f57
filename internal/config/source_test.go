package config

import (
	"reflect"
	"testing"
)

func TestLayered_LaterWins(t *testing.T) {
	src := Layered{
		MapSource{"queue": "default", "cnvkit_mem": "4"},
		nil,
		MapSource{"queue": "highmem"},
	}

	if v, ok := src.Lookup("queue"); !ok || v != "highmem" {
		t.Errorf("Lookup(queue) = %q, %v; want highmem, true", v, ok)
	}
	if v, ok := src.Lookup("cnvkit_mem"); !ok || v != "4" {
		t.Errorf("Lookup(cnvkit_mem) = %q, %v; want 4, true", v, ok)
	}
	if _, ok := src.Lookup("absent"); ok {
		t.Error("Lookup(absent) ok = true, want false")
	}
}

func TestParseOverrides(t *testing.T) {
	got, err := ParseOverrides([]string{"queue=highmem", "cnvkit_mem = 8", "empty="})
	if err != nil {
		t.Fatalf("ParseOverrides() error = %v", err)
	}
	want := MapSource{"queue": "highmem", "cnvkit_mem": " 8", "empty": ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseOverrides() = %v, want %v", got, want)
	}

	for _, bad := range []string{"noequals", "=value"} {
		if _, err := ParseOverrides([]string{bad}); err == nil {
			t.Errorf("ParseOverrides(%q) error = nil, want error", bad)
		}
	}
}

func TestMapSource_Keys(t *testing.T) {
	m := MapSource{"b": "1", "a": "2", "c": "3"}
	if got, want := m.Keys(), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}
