package merge

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

func TestTouchedFileSetDrain(t *testing.T) {
	set := NewTouchedFileSet(4)

	var wg sync.WaitGroup
	files := [][]string{
		{"f3", "f1"},
		{"f1", "f2"},
		{},
		{"f2", "f2", "f4"},
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			shard := set.Shard(w)
			for _, id := range files[w] {
				shard.Add(id)
			}
		}(w)
	}
	wg.Wait()

	got, err := set.Drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	want := []string{"f1", "f2", "f3", "f4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("drained %v, want %v", got, want)
	}
}

func TestTouchedFileSetDrainOnce(t *testing.T) {
	set := NewTouchedFileSet(1)
	set.Shard(0).Add("f1")

	if _, err := set.Drain(); err != nil {
		t.Fatalf("first drain: %v", err)
	}
	if _, err := set.Drain(); !errors.Is(err, ErrAlreadyDrained) {
		t.Fatalf("second drain: expected ErrAlreadyDrained, got %v", err)
	}
}

func TestTouchedFileSetEmpty(t *testing.T) {
	set := NewTouchedFileSet(2)
	got, err := set.Drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty drain, got %v", got)
	}
}
