package nurse

import (
	"context"
	"errors"
	"testing"
)

func TestCheckAllReportsFailingCheckers(t *testing.T) {
	n := New()
	n.Register("rowstore", func(context.Context) error { return nil })
	n.Register("pubsub", func(context.Context) error { return errors.New("unreachable") })

	failures := n.CheckAll(context.Background())
	if len(failures) != 1 {
		t.Fatalf("expected exactly one failing checker, got %d", len(failures))
	}
	if _, ok := failures["pubsub"]; !ok {
		t.Fatalf("expected pubsub checker to be reported as failing, got %v", failures)
	}
}

func TestSamplePopulatesLatest(t *testing.T) {
	n := New()
	if _, err := n.Sample(context.Background()); err != nil {
		t.Fatalf("sample: %v", err)
	}
	if n.Latest().SampledAt.IsZero() {
		t.Fatal("expected Latest to reflect the sample just taken")
	}
}
