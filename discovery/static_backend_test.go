package discovery

import (
	"context"
	"testing"
)

func TestStaticBackendReturnsFixedNodes(t *testing.T) {
	b := StaticBackend{Nodes: []Node{{Name: "a", Addr: "10.0.0.1:9"}, {Name: "b", Addr: "10.0.0.2:9"}}}
	got, err := b.GetNodes(context.Background())
	if err != nil {
		t.Fatalf("GetNodes failed: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("GetNodes = %v, want the fixed node list unchanged", got)
	}
}
