package crit

import (
	"testing"
	"time"

	"github.com/critdb/crit/pkg/crit/transport"
	"github.com/critdb/crit/pkg/crit/types"
)

func TestWaitResponseUnknownTokenFails(t *testing.T) {
	registry := transport.NewRegistry()
	srv := startTestServer(t, registry, "wait-unknown", types.DefaultOptions())
	defer srv.Stop(nil)

	resp := srv.WaitResponse(types.Token("never-issued"), time.Second)
	if resp.Success || resp.Err != types.ErrUnknownToken {
		t.Fatalf("WaitResponse(never-issued) = %v, want ErrUnknownToken", resp)
	}
}

func TestWaitResponseTimeoutForgetsToken(t *testing.T) {
	registry := transport.NewRegistry()
	srv := startTestServer(t, registry, "wait-timeout", types.DefaultOptions())
	defer srv.Stop(nil)

	srv.Pause(nil)
	token := srv.InsertRequest(types.Record{"a", 1})

	first := srv.WaitResponse(token, 0)
	if first.Success || first.Err != types.ErrTimeout {
		t.Fatalf("first WaitResponse = %v, want ErrTimeout", first)
	}

	second := srv.WaitResponse(token, 0)
	if second.Success || second.Err != types.ErrUnknownToken {
		t.Fatalf("second WaitResponse after timeout = %v, want ErrUnknownToken", second)
	}
}

func TestRequestVariantsReturnTokenImmediately(t *testing.T) {
	registry := transport.NewRegistry()
	srv := startTestServer(t, registry, "request-variants", types.DefaultOptions())
	defer srv.Stop(nil)

	insertTok := srv.InsertRequest(types.Record{"a", 1})
	if insertTok == "" {
		t.Fatal("InsertRequest returned an empty token")
	}
	if resp := srv.WaitResponse(insertTok, 2*time.Second); !resp.Success {
		t.Fatalf("InsertRequest response = %v, want success", resp)
	}

	manyTok := srv.InsertManyRequest([]types.Record{{"b", 2}, {"c", 3}})
	if resp := srv.WaitResponse(manyTok, 2*time.Second); !resp.Success {
		t.Fatalf("InsertManyRequest response = %v, want success", resp)
	}

	delTok := srv.DeleteRequest("a")
	if resp := srv.WaitResponse(delTok, 2*time.Second); !resp.Success {
		t.Fatalf("DeleteRequest response = %v, want success", resp)
	}

	delManyTok := srv.DeleteManyRequest([]interface{}{"b", "c"})
	if resp := srv.WaitResponse(delManyTok, 2*time.Second); !resp.Success {
		t.Fatalf("DeleteManyRequest response = %v, want success", resp)
	}
	if got := srv.Size(); got != 0 {
		t.Fatalf("Size() after deletes = %d, want 0", got)
	}
}

func TestDeleteObjectAndDeleteObjectsSync(t *testing.T) {
	registry := transport.NewRegistry()
	srv := startTestServer(t, registry, "delete-object", types.DefaultOptions())
	defer srv.Stop(nil)

	if resp := srv.InsertMany([]types.Record{{"a", 1}, {"b", 2}}); !resp.Success {
		t.Fatalf("InsertMany failed: %v", resp.Err)
	}

	if resp := srv.DeleteObject(types.Record{"a", 1}); !resp.Success {
		t.Fatalf("DeleteObject failed: %v", resp.Err)
	}
	if got := srv.Lookup("a"); len(got) != 0 {
		t.Fatalf("Lookup(a) after DeleteObject = %v, want empty", got)
	}

	if resp := srv.DeleteObjects([]types.Record{{"b", 2}}); !resp.Success {
		t.Fatalf("DeleteObjects failed: %v", resp.Err)
	}
	if got := srv.Size(); got != 0 {
		t.Fatalf("Size() after DeleteObjects = %d, want 0", got)
	}
}
