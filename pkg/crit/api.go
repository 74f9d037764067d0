package crit

import (
	"time"

	"github.com/critdb/crit/pkg/crit/types"
)

// submitWrite registers a waiter channel under a fresh token and
// enqueues op on the actor, returning both so callers can either block
// on the channel immediately (synchronous API) or stash the token and
// poll later via WaitResponse (asynchronous *Request API).
func (s *Server) submitWrite(op types.WriteOp) (types.Token, chan types.Response) {
	token := types.NewToken()
	ch := make(chan types.Response, 1)

	s.waitersMu.Lock()
	s.waiters[token] = ch
	s.waitersMu.Unlock()

	s.inbox <- command{kind: cmdSubmitWrite, op: op, token: token, waiter: ch}
	return token, ch
}

func (s *Server) await(token types.Token, ch chan types.Response) types.Response {
	resp := <-ch
	s.waitersMu.Lock()
	delete(s.waiters, token)
	s.waitersMu.Unlock()
	return resp
}

// WaitResponse blocks up to timeout for the response to a token
// returned by one of the *Request methods, spec.md §4.3's asynchronous
// write path. Returns ErrTimeout if timeout elapses first, or
// ErrUnknownToken if the token is unrecognized (already waited on, or
// never issued by this server).
func (s *Server) WaitResponse(token types.Token, timeout time.Duration) types.Response {
	s.waitersMu.Lock()
	ch, ok := s.waiters[token]
	s.waitersMu.Unlock()
	if !ok {
		return types.Failed(types.ErrUnknownToken)
	}

	select {
	case resp := <-ch:
		s.waitersMu.Lock()
		delete(s.waiters, token)
		s.waitersMu.Unlock()
		return resp
	case <-time.After(timeout):
		s.waitersMu.Lock()
		delete(s.waiters, token)
		s.waitersMu.Unlock()
		return types.Failed(types.ErrTimeout)
	}
}

// Insert writes one record, blocking until every current peer has
// acknowledged it (or a peer's departure releases the wait), spec.md
// §4.2 insert/1.
func (s *Server) Insert(r types.Record) types.Response {
	token, ch := s.submitWrite(types.WriteOp{Kind: types.OpInsert, Records: []types.Record{r}})
	return s.await(token, ch)
}

// InsertRequest is the non-blocking counterpart to Insert: it returns
// immediately with a token to later pass to WaitResponse.
func (s *Server) InsertRequest(r types.Record) types.Token {
	token, _ := s.submitWrite(types.WriteOp{Kind: types.OpInsert, Records: []types.Record{r}})
	return token
}

// InsertMany writes several records as one replicated unit, spec.md
// §4.2 insert_many/1.
func (s *Server) InsertMany(records []types.Record) types.Response {
	token, ch := s.submitWrite(types.WriteOp{Kind: types.OpInsertMany, Records: records})
	return s.await(token, ch)
}

func (s *Server) InsertManyRequest(records []types.Record) types.Token {
	token, _ := s.submitWrite(types.WriteOp{Kind: types.OpInsertMany, Records: records})
	return token
}

// Delete removes every record stored under key, spec.md §4.2
// delete/1.
func (s *Server) Delete(key interface{}) types.Response {
	token, ch := s.submitWrite(types.WriteOp{Kind: types.OpDelete, Keys: []interface{}{key}})
	return s.await(token, ch)
}

func (s *Server) DeleteRequest(key interface{}) types.Token {
	token, _ := s.submitWrite(types.WriteOp{Kind: types.OpDelete, Keys: []interface{}{key}})
	return token
}

// DeleteMany removes every record stored under any of keys, spec.md
// §4.2 delete_many/1.
func (s *Server) DeleteMany(keys []interface{}) types.Response {
	token, ch := s.submitWrite(types.WriteOp{Kind: types.OpDeleteMany, Keys: keys})
	return s.await(token, ch)
}

func (s *Server) DeleteManyRequest(keys []interface{}) types.Token {
	token, _ := s.submitWrite(types.WriteOp{Kind: types.OpDeleteMany, Keys: keys})
	return token
}

// DeleteObject removes r only if a record equal to it (full value, not
// just key) is currently stored — meaningful mainly for Bag tables
// where a key can map to several records, spec.md §4.2
// delete_object/1.
func (s *Server) DeleteObject(r types.Record) types.Response {
	token, ch := s.submitWrite(types.WriteOp{Kind: types.OpDeleteObject, Records: []types.Record{r}})
	return s.await(token, ch)
}

func (s *Server) DeleteObjectRequest(r types.Record) types.Token {
	token, _ := s.submitWrite(types.WriteOp{Kind: types.OpDeleteObject, Records: []types.Record{r}})
	return token
}

// DeleteObjects removes every record in records by full value, spec.md
// §4.2 delete_objects/1.
func (s *Server) DeleteObjects(records []types.Record) types.Response {
	token, ch := s.submitWrite(types.WriteOp{Kind: types.OpDeleteObjects, Records: records})
	return s.await(token, ch)
}

func (s *Server) DeleteObjectsRequest(records []types.Record) types.Token {
	token, _ := s.submitWrite(types.WriteOp{Kind: types.OpDeleteObjects, Records: records})
	return token
}
