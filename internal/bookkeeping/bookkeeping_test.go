package bookkeeping

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenalive/arenalive/internal/httpclient"
)

func fastHTTP() *httpclient.Client {
	return httpclient.New(httpclient.Config{RetryAttempts: 1, RetryDelay: time.Millisecond})
}

func testRecord() StakeRecord {
	return StakeRecord{
		MatchID:          "123e4567-e89b-12d3-a456-426614174000",
		Bettor:           "4wBqpZM9xaSheZzJSMawUKKwhdpChKbZ5eu5ky4Vigw",
		Side:             "A",
		AmountMinorUnits: 1_500_000_000,
		TxSignature:      "5K3x...sig",
	}
}

func TestRecord_PostsJSON(t *testing.T) {
	var got StakeRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/stakes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	rec := NewRecorder(fastHTTP(), srv.URL, nil)
	require.NoError(t, rec.Record(context.Background(), testRecord()))
	assert.Equal(t, testRecord(), got)
}

func TestRecordAsync_FailureIsSwallowed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := NewRecorder(fastHTTP(), srv.URL, nil)
	rec.RecordAsync(testRecord())
	rec.Wait()

	assert.Equal(t, int32(1), calls.Load(), "request was attempted and its failure dropped")
}

func TestRecordAsync_DoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()

	rec := NewRecorder(fastHTTP(), srv.URL, nil)

	done := make(chan struct{})
	go func() {
		rec.RecordAsync(testRecord())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RecordAsync blocked on the slow server")
	}
	close(release)
	rec.Wait()
}
