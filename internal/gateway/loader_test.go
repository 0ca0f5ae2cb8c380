package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptLoaderEnsureProbesOnce(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	loader := NewScriptLoader(server.URL, nil)

	require.NoError(t, loader.Ensure(context.Background()))
	require.NoError(t, loader.Ensure(context.Background()))
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestScriptLoaderConcurrentCallersShareOneProbe(t *testing.T) {
	var hits int64
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	loader := NewScriptLoader(server.URL, nil)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = loader.Ensure(context.Background())
		}(i)
	}
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestScriptLoaderRetriesAfterFailure(t *testing.T) {
	var hits int64
	var failFirst int32 = 1
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		if atomic.CompareAndSwapInt32(&failFirst, 1, 0) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	loader := NewScriptLoader(server.URL, nil)

	require.Error(t, loader.Ensure(context.Background()))
	require.NoError(t, loader.Ensure(context.Background()))
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits))
}
