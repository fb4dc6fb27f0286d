package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/metadata"
)

func next(t *testing.T, s *ReloadSource) Reload {
	t.Helper()
	select {
	case e, ok := <-s.Events():
		require.True(t, ok, "events closed early")
		r, ok := e.(Reload)
		require.True(t, ok, "unexpected event %T", e)
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	return Reload{}
}

func TestReloadSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fail := true
	load := func() (*metadata.Collector, error) {
		if fail {
			return nil, errors.New("yaml: line 3: did not find expected key")
		}
		return metadata.New([]metadata.Definition{{
			Repository: "product",
			Descriptor: core.Descriptor{Namespace: `App\Product`, Type: "product"},
		}})
	}

	changes := make(chan metadata.Event, 1)
	src := NewSource(changes, load)
	require.NoError(t, src.Start(ctx))

	changes <- metadata.Event{Path: "product.yaml", Op: "write"}
	r := next(t, src)
	assert.Error(t, r.Err)
	assert.Nil(t, r.Collector)
	assert.Contains(t, r.String(), "failed")

	fail = false
	changes <- metadata.Event{Path: "product.yaml", Op: "write"}
	r = next(t, src)
	require.NoError(t, r.Err)
	assert.Equal(t, []string{"product"}, r.Collector.Descriptors().Keys())
	assert.Equal(t, "reloaded after write product.yaml: 1 repositories", r.String())

	assert.Equal(t, SourceState{Reloads: 1, Failures: 1, LastPath: "product.yaml"}, src.State())

	close(changes)
	select {
	case _, ok := <-src.Events():
		assert.False(t, ok, "events should close when the watch closes")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
	}
}

func TestReloadSource_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := NewSource(make(chan metadata.Event), func() (*metadata.Collector, error) { return nil, nil })
	require.NoError(t, src.Start(ctx))
	cancel()

	select {
	case _, ok := <-src.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
	}
}
