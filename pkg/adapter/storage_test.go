package adapter_test

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hippo/pkg/adapter"
)

func TestStorage(t *testing.T) {
	bucket := os.Getenv("TEST_STORAGE_BUCKET")
	if bucket == "" {
		t.Skip("TEST_STORAGE_BUCKET is not set")
	}

	ctx := context.Background()
	storage, err := adapter.NewStorage(ctx, bucket)
	gt.NoError(t, err)

	key := "hippo-test/" + time.Now().Format("20060102150405") + ".gob"
	w, err := storage.Put(ctx, key)
	gt.NoError(t, err)
	_, err = w.Write([]byte("snapshot"))
	gt.NoError(t, err)
	gt.NoError(t, w.Close())

	r, err := storage.Get(ctx, key)
	gt.NoError(t, err)
	defer r.Close()

	raw, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.Equal(t, string(raw), "snapshot")
}

func TestNewStorageRequiresBucket(t *testing.T) {
	_, err := adapter.NewStorage(context.Background(), "")
	gt.Error(t, err)
}
