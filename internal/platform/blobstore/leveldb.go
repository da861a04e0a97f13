package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout:
//
//	meta_<id>             BlobMetadata as JSON
//	data_<id>             raw content
//	owner_<owner>_<id>    empty, index for ListByOwner
const (
	metaPrefix  = "meta_"
	dataPrefix  = "data_"
	ownerPrefix = "owner_"
)

// LevelDBBlobStore keeps blobs in a LevelDB database on local disk.
type LevelDBBlobStore struct {
	db      *leveldb.DB
	maxSize int64
}

// OpenLevelDBBlobStore opens (or creates) the database at path.
func OpenLevelDBBlobStore(path string, maxSize int64) (*LevelDBBlobStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &LevelDBBlobStore{db: db, maxSize: maxSize}, nil
}

func (s *LevelDBBlobStore) Close() error {
	return s.db.Close()
}

func ownerKey(ownerID, id string) []byte {
	return []byte(ownerPrefix + ownerID + "_" + id)
}

func (s *LevelDBBlobStore) Upload(_ context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	data, err := readContent(&meta, content, s.maxSize)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(metaPrefix+meta.ID), raw)
	batch.Put([]byte(dataPrefix+meta.ID), data)
	batch.Put(ownerKey(meta.OwnerID, meta.ID), nil)
	if err := s.db.Write(batch, nil); err != nil {
		return nil, fmt.Errorf("write blob %s: %w", meta.ID, err)
	}
	return &meta, nil
}

func (s *LevelDBBlobStore) GetMetadata(_ context.Context, id string) (*BlobMetadata, error) {
	raw, err := s.db.Get([]byte(metaPrefix+id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("read metadata %s: %w", id, err)
	}
	var meta BlobMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", id, err)
	}
	return &meta, nil
}

func (s *LevelDBBlobStore) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	meta, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.db.Get([]byte(dataPrefix+id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	return io.NopCloser(bytes.NewReader(data)), meta, nil
}

func (s *LevelDBBlobStore) Delete(ctx context.Context, id string) error {
	meta, err := s.GetMetadata(ctx, id)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete([]byte(metaPrefix + id))
	batch.Delete([]byte(dataPrefix + id))
	batch.Delete(ownerKey(meta.OwnerID, id))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	return nil
}

func (s *LevelDBBlobStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*BlobMetadata, int, error) {
	prefix := []byte(ownerPrefix + ownerID + "_")
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	var ids []string
	for iter.Next() {
		ids = append(ids, string(iter.Key()[len(prefix):]))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, 0, fmt.Errorf("iterate owner index: %w", err)
	}

	items := make([]*BlobMetadata, 0, len(ids))
	for _, id := range ids {
		meta, err := s.GetMetadata(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, meta)
	}
	return page(items, limit, offset), len(items), nil
}
