package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound は指定されたオブジェクトが存在しないことを表す。
var ErrNotFound = errors.New("media object not found")

// LocalStore はローカルファイルシステムを使用するメディアバックエンド。
type LocalStore struct {
	root string
}

// NewLocalStore はLocalStoreを生成する。rootディレクトリは存在しなければ作成する。
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Put はオブジェクトをシャーディング済みパスに保存する。
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create shard directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("failed to create media file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write media file: %w", err)
	}
	return nil
}

// Open はオブジェクトの読み取りストリームを開く。
func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	full := filepath.Join(s.root, filepath.FromSlash(key))
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	return f, nil
}

// Delete はオブジェクトを削除する。すでに存在しない場合はエラーにしない。
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	full := filepath.Join(s.root, filepath.FromSlash(key))
	err := os.Remove(full)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete media file: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Store = (*LocalStore)(nil)
