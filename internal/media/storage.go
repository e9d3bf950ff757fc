// Package media は出品画像の保存・配信・サムネイル生成を提供する。
// 保存先バックエンド（ローカルファイルシステム / MinIO）を差し替え可能にする。
package media

import (
	"context"
	"io"
	"path"
)

// Store はメディア保存バックエンドの共通インターフェース。
// keyはシャーディング済みの相対パス（例: "a1/b2/a1b2....jpg"）。
type Store interface {
	// Put はオブジェクトを保存する。
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open はオブジェクトの読み取りストリームを開く。
	// 存在しない場合はErrNotFoundを返す。
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete はオブジェクトを削除する。存在しない場合はエラーにしない。
	Delete(ctx context.Context, key string) error
}

// shardKey はファイル名からシャーディング済みの保存キーを生成する。
// ファイル名（uuid）の先頭4文字を2階層のディレクトリに使う。
// 1ディレクトリあたりのエントリ数を抑えるための配置。
func shardKey(filename string) string {
	if len(filename) < 4 {
		return filename
	}
	return path.Join(filename[0:2], filename[2:4], filename)
}
