package mq

import (
	"context"
	"encoding/json"
	"log/slog"
)

// indexQueue は検索インデックス同期イベントの配信先キュー名。
const indexQueue = "posting-index"

// インデックス同期イベントのアクション種別。
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// IndexEvent は出品の作成・更新・削除を検索インデックスの
// 同期ワーカーへ通知するイベント。
type IndexEvent struct {
	Action    string `json:"action"`
	PostingID int64  `json:"posting_id"`
}

// Publisher はメッセージキューへの配信を抽象化する。
type Publisher interface {
	// Publish はキューへメッセージを配信する。
	Publish(ctx context.Context, queue string, data []byte) error
	// Close は接続を閉じる。
	Close() error
}

// IndexNotifier は出品の変更を検索インデックスへ通知する。
// 配信失敗はログに残すのみで、呼び出し元の処理は継続する。
type IndexNotifier struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewIndexNotifier はIndexNotifierを生成する。
func NewIndexNotifier(publisher Publisher, logger *slog.Logger) *IndexNotifier {
	return &IndexNotifier{publisher: publisher, logger: logger}
}

// NotifyUpsert は出品の作成・更新を通知する。
func (n *IndexNotifier) NotifyUpsert(ctx context.Context, postingID int64) {
	n.notify(ctx, ActionUpsert, postingID)
}

// NotifyDelete は出品の削除を通知する。
func (n *IndexNotifier) NotifyDelete(ctx context.Context, postingID int64) {
	n.notify(ctx, ActionDelete, postingID)
}

func (n *IndexNotifier) notify(ctx context.Context, action string, postingID int64) {
	event := IndexEvent{Action: action, PostingID: postingID}
	data, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("インデックスイベントのエンコードに失敗しました",
			slog.String("action", action),
			slog.Int64("posting_id", postingID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := n.publisher.Publish(ctx, indexQueue, data); err != nil {
		n.logger.Warn("インデックスイベントの配信に失敗しました",
			slog.String("action", action),
			slog.Int64("posting_id", postingID),
			slog.String("error", err.Error()),
		)
	}
}

// NopPublisher はAMQP_URL未設定時に使用する何もしないPublisher。
type NopPublisher struct{}

// Publish は何もせずnilを返す。
func (NopPublisher) Publish(context.Context, string, []byte) error { return nil }

// Close は何もせずnilを返す。
func (NopPublisher) Close() error { return nil }

var _ Publisher = NopPublisher{}
