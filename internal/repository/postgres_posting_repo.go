package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/shoichi/unimart/internal/model"
)

// PostgresPostingRepo はPostgreSQLを使用した出品リポジトリ。
type PostgresPostingRepo struct {
	db *sql.DB
}

// NewPostgresPostingRepo はPostgresPostingRepoを生成する。
func NewPostgresPostingRepo(db *sql.DB) *PostgresPostingRepo {
	return &PostgresPostingRepo{db: db}
}

// sortClause はSortKeyをORDER BY句に変換する。
func sortClause(sort model.SortKey) string {
	switch sort {
	case model.SortNewest:
		return "p.timestamp DESC"
	case model.SortOldest:
		return "p.timestamp ASC"
	case model.SortHighestCost:
		return "p.cost DESC"
	case model.SortLowestCost:
		return "p.cost ASC"
	default:
		return "p.timestamp ASC"
	}
}

// buildFilterClause はPostingFilterからWHERE句の条件式と引数を構築する。
// nilのフィールドは条件に含めない。
func buildFilterClause(filter PostingFilter) (string, []interface{}) {
	clause := ""
	args := []interface{}{}
	argIndex := 1

	if filter.ID != nil {
		clause += fmt.Sprintf(" AND p.id = $%d", argIndex)
		args = append(args, *filter.ID)
		argIndex++
	}
	if filter.Owner != nil {
		clause += fmt.Sprintf(" AND p.owner = $%d", argIndex)
		args = append(args, *filter.Owner)
		argIndex++
	}
	if filter.Category != nil {
		clause += fmt.Sprintf(" AND p.category = $%d", argIndex)
		args = append(args, *filter.Category)
		argIndex++
	}
	if filter.Cost != nil {
		clause += fmt.Sprintf(" AND p.cost = $%d", argIndex)
		args = append(args, *filter.Cost)
		argIndex++
	}
	if filter.MaxCost != nil {
		clause += fmt.Sprintf(" AND p.cost <= $%d", argIndex)
		args = append(args, *filter.MaxCost)
		argIndex++
	}

	return clause, args
}

// List は条件に合致する出品を所有者のメールアドレス付きで取得する。
// ページは1始まり。1未満のページは1に丸められる。
// 総ページ数はceil(総件数/perPage)を返す（0件なら0）。
func (r *PostgresPostingRepo) List(
	ctx context.Context,
	filter PostingFilter,
	sort model.SortKey,
	page, perPage int,
) ([]model.PostingWithOwner, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return nil, 0, fmt.Errorf("perPageは1以上が必要です: %d", perPage)
	}

	filterClause, args := buildFilterClause(filter)

	// 総件数からページ数を算出
	countQuery := `SELECT COUNT(*) FROM postings p WHERE 1=1` + filterClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("出品件数の取得に失敗しました: %w", err)
	}
	totalPages := (total + perPage - 1) / perPage

	query := `
		SELECT p.id, p.owner, p.title, p.description, p.cost, p.category,
		       p.timestamp, p.images, u.email
		FROM postings p
		JOIN users u ON p.owner = u.id
		WHERE 1=1` + filterClause
	query += fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", sortClause(sort), len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	postings, err := scanPostingsWithOwner(rows)
	if err != nil {
		return nil, 0, err
	}

	return postings, totalPages, nil
}

// FindByID は指定IDの出品を取得する。見つからない場合はnilを返す。
func (r *PostgresPostingRepo) FindByID(ctx context.Context, id int64) (*model.Posting, error) {
	p := &model.Posting{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner, title, description, cost, category, timestamp, images
		 FROM postings WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Owner, &p.Title, &p.Description, &p.Cost, &p.Category,
		&p.Timestamp, pq.Array(&p.Images))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}

	return p, nil
}

// FindByIDs は指定ID群の出品を所有者メールアドレス付きで取得する。
// 返却順は保証しない。検索インデックスのランキング順への並べ替えは呼び出し側が行う。
func (r *PostgresPostingRepo) FindByIDs(ctx context.Context, ids []int64) ([]model.PostingWithOwner, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.owner, p.title, p.description, p.cost, p.category,
		        p.timestamp, p.images, u.email
		 FROM postings p
		 JOIN users u ON p.owner = u.id
		 WHERE p.id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("出品のID指定取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanPostingsWithOwner(rows)
}

// FindDuplicate は(owner, title, description, category)が完全一致する既存行を検索する。
// 二重送信ガードに使用する。見つからない場合はnilを返す。
func (r *PostgresPostingRepo) FindDuplicate(ctx context.Context, owner, title, description string, category int) (*model.Posting, error) {
	p := &model.Posting{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner, title, description, cost, category, timestamp, images
		 FROM postings
		 WHERE owner = $1 AND title = $2 AND description = $3 AND category = $4
		 LIMIT 1`,
		owner, title, description, category,
	).Scan(&p.ID, &p.Owner, &p.Title, &p.Description, &p.Cost, &p.Category,
		&p.Timestamp, pq.Array(&p.Images))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("重複出品の検索に失敗しました: %w", err)
	}

	return p, nil
}

// Insert は新規出品を作成し、採番されたIDを設定して返す。
func (r *PostgresPostingRepo) Insert(ctx context.Context, posting *model.Posting) error {
	images := posting.Images
	if images == nil {
		images = []string{}
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO postings (owner, title, description, cost, category, timestamp, images)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		posting.Owner, posting.Title, posting.Description, posting.Cost,
		posting.Category, posting.Timestamp, pq.Array(images),
	).Scan(&posting.ID)
	if err != nil {
		return fmt.Errorf("出品の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は(id, owner)に一致する行をトランザクション内で読み取り・マージ・永続化する。
// 一致する行がない場合はnilを返す（非所有者と存在しないIDは区別されない）。
// timestampは他のフィールドに変更がなくても必ずnowに更新される。
func (r *PostgresPostingRepo) Update(ctx context.Context, id int64, owner string, patch PostingPatch, now time.Time) (*model.Posting, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p := &model.Posting{}
	err = tx.QueryRowContext(ctx,
		`SELECT id, owner, title, description, cost, category, timestamp, images
		 FROM postings
		 WHERE id = $1 AND owner = $2
		 FOR UPDATE`,
		id, owner,
	).Scan(&p.ID, &p.Owner, &p.Title, &p.Description, &p.Cost, &p.Category,
		&p.Timestamp, pq.Array(&p.Images))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("更新対象の出品の取得に失敗しました: %w", err)
	}

	// 指定されたフィールドのみマージ。timestampは常に更新する。
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Cost != nil {
		p.Cost = *patch.Cost
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	p.Timestamp = now

	_, err = tx.ExecContext(ctx,
		`UPDATE postings
		 SET title = $2, description = $3, cost = $4, category = $5, timestamp = $6
		 WHERE id = $1`,
		p.ID, p.Title, p.Description, p.Cost, p.Category, p.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("出品の更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return p, nil
}

// UpdateImages は出品の画像ファイル名リストを置き換える。
func (r *PostgresPostingRepo) UpdateImages(ctx context.Context, id int64, images []string) error {
	if images == nil {
		images = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE postings SET images = $2 WHERE id = $1`,
		id, pq.Array(images),
	)
	if err != nil {
		return fmt.Errorf("出品画像の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの出品を削除する。所有者チェックは呼び出し側の責務。
func (r *PostgresPostingRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM postings WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("出品の削除に失敗しました: %w", err)
	}
	return nil
}

// scanPostingsWithOwner は出品+所有者メールの行セットを読み取る。
func scanPostingsWithOwner(rows *sql.Rows) ([]model.PostingWithOwner, error) {
	var postings []model.PostingWithOwner
	for rows.Next() {
		var pw model.PostingWithOwner
		if err := rows.Scan(
			&pw.ID, &pw.Owner, &pw.Title, &pw.Description, &pw.Cost,
			&pw.Category, &pw.Timestamp, pq.Array(&pw.Images), &pw.Email,
		); err != nil {
			return nil, fmt.Errorf("出品行の読み取りに失敗しました: %w", err)
		}
		postings = append(postings, pw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("出品一覧の走査に失敗しました: %w", err)
	}
	return postings, nil
}

// compile-time interface check
var _ PostingRepository = (*PostgresPostingRepo)(nil)
