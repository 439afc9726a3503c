package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/blitznow/ridertraining/internal/database"
	"github.com/blitznow/ridertraining/internal/model"
)

// riderOffsetsQuery はライダーの所属ノードと日付差分を1クエリで取得する。
// ツアーはライダー個人ではなく所属ノードに紐づくため、ノード経由でLEFT JOINする。
// %[1]s にはクオート済みのスキーマ名が入る。
const riderOffsetsQuery = `
SELECT
    r.rider_id::text,
    n.node_type,
    (MIN(tu.tour_date)::date - CURRENT_DATE) AS tour_offset,
    (r.created_at::date - CURRENT_DATE)      AS created_offset
FROM %[1]s.rider r
JOIN %[1]s.node n
  ON r.node_node_id = n.node_id
LEFT JOIN %[1]s.tour tu
  ON tu.node_id = n.node_id
WHERE r.rider_id = $1
GROUP BY r.rider_id, n.node_type, r.created_at`

// PostgresRiderRepo はリードレプリカからライダー情報を読み取るリポジトリ。
type PostgresRiderRepo struct {
	db           *sql.DB
	query        string
	queryTimeout time.Duration
}

// NewPostgresRiderRepo はPostgresRiderRepoを生成する。
// schemaはrider/node/tourテーブルが存在するスキーマ名。
func NewPostgresRiderRepo(db *sql.DB, schema string, queryTimeout time.Duration) *PostgresRiderRepo {
	return &PostgresRiderRepo{
		db:           db,
		query:        fmt.Sprintf(riderOffsetsQuery, database.QuoteSchema(schema)),
		queryTimeout: queryTimeout,
	}
}

// FindDateOffsets はライダーの所属ノード種別と日付差分を取得する。見つからない場合はnilを返す。
// 接続確立に失敗した場合はErrUnavailableでラップしたエラーを返す。
func (r *PostgresRiderRepo) FindDateOffsets(ctx context.Context, riderID model.RiderID) (*model.RiderDateOffsets, error) {
	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}

	var (
		id            string
		nodeType      sql.NullString
		tourOffset    sql.NullInt64
		createdOffset sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx, r.query, riderID.String()).Scan(&id, &nodeType, &tourOffset, &createdOffset)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		// 数値列に数値以外のIDが渡された場合は該当なしとして扱う
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Class() == "22" {
			return nil, nil
		}
		if database.IsUnavailable(err) {
			return nil, fmt.Errorf("rider lookup: %w: %w", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("ライダー情報の取得に失敗しました: %w", err)
	}

	offsets := &model.RiderDateOffsets{
		RiderID:  model.RiderID(id),
		NodeType: model.NodeType(nodeType.String),
	}
	if tourOffset.Valid {
		v := int(tourOffset.Int64)
		offsets.TourOffsetDays = &v
	}
	if createdOffset.Valid {
		v := int(createdOffset.Int64)
		offsets.CreatedOffsetDays = &v
	}
	return offsets, nil
}

// compile-time interface check
var _ RiderRepository = (*PostgresRiderRepo)(nil)
