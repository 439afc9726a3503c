// Package rider はライダーのオンボーディング日（rider_age）と
// チュートリアルトラックを判定する。
package rider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blitznow/ridertraining/internal/metrics"
	"github.com/blitznow/ridertraining/internal/model"
	"github.com/blitznow/ridertraining/internal/repository"
)

// maxDayOffset はday判定の対象となる最大の日数差（0→1日目, 1→2日目, 2→3日目）。
const maxDayOffset = 2

// DayFromOffset は今日からの日数差をオンボーディング日に変換する。
// 負の値（過去日）と3日以上先はnil（不明）を返す。
func DayFromOffset(offset int) *int {
	if offset < 0 || offset > maxDayOffset {
		return nil
	}
	day := offset + 1
	return &day
}

// DayFromOffsets はツアー日を優先し、なければ作成日からオンボーディング日を求める。
// ツアー日があれば作成日は参照しない。
func DayFromOffsets(tourOffset, createdOffset *int) *int {
	if tourOffset != nil {
		return DayFromOffset(*tourOffset)
	}
	if createdOffset != nil {
		return DayFromOffset(*createdOffset)
	}
	return nil
}

// HubTrackFor はノード種別から使用するチュートリアルトラックを返す。
// quick_hubのみquick_hubトラックで、それ以外（未知の値を含む）はlm_hubトラック。
func HubTrackFor(nodeType model.NodeType) model.HubType {
	if nodeType == model.NodeTypeQuickHub {
		return model.HubTypeQuickHub
	}
	return model.HubTypeLMHub
}

// degradedNodeType はデグレードモードで返すノード種別。
const degradedNodeType = model.NodeTypeCentralHub

// Resolver はライダーDBを参照してオンボーディング日を判定する。
type Resolver struct {
	repo     repository.RiderRepository
	degraded bool
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewResolver はResolverを生成する。
// degradedModeが有効な場合、ライダーDBに接続できなければフィクスチャで応答する。
func NewResolver(repo repository.RiderRepository, degradedMode bool, m metrics.MetricsCollector, logger *slog.Logger) *Resolver {
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, degraded: degradedMode, metrics: m, logger: logger}
}

// Resolve はライダーのノード種別とオンボーディング日を返す。
// ライダーが存在しない場合はRIDER_NOT_FOUNDのAPIErrorを返す。
// 日が判定できない場合はDayがnilのRiderDayを返す（エラーにはしない）。
func (r *Resolver) Resolve(ctx context.Context, riderID model.RiderID) (*model.RiderDay, error) {
	if riderID.IsZero() {
		return nil, model.NewMissingParameterError("Rider ID is required")
	}

	offsets, err := r.repo.FindDateOffsets(ctx, riderID)
	if err != nil {
		if r.degraded && errors.Is(err, repository.ErrUnavailable) {
			r.logger.WarnContext(ctx, "ライダーDBに接続できないためフィクスチャで応答します",
				slog.Bool("degraded", true),
				slog.String("rider_id", riderID.String()),
				slog.String("error", err.Error()),
			)
			r.metrics.RecordDegraded("rider")
			return Fixture(riderID), nil
		}
		return nil, fmt.Errorf("ライダー日の判定に失敗しました: %w", err)
	}
	if offsets == nil {
		return nil, model.NewRiderNotFoundError()
	}

	return &model.RiderDay{
		RiderID:  offsets.RiderID,
		NodeType: offsets.NodeType,
		Day:      DayFromOffsets(offsets.TourOffsetDays, offsets.CreatedOffsetDays),
	}, nil
}

// Fixture はデグレードモードで返すライダー情報。1日目のcentral_hubとして扱う。
func Fixture(riderID model.RiderID) *model.RiderDay {
	day := 1
	return &model.RiderDay{
		RiderID:  riderID,
		NodeType: degradedNodeType,
		Day:      &day,
		Degraded: true,
	}
}
