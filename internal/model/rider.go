// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// NodeType はライダーが所属する拠点（ノード）の種別を表す。
type NodeType string

const (
	NodeTypeCentralHub   NodeType = "central_hub"
	NodeTypeFranchiseHub NodeType = "franchise_hub"
	NodeTypeLMHub        NodeType = "lm_hub"
	NodeTypeQuickHub     NodeType = "quick_hub"
)

// HubType はチュートリアルトラックの種別を表す。
// day×hub_typeの組でチュートリアルの並びが決まる。
type HubType string

const (
	// HubTypeLMHub はラストマイル系拠点向けのトラック。不明なノード種別もここに寄せる。
	HubTypeLMHub HubType = "lm_hub"
	// HubTypeQuickHub はクイックコマース拠点向けのトラック。
	HubTypeQuickHub HubType = "quick_hub"
)

// Valid はHubTypeが既知のトラックかどうかを返す。
func (h HubType) Valid() bool {
	return h == HubTypeLMHub || h == HubTypeQuickHub
}

// RiderID は外部システムが採番したライダーID。
// 数値・文字列どちらのJSON表現も受け付け、数値として解釈できる場合は数値で出力する。
type RiderID string

// String はIDの文字列表現を返す。
func (id RiderID) String() string {
	return string(id)
}

// IsZero はIDが未指定かどうかを返す。
func (id RiderID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// MarshalJSON は数値IDを数値として、それ以外を文字列として出力する。
func (id RiderID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(string(id)), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON は数値・文字列・nullを受け付ける。
func (id *RiderID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RiderID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("rider_id must be a number or string: %w", err)
	}
	*id = RiderID(n.String())
	return nil
}

// RiderDateOffsets はライダーDBから取得した日付差分の生データ。
// いずれも「対象日 - 今日」の日数で、過去日は負の値になる。
type RiderDateOffsets struct {
	RiderID  RiderID
	NodeType NodeType
	// TourOffsetDays は拠点の最も早いツアー日までの日数。ツアーがなければnil。
	TourOffsetDays *int
	// CreatedOffsetDays はアカウント作成日までの日数。作成日が未登録ならnil。
	CreatedOffsetDays *int
}

// RiderDay はライダーのオンボーディング日と所属ノードの解決結果。
type RiderDay struct {
	RiderID  RiderID
	NodeType NodeType
	// Day は1〜3のオンボーディング日。判定できない場合はnil。
	Day *int
	// Degraded はDBに接続できずフィクスチャで代替した場合にtrueになる。
	Degraded bool
}
