// Package model はドメインモデルを定義する。
package model

import "time"

// Thread はフォーラム内のスレッドを表す。
// チャットプラットフォームが所有する外部エンティティであり、
// 本システムが書き換える永続状態は表示名（Name）のみ。
type Thread struct {
	ID        string
	Name      string
	OwnerID   string
	ParentID  string
	Archived  bool
	CreatedAt time.Time
	JumpURL   string
}

// Message はスレッド内のメッセージを表す。
type Message struct {
	ID          string
	AuthorID    string
	Content     string
	Attachments []Attachment
}

// Attachment はメッセージに添付されたファイルを表す。
// コンテンツタイプとサイズはプラットフォームのメタデータから既知。
type Attachment struct {
	URL         string
	ContentType string
	Size        int64
}

// User はプラットフォーム上のユーザーを表す。
type User struct {
	ID          string
	DisplayName string
}
