package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

// TestSetup_JSONOutput はSetupが生成したロガーがJSON形式で出力することをテストする。
func TestSetup_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)
	l.Info("テストメッセージ")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("JSON出力のパースに失敗: %v", err)
	}
	if record["msg"] != "テストメッセージ" {
		t.Errorf("期待msg: テストメッセージ, 結果: %v", record["msg"])
	}
}

// TestScope_Enter はEnterがセグメントを": "で連結することをテストする。
func TestScope_Enter(t *testing.T) {
	s := NewScope(nil)
	if s.Path() != "" {
		t.Errorf("ルートスコープは空であるべき, 結果: %q", s.Path())
	}

	s1 := s.Enter("story thread 1 (foo)")
	if s1.Path() != "story thread 1 (foo)" {
		t.Errorf("期待: story thread 1 (foo), 結果: %q", s1.Path())
	}

	s2 := s1.Enter("wordcount")
	if s2.Path() != "story thread 1 (foo): wordcount" {
		t.Errorf("期待: story thread 1 (foo): wordcount, 結果: %q", s2.Path())
	}
}

// TestScope_ValueSemantics はEnterが元のスコープを変更しないことをテストする。
func TestScope_ValueSemantics(t *testing.T) {
	s1 := NewScope(nil).Enter("outer")
	_ = s1.Enter("inner")
	if s1.Path() != "outer" {
		t.Errorf("Enterは元のスコープを変更すべきではない, 結果: %q", s1.Path())
	}
}

// TestScope_LogAttribute はLogがscope属性を付与することをテストする。
func TestScope_LogAttribute(t *testing.T) {
	var buf bytes.Buffer
	s := NewScope(Setup(&buf)).Enter("profile thread 2 (bar)")
	s.Log().Info("updating")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("JSON出力のパースに失敗: %v", err)
	}
	if record["scope"] != "profile thread 2 (bar)" {
		t.Errorf("期待scope: profile thread 2 (bar), 結果: %v", record["scope"])
	}
}
