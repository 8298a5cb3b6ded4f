// Package guard は処理中エンティティの重複実行防止を提供する。
// ガードはキューではなく相互排他トークンであり、重複した並行要求は落とされる。
package guard

import "sync"

// Set は処理中のエンティティIDを保持する集合。
// 検査と挿入を単一のロック区間で行い、レースを防ぐ。
type Set struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewSet はSetの新しいインスタンスを生成する。
func NewSet() *Set {
	return &Set{ids: make(map[string]struct{})}
}

// TryAcquire はIDの処理権を取得する。
// 既に処理中の場合はfalseを返し、呼び出し元は処理を落とす。
func (s *Set) TryAcquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Release はIDの処理権を解放する。
// 成功・失敗を問わず処理終了時に必ず呼び出すこと。
func (s *Set) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// Len は処理中のID数を返す。
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Flag は単一処理の実行中フラグ。
// 一括リフレッシュのように同時に1つしか走らせない処理に使う。
type Flag struct {
	mu     sync.Mutex
	active bool
}

// TryAcquire はフラグの取得を試みる。既に実行中の場合はfalseを返す。
func (f *Flag) TryAcquire() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		return false
	}
	f.active = true
	return true
}

// Release はフラグを解放する。
func (f *Flag) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
}
