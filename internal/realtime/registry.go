package realtime

import (
	"errors"
	"fmt"
	"sync"
)

// Channel は一本のライブ接続への送信口です
type Channel interface {
	Send(event string, payload any) error
	Close() error
}

// Registry はユーザーIDごとのライブ接続を管理します
// 一人のユーザーが複数の端末から同時に接続できます
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[Channel]struct{}
}

// NewRegistry は新しいRegistryを作成します
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]map[Channel]struct{})}
}

// Register は接続を登録し、登録を解除する関数を返します
// 解除関数は何度呼んでも安全です
func (r *Registry) Register(userID string, ch Channel) func() {
	r.mu.Lock()
	set, ok := r.channels[userID]
	if !ok {
		set = make(map[Channel]struct{})
		r.channels[userID] = set
	}
	set[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(userID, ch) })
	}
}

func (r *Registry) remove(userID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.channels[userID]
	if !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(r.channels, userID)
	}
}

// Emit はユーザーの全接続にイベントを送ります
// 接続がない場合は何もしません。送信に失敗した接続は登録から外して閉じます
func (r *Registry) Emit(userID, event string, payload any) error {
	r.mu.RLock()
	targets := make([]Channel, 0, len(r.channels[userID]))
	for ch := range r.channels[userID] {
		targets = append(targets, ch)
	}
	r.mu.RUnlock()

	var errs []error
	for _, ch := range targets {
		if err := ch.Send(event, payload); err != nil {
			r.remove(userID, ch)
			_ = ch.Close()
			errs = append(errs, fmt.Errorf("emit %s to %s: %w", event, userID, err))
		}
	}
	return errors.Join(errs...)
}

// Count はユーザーの接続数を返します
func (r *Registry) Count(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[userID])
}
