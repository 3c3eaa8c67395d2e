package session

import "sync"

// Signal はペイロードを持たない同期ブロードキャストの購読者リスト。
// 永続化も再送もしない。Broadcast時点の購読者にだけ、登録順に通知する。
type Signal struct {
	mu        sync.Mutex
	nextID    int
	listeners []signalListener
}

type signalListener struct {
	id int
	fn func()
}

// NewSignal は購読者のいないSignalを生成する。
func NewSignal() *Signal {
	return &Signal{}
}

// Subscribe はリスナーを登録し、登録解除用の関数を返す。
// 解除関数は何度呼んでもよい。
func (s *Signal) Subscribe(fn func()) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, signalListener{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

// Broadcast は全リスナーを呼び出し元のゴルーチンで同期的に呼び出す。
// リスナー内からSubscribeや解除を行ってもデッドロックしない。
func (s *Signal) Broadcast() {
	s.mu.Lock()
	snapshot := make([]signalListener, len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.Unlock()

	for _, l := range snapshot {
		l.fn()
	}
}

// Len は現在の購読者数を返す。
func (s *Signal) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *Signal) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}
