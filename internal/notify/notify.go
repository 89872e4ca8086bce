package notify

import (
	"fmt"
	"sync"
	"time"
)

type Level int

const (
	Info Level = iota
	Success
	Warning
	Danger
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Danger:
		return "danger"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// DefaultDuration is how long a notification stays visible unless told otherwise.
const DefaultDuration = 3 * time.Second

type Notification struct {
	ID      int64
	Level   Level
	Message string
	Expires time.Time
}

// Service is an explicit notification queue. Views call Show directly and
// render whatever arrives on their subscription.
type Service struct {
	now func() time.Time

	mu      sync.Mutex
	items   []Notification
	nextID  int64
	subs    map[int]chan Notification
	nextSub int
}

func New(now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{now: now, subs: map[int]chan Notification{}}
}

// Show enqueues a notification; d <= 0 means DefaultDuration. Slow
// subscribers miss notifications rather than block the caller.
func (s *Service) Show(level Level, msg string, d time.Duration) Notification {
	if d <= 0 {
		d = DefaultDuration
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n := Notification{ID: s.nextID, Level: level, Message: msg, Expires: s.now().Add(d)}
	s.items = append(s.items, n)
	for _, ch := range s.subs {
		select {
		case ch <- n:
		default:
		}
	}
	return n
}

func (s *Service) Info(msg string) Notification    { return s.Show(Info, msg, 0) }
func (s *Service) Success(msg string) Notification { return s.Show(Success, msg, 0) }
func (s *Service) Warning(msg string) Notification { return s.Show(Warning, msg, 0) }
func (s *Service) Error(err error) Notification    { return s.Show(Danger, err.Error(), 0) }

// Subscribe returns a channel receiving every subsequent notification.
// cancel closes the channel.
func (s *Service) Subscribe(buf int) (<-chan Notification, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Notification, buf)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Dismiss removes a notification before it expires.
func (s *Service) Dismiss(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.items {
		if n.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns unexpired notifications, oldest first, and forgets the rest.
func (s *Service) Active() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	kept := s.items[:0]
	for _, n := range s.items {
		if now.Before(n.Expires) {
			kept = append(kept, n)
		}
	}
	s.items = kept
	return append([]Notification(nil), kept...)
}
