package ui

import (
	"sync"
	"time"
)

// Alert is one informational dialog shown to the user.
type Alert struct {
	Seq     int       `json:"seq"`
	Title   string    `json:"title,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// AlertLog is a Presenter for front-ends that cannot block on a modal
// dialog: alerts are kept in order and polled by sequence number.
type AlertLog struct {
	mu     sync.Mutex
	alerts []Alert
	limit  int
	notify chan struct{}
}

func NewAlertLog(limit int) *AlertLog {
	if limit <= 0 {
		limit = 100
	}
	return &AlertLog{limit: limit, notify: make(chan struct{})}
}

func (a *AlertLog) Alert(title, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	seq := 1
	if n := len(a.alerts); n > 0 {
		seq = a.alerts[n-1].Seq + 1
	}
	a.alerts = append(a.alerts, Alert{Seq: seq, Title: title, Message: message, At: time.Now().UTC()})
	if len(a.alerts) > a.limit {
		a.alerts = append([]Alert(nil), a.alerts[len(a.alerts)-a.limit:]...)
	}
	close(a.notify)
	a.notify = make(chan struct{})
}

// Since returns alerts with Seq > after.
func (a *AlertLog) Since(after int) []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []Alert{}
	for _, al := range a.alerts {
		if al.Seq > after {
			out = append(out, al)
		}
	}
	return out
}

// Changed is closed the next time an alert is recorded.
func (a *AlertLog) Changed() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notify
}
