package notify

import "time"

// Notification is an undelivered message waiting in the queue.
type Notification struct {
	ID       string
	Title    string
	Body     string
	QueuedAt time.Time

	// Attempts counts failed delivery attempts, including the original send.
	// It is zero for notifications queued behind others without an attempt.
	Attempts int
}

// Queue holds undelivered notifications in arrival order.
// It is not safe for concurrent use.
type Queue struct {
	items []Notification
}

// Push appends a notification at the tail.
func (q *Queue) Push(n Notification) {
	q.items = append(q.items, n)
}

// Peek returns the head of the queue.
func (q *Queue) Peek() (Notification, bool) {
	if len(q.items) == 0 {
		return Notification{}, false
	}
	return q.items[0], true
}

// Pop removes the head of the queue.
func (q *Queue) Pop() (Notification, bool) {
	if len(q.items) == 0 {
		return Notification{}, false
	}
	n := q.items[0]
	q.items[0] = Notification{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return n, true
}

// markFailed increments the attempt count of the head entry.
func (q *Queue) markFailed() {
	if len(q.items) > 0 {
		q.items[0].Attempts++
	}
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	return len(q.items)
}

// Items returns a copy of the queue contents, head first.
func (q *Queue) Items() []Notification {
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}
