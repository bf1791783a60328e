package monitor_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/inetmon/inetmon/internal/probe"
)

type fakeProber struct {
	mu      sync.Mutex
	results []probe.Result
	errs    []error
	calls   int
	onProbe func(call int)
	panicOn int
}

func (p *fakeProber) Probe(_ context.Context) (probe.Result, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	var (
		res probe.Result
		err error
	)
	if len(p.results) > 0 {
		res = p.results[0]
		p.results = p.results[1:]
	} else {
		res = up(20, 0)
	}
	if len(p.errs) > 0 {
		err = p.errs[0]
		p.errs = p.errs[1:]
	}
	hook := p.onProbe
	p.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if p.panicOn == call {
		panic("probe exploded")
	}
	return res, err
}

func (p *fakeProber) Host() string { return "8.8.8.8" }

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeResolver struct {
	mu      sync.Mutex
	answers []bool
	calls   int
}

func (r *fakeResolver) Resolve(_ context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.answers) == 0 {
		return true
	}
	ok := r.answers[0]
	r.answers = r.answers[1:]
	return ok
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type notification struct {
	title string
	body  string
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []notification
	flushes int
	queued  int
	panicOn string
}

func (n *fakeNotifier) Notify(_ context.Context, title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if title == n.panicOn {
		panic("notifier exploded")
	}
	n.sent = append(n.sent, notification{title: title, body: body})
}

func (n *fakeNotifier) Flush(_ context.Context) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.flushes++
	return 0
}

func (n *fakeNotifier) QueueLen() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.queued
}

func (n *fakeNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.title)
	}
	return out
}

func (n *fakeNotifier) last() notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return notification{}
	}
	return n.sent[len(n.sent)-1]
}

func (n *fakeNotifier) flushCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.flushes
}

// switchTransport delivers to sent unless failing is set.
type switchTransport struct {
	mu      sync.Mutex
	failing bool
	sent    []string
}

func (tr *switchTransport) Send(_ context.Context, title, _ string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.failing {
		return errors.New("pushover unreachable")
	}
	tr.sent = append(tr.sent, title)
	return nil
}

func (tr *switchTransport) setFailing(failing bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.failing = failing
}

func (tr *switchTransport) titles() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.sent...)
}

type fakeRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *fakeRecorder) Record(_ bool, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, message)
}

func (r *fakeRecorder) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func up(latencyMs float64, loss int) probe.Result {
	return probe.Result{Success: true, AvgLatencyMs: &latencyMs, LossPercent: &loss}
}

func down() probe.Result {
	loss := 100
	return probe.Result{Success: false, LossPercent: &loss}
}
