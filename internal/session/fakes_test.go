package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zhouzirui/voice-agent/internal/model/conversation"
	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

type fakeCapture struct {
	mime     string
	ch       chan []byte
	stopOnce sync.Once
	stops    int
	stopErr  error
	mu       sync.Mutex
}

func newFakeCapture(mime string) *fakeCapture {
	return &fakeCapture{mime: mime, ch: make(chan []byte, 16)}
}

func (c *fakeCapture) MimeType() string      { return c.mime }
func (c *fakeCapture) Chunks() <-chan []byte { return c.ch }

func (c *fakeCapture) Stop() error {
	c.mu.Lock()
	c.stops++
	err := c.stopErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.finish()
	return nil
}

func (c *fakeCapture) finish() {
	c.stopOnce.Do(func() { close(c.ch) })
}

type fakeDevice struct {
	mu       sync.Mutex
	err      error
	opens    int
	captures []*fakeCapture
}

func (d *fakeDevice) Open(context.Context) (Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeCapture("audio/webm;codecs=opus")
	d.captures = append(d.captures, c)
	return c, nil
}

func (d *fakeDevice) last() *fakeCapture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.captures[len(d.captures)-1]
}

type fakeUploader struct {
	mu   sync.Mutex
	resp *speech.VoiceAgentResponse
	err  error
	gate chan struct{}
	reqs []speech.VoiceAgentRequest
}

func (u *fakeUploader) Process(ctx context.Context, req speech.VoiceAgentRequest) (*speech.VoiceAgentResponse, error) {
	u.mu.Lock()
	u.reqs = append(u.reqs, req)
	gate := u.gate
	resp, err := u.resp, u.err
	u.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resp, err
}

func (u *fakeUploader) set(resp *speech.VoiceAgentResponse, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.resp, u.err = resp, err
}

func (u *fakeUploader) requests() []speech.VoiceAgentRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]speech.VoiceAgentRequest(nil), u.reqs...)
}

type fakeClip struct {
	data     []byte
	released atomic.Int32
}

func (c *fakeClip) Release() { c.released.Add(1) }

type fakeSink struct {
	mu           sync.Mutex
	loadErr      error
	playErr      error
	contentTypes []string
	clips        []*fakeClip
	plays        int
	stops        int
	done         chan error
}

func (s *fakeSink) Load(data []byte, contentType string) (Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	s.contentTypes = append(s.contentTypes, contentType)
	clip := &fakeClip{data: data}
	s.clips = append(s.clips, clip)
	return clip, nil
}

func (s *fakeSink) Play(Clip) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playErr != nil {
		return nil, s.playErr
	}
	s.plays++
	s.done = make(chan error, 1)
	return s.done, nil
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	if s.done != nil {
		select {
		case s.done <- nil:
		default:
		}
	}
}

func (s *fakeSink) fault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done <- err
}

func (s *fakeSink) snapshot() (plays, stops int, clips []*fakeClip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays, s.stops, append([]*fakeClip(nil), s.clips...)
}

type status struct {
	kind StatusKind
	msg  string
}

type fakeView struct {
	mu          sync.Mutex
	statuses    []status
	recording   []bool
	processing  []bool
	transcripts [][]conversation.Entry
	enabled     int
	latency     time.Duration
	captured    time.Duration
	idle        chan struct{}
}

func newFakeView() *fakeView {
	return &fakeView{idle: make(chan struct{}, 16)}
}

func (v *fakeView) ShowStatus(kind StatusKind, msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses = append(v.statuses, status{kind, msg})
}

func (v *fakeView) ShowRecording(active bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.recording = append(v.recording, active)
}

func (v *fakeView) ShowProcessing(active bool) {
	v.mu.Lock()
	v.processing = append(v.processing, active)
	v.mu.Unlock()
	if !active {
		v.idle <- struct{}{}
	}
}

func (v *fakeView) ShowTranscript(entries []conversation.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.transcripts = append(v.transcripts, entries)
}

func (v *fakeView) EnablePlayback() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled++
}

func (v *fakeView) ShowMetrics(latency, captured time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.latency, v.captured = latency, captured
}

func (v *fakeView) lastStatus() status {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.statuses) == 0 {
		return status{}
	}
	return v.statuses[len(v.statuses)-1]
}

func (v *fakeView) statusMessages() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.statuses))
	for i, s := range v.statuses {
		out[i] = s.msg
	}
	return out
}

func (v *fakeView) processingCalls() []bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]bool(nil), v.processing...)
}

func (v *fakeView) waitIdle(t *testing.T) {
	t.Helper()
	select {
	case <-v.idle:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for processing to finish")
	}
}

// stepClock advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
