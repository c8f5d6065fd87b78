package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zhouzirui/voice-agent/internal/model/conversation"
	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

// Options wires a Session to its collaborators.
type Options struct {
	Device   Device
	Uploader Uploader
	Sink     Sink
	View     View

	// SessionID is forwarded with every upload; empty lets the server assign one.
	SessionID    string
	HistoryLimit int
	Now          func() time.Time
}

// Session drives one recording lifecycle and one playback lifecycle at a time.
type Session struct {
	device    Device
	uploader  Uploader
	sink      Sink
	view      View
	sessionID string
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.Mutex
	state           State
	capture         Capture
	recordingStart  time.Time
	processingStart time.Time
	history         *History
	reply           []byte
	sinkUsed        bool
	current         *playback
}

type playback struct {
	clip Clip
}

// New creates an idle Session. Close releases it.
func New(opts Options) (*Session, error) {
	if opts.Device == nil || opts.Uploader == nil || opts.Sink == nil || opts.View == nil {
		return nil, errors.New("session requires device, uploader, sink and view")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		device:    opts.Device,
		uploader:  opts.Uploader,
		sink:      opts.Sink,
		view:      opts.View,
		sessionID: opts.SessionID,
		now:       now,
		ctx:       ctx,
		cancel:    cancel,
		history:   NewHistory(opts.HistoryLimit),
	}, nil
}

// State 返回当前录音状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns the transcript window in chronological order.
func (s *Session) History() []conversation.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Entries()
}

// Reply returns a copy of the latest reply audio, or nil when none was received.
func (s *Session) Reply() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reply == nil {
		return nil
	}
	out := make([]byte, len(s.reply))
	copy(out, s.reply)
	return out
}

// ToggleRecording starts a recording when idle and stops it when recording.
// Any playing reply is stopped before a new recording starts.
func (s *Session) ToggleRecording(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Recording:
		s.mu.Unlock()
		return s.StopRecording()
	case Processing:
		s.mu.Unlock()
		return ErrBusy
	}
	defer s.mu.Unlock()

	s.stopResponseLocked()
	return s.startRecordingLocked(ctx)
}

// StartRecording acquires the capture device and begins collecting chunks.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startRecordingLocked(ctx)
}

func (s *Session) startRecordingLocked(ctx context.Context) error {
	if s.state != Idle {
		return ErrBusy
	}

	capture, err := s.device.Open(ctx)
	if err != nil {
		log.Printf("[session] failed to start recording: %v", err)
		s.view.ShowStatus(StatusError, MsgStartFailed)
		return fmt.Errorf("%w: %w", ErrDeviceAccess, err)
	}

	s.capture = capture
	s.recordingStart = s.now()
	s.state = Recording
	s.view.ShowRecording(true)
	s.view.ShowStatus(StatusRecording, MsgRecording)

	s.wg.Add(1)
	go s.collect(capture)
	return nil
}

// StopRecording finalizes the running capture. Processing starts once the
// capture reports its chunk stream closed.
func (s *Session) StopRecording() error {
	s.mu.Lock()
	if s.state != Recording {
		s.mu.Unlock()
		return nil
	}
	capture := s.capture
	s.enterProcessingLocked()
	s.mu.Unlock()

	if err := capture.Stop(); err != nil {
		log.Printf("[session] failed to stop capture: %v", err)
		s.abandonCapture(capture)
		return fmt.Errorf("%w: %w", ErrDeviceAccess, err)
	}
	return nil
}

// abandonCapture drops a capture that could not be finalized so the session
// returns to Idle. A late chunk-stream close is ignored by processAudio.
func (s *Session) abandonCapture(capture Capture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture != capture {
		return
	}
	s.capture = nil
	s.state = Idle
	s.view.ShowStatus(StatusError, MsgStopFailed)
}

func (s *Session) enterProcessingLocked() {
	s.state = Processing
	s.view.ShowRecording(false)
	s.view.ShowStatus(StatusProcessing, MsgProcessing)
}

// collect owns the chunk accumulator of one capture.
func (s *Session) collect(capture Capture) {
	defer s.wg.Done()

	var chunks [][]byte
	for chunk := range capture.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		chunks = append(chunks, chunk)
	}

	s.processAudio(capture, chunks)
}

func (s *Session) processAudio(capture Capture, chunks [][]byte) {
	s.mu.Lock()
	if s.capture != capture {
		s.mu.Unlock()
		return
	}
	s.capture = nil
	if s.state == Recording {
		// the device ended the recording on its own
		s.enterProcessingLocked()
	}

	s.processingStart = s.now()
	mimeType := capture.MimeType()
	if mimeType == "" {
		mimeType = speech.DefaultCaptureMIME
	}
	req := speech.VoiceAgentRequest{
		SessionID: s.sessionID,
		Audio:     bytes.Join(chunks, nil),
		MimeType:  mimeType,
		Filename:  speech.RecordingFilename,
		History:   s.history.Entries(),
	}
	s.view.ShowProcessing(true)
	s.mu.Unlock()

	resp, err := s.uploader.Process(s.ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		s.view.ShowProcessing(false)
		s.state = Idle
	}()

	if err != nil {
		log.Printf("[session] %v: %v", ErrUpload, err)
		s.view.ShowStatus(StatusError, MsgProcessingFailed)
		return
	}
	if resp == nil || resp.AudioData == nil {
		log.Printf("[session] %v", ErrResponseShape)
		s.view.ShowStatus(StatusError, MsgNoAudioData)
		return
	}

	userText := resp.Transcription
	if userText == "" {
		userText = UserAudioPlaceholder
	}
	s.addToHistoryLocked(conversation.UserEntry(userText))
	if resp.Text != "" {
		s.addToHistoryLocked(conversation.AssistantEntry(resp.Text))
	}

	s.reply = []byte(resp.AudioData)

	now := s.now()
	s.view.ShowMetrics(now.Sub(s.processingStart), now.Sub(s.recordingStart))
	s.view.ShowStatus(StatusSuccess, MsgProcessed)

	s.stopResponseLocked()
	if err := s.playResponseLocked(); err != nil {
		log.Printf("[session] auto play: %v", err)
	}
}

// AddToHistory appends entry, keeps the newest entries and re-renders the transcript.
func (s *Session) AddToHistory(entry conversation.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addToHistoryLocked(entry)
}

func (s *Session) addToHistoryLocked(entry conversation.Entry) {
	s.history.Append(entry)
	s.renderHistoryLocked()
}

// RenderHistory pushes the transcript to the view and enables the play control.
func (s *Session) RenderHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderHistoryLocked()
}

func (s *Session) renderHistoryLocked() {
	s.view.ShowTranscript(s.history.NewestFirst())
	s.view.EnablePlayback()
}

// PlayResponse plays the latest reply through the sink.
func (s *Session) PlayResponse() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playResponseLocked()
}

func (s *Session) playResponseLocked() error {
	if s.reply == nil {
		s.view.ShowStatus(StatusError, MsgNoReply)
		return ErrNoReply
	}

	if s.current != nil {
		s.sink.Stop()
		s.current = nil
	}

	clip, err := s.sink.Load(s.reply, speech.ReplyContentType)
	if err != nil {
		log.Printf("[session] failed to load reply: %v", err)
		s.view.ShowStatus(StatusError, MsgPlaybackFailed)
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}
	s.sinkUsed = true

	done, err := s.sink.Play(clip)
	if err != nil {
		clip.Release()
		log.Printf("[session] failed to play reply: %v", err)
		s.view.ShowStatus(StatusError, MsgPlaybackFailed)
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}

	p := &playback{clip: clip}
	s.current = p
	s.view.ShowStatus(StatusSuccess, MsgPlaying)

	s.wg.Add(1)
	go s.watchPlayback(p, done)
	return nil
}

func (s *Session) watchPlayback(p *playback, done <-chan error) {
	defer s.wg.Done()

	var err error
	select {
	case err = <-done:
	case <-s.ctx.Done():
	}
	p.clip.Release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != p {
		return
	}
	s.current = nil
	if err != nil {
		log.Printf("[session] %v: %v", ErrPlayback, err)
		s.view.ShowStatus(StatusError, MsgPlaybackFailed)
	}
}

// StopResponse stops and rewinds the sink if it has been used. It never fails.
func (s *Session) StopResponse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopResponseLocked()
}

func (s *Session) stopResponseLocked() {
	if s.sinkUsed {
		s.sink.Stop()
	}
	s.current = nil
	s.view.ShowStatus(StatusSuccess, MsgPlaybackStopped)
}

// Close stops any capture and playback, cancels a pending upload and waits
// for background work to finish.
func (s *Session) Close() error {
	s.cancel()

	s.mu.Lock()
	capture := s.capture
	if s.sinkUsed {
		s.sink.Stop()
	}
	s.current = nil
	s.mu.Unlock()

	var err error
	if capture != nil {
		err = capture.Stop()
	}
	s.wg.Wait()
	return err
}
