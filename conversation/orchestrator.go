// Package conversation runs the push-to-talk cycle of the device: count
// down, record, send, wait for the agent and play its reply.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/room4-2/voicelink/agent"
	"github.com/room4-2/voicelink/audio"
	"github.com/room4-2/voicelink/functions"
	"github.com/room4-2/voicelink/messages"
	"github.com/room4-2/voicelink/session"
)

const (
	defaultIOTimeout     = 100 * time.Millisecond
	defaultPlaybackIdle  = time.Second
	defaultQueueLimit    = 4 << 20
	defaultSpeakerWrite  = 4096
	defaultPlaybackLead  = 200 * time.Millisecond
	defaultResponseLimit = 30 * time.Second
)

// Agent is the part of agent.Client the orchestrator drives.
type Agent interface {
	Handle(h agent.Handlers)
	Poll()
	State() session.State
	Session() (session.Snapshot, bool)
	SendAudioChunk(pcm []byte) error
	SendToolResult(callID, result string, isError bool) error
}

// Config describes one device.
type Config struct {
	SampleRate       int
	OutputSampleRate int
	OutputChannels   int
	// AgentSampleRate is the rate of agent audio until the conversation
	// announces its output format.
	AgentSampleRate int

	MicGain       float64
	SpeakerVolume float64
	MaxRecord     time.Duration
	MemoryBudget  int

	// RecordDuration is the length of one utterance; audio.Unbounded
	// records until the microphone runs dry or MaxRecord is reached.
	RecordDuration time.Duration
	// CountdownSeconds is announced once per second before recording.
	CountdownSeconds int
	ChunkSize        int
	ChunkPacing      time.Duration
	ResponseTimeout  time.Duration
	// PlaybackIdle is how long the agent must stay quiet after its last
	// audio before the cycle counts as finished.
	PlaybackIdle time.Duration
	// PlaybackLead bounds how far ahead of the output the speaker is fed.
	// It is also the most audio an interruption can leave in flight.
	PlaybackLead time.Duration
	// AutoMode starts the next cycle as soon as the previous one ends.
	AutoMode bool
	// StreamAudio sends audio while recording instead of after it.
	StreamAudio bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ReadSize     int
	WriteSize    int
	QueueLimit   int
}

func (c *Config) setDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.OutputSampleRate <= 0 {
		c.OutputSampleRate = c.SampleRate
	}
	if c.OutputChannels <= 0 {
		c.OutputChannels = 1
	}
	if c.AgentSampleRate <= 0 {
		c.AgentSampleRate = c.SampleRate
	}
	if c.MaxRecord <= 0 {
		c.MaxRecord = 60 * time.Second
	}
	if c.RecordDuration == 0 {
		c.RecordDuration = 5 * time.Second
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = audio.DefaultChunkSize
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = defaultResponseLimit
	}
	if c.PlaybackIdle <= 0 {
		c.PlaybackIdle = defaultPlaybackIdle
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultIOTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultIOTimeout
	}
	if c.ReadSize <= 0 {
		c.ReadSize = audio.BytesFor(c.SampleRate, defaultIOTimeout)
	}
	if c.PlaybackLead <= 0 {
		c.PlaybackLead = defaultPlaybackLead
	}
	if c.WriteSize <= 0 {
		c.WriteSize = defaultSpeakerWrite
	}
	if c.QueueLimit <= 0 {
		c.QueueLimit = defaultQueueLimit
	}
}

// Orchestrator owns the capture and playback buffers and moves the device
// through its states. Step and the agent handlers it installs must run on
// the same goroutine.
type Orchestrator struct {
	cfg   Config
	agent Agent
	mic   Microphone
	spk   Speaker
	tools *functions.Registry
	now   func() time.Time

	capture   *audio.Capture
	playback  *audio.Playback
	queue     *audio.Joiner
	resampler *audio.Resampler
	readBuf   []byte

	state      State
	stateSince time.Time
	triggered  bool
	started    bool

	countdownLeft int
	nextTick      time.Time
	lastProgress  time.Time

	splitter  *audio.Splitter
	nextChunk time.Time
	streamed  int

	responded     bool
	lastAgentSeen time.Time
	// playhead is when the audio handed to the speaker finishes playing.
	playhead time.Time
	cycles        int
}

type Option func(*Orchestrator)

// WithTools answers client tool calls from r.
func WithTools(r *functions.Registry) Option {
	return func(o *Orchestrator) { o.tools = r }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(cfg Config, a Agent, mic Microphone, spk Speaker, opts ...Option) (*Orchestrator, error) {
	cfg.setDefaults()

	capture, err := audio.NewCapture(audio.CaptureConfig{
		Gain:         cfg.MicGain,
		MaxDuration:  cfg.MaxRecord,
		MemoryBudget: cfg.MemoryBudget,
	})
	if err != nil {
		return nil, fmt.Errorf("capture buffer: %w", err)
	}
	resampler, err := audio.NewResampler(cfg.AgentSampleRate, cfg.OutputSampleRate)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:     cfg,
		agent:   a,
		mic:     mic,
		spk:     spk,
		now:     time.Now,
		capture: capture,
		playback: audio.NewPlayback(audio.PlaybackConfig{
			Volume:     cfg.SpeakerVolume,
			Channels:   cfg.OutputChannels,
			SampleRate: cfg.OutputSampleRate,
		}),
		queue:     audio.NewJoiner(cfg.QueueLimit),
		resampler: resampler,
		readBuf:   make([]byte, cfg.ReadSize),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Start opens the audio hardware and subscribes to agent events. A device
// that fails to open leaves the orchestrator in ErrorState for good.
func (o *Orchestrator) Start() error {
	if o.started {
		return nil
	}
	now := o.now()
	if err := o.mic.Open(o.cfg.SampleRate); err != nil {
		o.setState(ErrorState, now)
		return &HardwareInitError{Device: "microphone", Err: err}
	}
	if err := o.spk.Open(o.cfg.OutputSampleRate, o.cfg.OutputChannels); err != nil {
		_ = o.mic.Close()
		o.setState(ErrorState, now)
		return &HardwareInitError{Device: "speaker", Err: err}
	}

	o.agent.Handle(o.handlers())
	o.started = true
	o.setState(WaitingForTrigger, now)
	slog.Info("🎛️ device ready", "sample_rate", o.cfg.SampleRate, "output_channels", o.cfg.OutputChannels,
		"auto_mode", o.cfg.AutoMode, "stream_audio", o.cfg.StreamAudio)
	return nil
}

// Trigger asks for a new cycle, as a button press would. It is ignored
// unless the device is waiting.
func (o *Orchestrator) Trigger() bool {
	if o.state != WaitingForTrigger || !o.started {
		slog.Debug("🔘 trigger ignored", "state", o.state)
		return false
	}
	o.triggered = true
	return true
}

// Step advances the state machine without blocking longer than one
// hardware timeout. Buffer errors are returned; the device goes back to
// waiting for a trigger.
func (o *Orchestrator) Step(now time.Time) error {
	if o.state == ErrorState || !o.started {
		return nil
	}

	var err error
	switch o.state {
	case WaitingForTrigger:
		err = o.stepWaiting(now)
	case Countdown:
		err = o.stepCountdown(now)
	case Recording:
		err = o.stepRecording(now)
	case Sending:
		o.stepSending(now)
	case AwaitingResponse:
		o.stepAwaiting(now)
	case Playing:
		o.stepPlaying(now)
	}

	o.pumpPlayback(now)
	return err
}

// Run polls the agent and steps the device every tick until ctx ends.
// Each value on triggers counts as a button press; triggers may be nil.
func (o *Orchestrator) Run(ctx context.Context, tick time.Duration, triggers <-chan struct{}) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-triggers:
			o.Trigger()
		case <-ticker.C:
			o.agent.Poll()
			if err := o.Step(o.now()); err != nil {
				slog.Warn("⚠️ conversation step failed", "state", o.state, "error", err)
			}
		}
	}
}

func (o *Orchestrator) stepWaiting(now time.Time) error {
	if !o.triggered && !o.cfg.AutoMode {
		return nil
	}
	if o.agent.State() != session.SessionActive {
		if o.triggered {
			slog.Warn("⚠️ not connected to the agent yet, press again later")
		}
		o.triggered = false
		return nil
	}
	o.triggered = false

	if o.cfg.CountdownSeconds <= 0 {
		return o.beginRecording(now)
	}
	o.countdownLeft = o.cfg.CountdownSeconds
	o.nextTick = now.Add(time.Second)
	o.setState(Countdown, now)
	slog.Info("⏳ recording starts soon", "seconds", o.countdownLeft)
	return nil
}

func (o *Orchestrator) stepCountdown(now time.Time) error {
	if now.Before(o.nextTick) {
		return nil
	}
	o.countdownLeft--
	if o.countdownLeft <= 0 {
		return o.beginRecording(now)
	}
	slog.Info("⏳ countdown", "seconds", o.countdownLeft)
	o.nextTick = o.nextTick.Add(time.Second)
	return nil
}

func (o *Orchestrator) beginRecording(now time.Time) error {
	if err := o.capture.Start(o.cfg.RecordDuration, o.cfg.SampleRate); err != nil {
		o.setState(WaitingForTrigger, now)
		return fmt.Errorf("start recording: %w", err)
	}
	o.streamed = 0
	o.lastProgress = now
	o.setState(Recording, now)
	slog.Info("🎙️ recording", "duration", o.cfg.RecordDuration, "streaming", o.cfg.StreamAudio)
	return nil
}

func (o *Orchestrator) stepRecording(now time.Time) error {
	n, err := o.mic.Read(o.readBuf, o.cfg.ReadTimeout)
	if n > 0 {
		o.capture.Feed(o.readBuf[:n])
	}
	switch {
	case errors.Is(err, io.EOF):
		o.capture.Finish()
	case err != nil:
		slog.Warn("⚠️ microphone read failed", "error", err)
		o.capture.Finish()
	}

	if o.cfg.StreamAudio {
		if err := o.streamCaptured(o.capture.IsComplete()); err != nil {
			o.abortCycle(now, "streaming failed")
			return nil
		}
	}

	if now.Sub(o.lastProgress) >= time.Second && o.capture.IsRecording() {
		st := o.capture.Stats()
		slog.Debug("🎙️ recording progress", "recorded", st.RecordedSamples, "planned", st.PlannedSamples)
		o.lastProgress = now
	}

	if !o.capture.IsComplete() {
		return nil
	}
	pcm, err := o.capture.Take()
	if err != nil {
		o.setState(WaitingForTrigger, now)
		return err
	}
	if len(pcm) == 0 {
		slog.Warn("⚠️ no audio captured")
		o.setState(WaitingForTrigger, now)
		return nil
	}
	slog.Info("🎙️ recording complete", "bytes", len(pcm), "duration", audio.DurationOf(o.cfg.SampleRate, len(pcm)))

	if o.cfg.StreamAudio {
		o.awaitResponse(now)
		return nil
	}
	o.splitter = audio.NewSplitter(pcm, o.cfg.ChunkSize)
	o.nextChunk = now
	o.setState(Sending, now)
	return nil
}

// streamCaptured sends every full chunk recorded since the last call, and
// the remainder once final is set.
func (o *Orchestrator) streamCaptured(final bool) error {
	rec := o.capture.Recorded()
	for len(rec)-o.streamed >= o.cfg.ChunkSize || (final && len(rec) > o.streamed) {
		end := min(o.streamed+o.cfg.ChunkSize, len(rec))
		if err := o.agent.SendAudioChunk(rec[o.streamed:end]); err != nil {
			return err
		}
		o.streamed = end
	}
	return nil
}

func (o *Orchestrator) stepSending(now time.Time) {
	if now.Before(o.nextChunk) {
		return
	}
	chunk, ok := o.splitter.Next()
	if !ok {
		slog.Info("📤 recording sent", "chunks", o.splitter.Sent())
		o.splitter = nil
		o.awaitResponse(now)
		return
	}
	if err := o.agent.SendAudioChunk(chunk); err != nil {
		o.abortCycle(now, "send failed")
		return
	}
	o.nextChunk = now.Add(o.cfg.ChunkPacing)
}

func (o *Orchestrator) awaitResponse(now time.Time) {
	o.responded = false
	o.setState(AwaitingResponse, now)
}

func (o *Orchestrator) stepAwaiting(now time.Time) {
	if o.responded && o.queue.IsEmpty() && !o.playback.IsPlaying() && now.Sub(o.lastAgentSeen) >= o.cfg.PlaybackIdle {
		o.finishCycle(now)
		return
	}
	if now.Sub(o.stateSince) >= o.cfg.ResponseTimeout {
		slog.Warn("⌛ no response from agent", "waited", o.cfg.ResponseTimeout)
		o.finishCycle(now)
	}
}

func (o *Orchestrator) stepPlaying(now time.Time) {
	if o.playback.IsPlaying() || !o.queue.IsEmpty() || now.Before(o.playhead) {
		return
	}
	if now.Sub(o.lastAgentSeen) >= o.cfg.PlaybackIdle {
		o.finishCycle(now)
	}
}

// pumpPlayback starts queued agent audio when the speaker is idle and
// writes at most one block per step, never more than PlaybackLead ahead
// of what the speaker has played.
func (o *Orchestrator) pumpPlayback(now time.Time) {
	if o.playhead.Sub(now) >= o.cfg.PlaybackLead {
		return
	}
	if !o.playback.IsPlaying() {
		if o.queue.IsEmpty() {
			return
		}
		if err := o.playback.Start(o.queue.Flush()); err != nil {
			slog.Warn("⚠️ playback start failed", "error", err)
			return
		}
	}
	out := o.playback.Drain(o.cfg.WriteSize)
	if len(out) == 0 {
		return
	}
	if _, err := o.spk.Write(out, o.cfg.WriteTimeout); err != nil {
		slog.Warn("⚠️ speaker write failed", "error", err)
		o.playback.Stop()
		return
	}
	if o.playhead.Before(now) {
		o.playhead = now
	}
	o.playhead = o.playhead.Add(audio.DurationOf(o.cfg.OutputSampleRate*o.cfg.OutputChannels, len(out)))
}

func (o *Orchestrator) finishCycle(now time.Time) {
	o.cycles++
	slog.Info("✅ conversation turn finished", "turns", o.cycles)
	o.setState(WaitingForTrigger, now)
}

// abortCycle drops any recording in progress and returns to waiting.
func (o *Orchestrator) abortCycle(now time.Time, reason string) {
	o.capture.Finish()
	_ = o.capture.Clear()
	o.splitter = nil
	o.streamed = 0
	slog.Warn("🛑 conversation turn aborted", "reason", reason, "state", o.state)
	o.setState(WaitingForTrigger, now)
}

func (o *Orchestrator) setState(s State, now time.Time) {
	if o.state == s {
		return
	}
	slog.Debug("🎛️ device state", "from", o.state, "to", s)
	o.state = s
	o.stateSince = now
}

func (o *Orchestrator) handlers() agent.Handlers {
	return agent.Handlers{
		OnStateChange:      o.onAgentState,
		OnConversationInit: o.onConversationInit,
		OnTranscript:       func(text string) { slog.Info("🗣️ user", "text", text) },
		OnAgentResponse: func(text string) {
			slog.Info("🤖 agent", "text", text)
			o.agentSeen()
		},
		OnAgentResponseCorrection: func(text string) { slog.Info("🤖 agent (corrected)", "text", text) },
		OnTentativeResponse:       func(text string) { slog.Debug("🤖 agent (tentative)", "text", text) },
		OnAudio:                   o.onAudio,
		OnToolCall:                o.onToolCall,
		OnVadScore:                func(score float64) { slog.Debug("🎚️ vad", "score", score) },
		OnInterruption:            o.onInterruption,
		OnAgentError:              o.onAgentError,
		OnError:                   func(err error) { slog.Debug("⚠️ agent client error", "error", err) },
	}
}

func (o *Orchestrator) agentSeen() {
	o.responded = true
	o.lastAgentSeen = o.now()
}

// onConversationInit switches the resampler to the agent's announced
// output rate.
func (o *Orchestrator) onConversationInit(m *messages.ConversationInit) {
	slog.Info("🎬 agent ready", "conversation_id", m.ConversationID, "output_format", m.AgentOutputFormat)
	if m.AgentOutputFormat == "" {
		return
	}
	rate, err := audio.ParseFormat(m.AgentOutputFormat)
	if err != nil {
		slog.Warn("⚠️ agent audio format not playable", "error", err)
		return
	}
	if rate == o.cfg.AgentSampleRate {
		return
	}
	rs, err := audio.NewResampler(rate, o.cfg.OutputSampleRate)
	if err != nil {
		slog.Warn("⚠️ cannot resample agent audio", "error", err)
		return
	}
	o.cfg.AgentSampleRate = rate
	o.resampler = rs
}

// resetResampler drops filter state so cancelled speech does not bleed
// into the next clip.
func (o *Orchestrator) resetResampler() {
	if o.resampler.Passthrough() {
		return
	}
	rs, err := audio.NewResampler(o.cfg.AgentSampleRate, o.cfg.OutputSampleRate)
	if err != nil {
		slog.Warn("⚠️ cannot reset resampler", "error", err)
		return
	}
	o.resampler = rs
}

func (o *Orchestrator) onAudio(eventID uint32, pcm []byte) {
	if !o.resampler.Passthrough() {
		out, err := o.resampler.Process(pcm)
		if err != nil {
			slog.Warn("⚠️ dropping agent audio", "event_id", eventID, "error", err)
			return
		}
		pcm = append([]byte(nil), out...)
	}
	if err := o.queue.Append(pcm); err != nil {
		slog.Warn("⚠️ dropping agent audio", "event_id", eventID, "bytes", len(pcm), "error", err)
		return
	}
	o.agentSeen()
	if o.state == AwaitingResponse {
		o.setState(Playing, o.now())
	}
}

// onInterruption cancels agent speech in the same step the interruption
// is dispatched.
func (o *Orchestrator) onInterruption(eventID uint32) {
	o.playback.Stop()
	o.queue.Clear()
	if err := o.spk.Discard(); err != nil {
		slog.Warn("⚠️ speaker discard failed", "error", err)
	}
	o.playhead = time.Time{}
	o.resetResampler()
	if o.state == ErrorState {
		return
	}
	now := o.now()
	if o.capture.IsRecording() || o.splitter != nil {
		o.abortCycle(now, "interrupted")
	}
	slog.Info("✋ playback cancelled", "event_id", eventID)
	o.setState(WaitingForTrigger, now)
}

func (o *Orchestrator) onAgentError(message string) {
	if o.state == AwaitingResponse || o.state == Playing {
		slog.Warn("❌ agent failed to respond", "message", message)
		o.setState(WaitingForTrigger, o.now())
	}
}

func (o *Orchestrator) onAgentState(_, to session.State) {
	if to == session.SessionActive {
		return
	}
	switch o.state {
	case Countdown, Recording, Sending, AwaitingResponse:
		o.abortCycle(o.now(), "agent connection "+to.String())
	}
}

func (o *Orchestrator) onToolCall(m *messages.ToolCall) {
	if o.tools == nil {
		_ = o.agent.SendToolResult(m.CallID, "no client tools on this device", true)
		return
	}
	result, err := o.tools.Call(context.Background(), m.Name, m.Parameters)
	if err != nil {
		_ = o.agent.SendToolResult(m.CallID, err.Error(), true)
		return
	}
	_ = o.agent.SendToolResult(m.CallID, result, false)
}

// Close releases both buffers and the audio hardware.
func (o *Orchestrator) Close() error {
	o.capture.Finish()
	_ = o.capture.Clear()
	o.playback.Clear()
	o.queue.Clear()
	if !o.started {
		return nil
	}
	o.started = false
	return errors.Join(o.mic.Close(), o.spk.Close())
}

// State returns the current device state.
func (o *Orchestrator) State() State { return o.state }

// Turns returns how many cycles have finished.
func (o *Orchestrator) Turns() int { return o.cycles }

func (o *Orchestrator) Status() functions.DeviceStatus {
	st := functions.DeviceStatus{
		State:      o.state.String(),
		Volume:     o.playback.Volume(),
		MicGain:    o.capture.Gain(),
		SampleRate: o.cfg.SampleRate,
		AutoMode:   o.cfg.AutoMode,
	}
	if snap, ok := o.agent.Session(); ok {
		st.ConversationID = snap.ConversationID
	}
	return st
}

func (o *Orchestrator) SetVolume(v float64) { o.playback.SetVolume(v) }

func (o *Orchestrator) SetMicGain(g float64) error { return o.capture.SetGain(g) }
