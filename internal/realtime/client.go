package realtime

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/zaf/g711"
)

const sampleRate = 8000

// Microphone supplies frames of 16-bit little-endian mono PCM at 8 kHz.
type Microphone interface {
	Start() error
	ReadFrame() ([]byte, error)
	Close() error
}

// Speaker renders 16-bit little-endian mono PCM at 8 kHz.
type Speaker interface {
	Play(pcm []byte) error
	SetVolume(level float64)
	SetMuted(muted bool)
	Close() error
}

// ClientOptions configures a Client. Microphone and Speaker factories are
// required; the remaining fields have working defaults.
type ClientOptions struct {
	Session    SessionOptions
	BaseURL    string
	Model      string
	HTTPClient *http.Client

	Microphone func() (Microphone, error)
	Speaker    func() (Speaker, error)

	// AudioSink, when set, receives every PCM frame that crosses the
	// session in either direction.
	AudioSink func(pcm []byte)
}

// Client manages one realtime voice session: peer connection, audio in both
// directions, the event data channel, and closing-phrase detection. A Client
// is reusable; Connect after Disconnect starts a fresh session.
type Client struct {
	opts       ClientOptions
	baseURL    string
	model      string
	httpClient *http.Client

	dispatcher *dispatcher
	closer     *ClosingDetector

	mu        sync.Mutex
	pc        *webrtc.PeerConnection
	dc        *webrtc.DataChannel
	interp    *interpreter
	mic       Microphone
	speaker   Speaker
	micMuted  bool
	connected bool
	closing   bool
	done      chan struct{}
}

// NewClient builds a client. It does not touch the network or audio devices
// until Connect.
func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{
		opts:       opts,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		dispatcher: newDispatcher(),
		closer:     NewClosingDetector(opts.Session.ClosingMessage, closingDelay),
	}
	c.closer.OnDetected(func() {
		c.emit(Event{Type: EventClosingDetected})
	})
	return c
}

// SetSessionOptions replaces the per-session instructions used by the next
// Connect. It does not affect a session that is already running.
func (c *Client) SetSessionOptions(session SessionOptions) {
	c.mu.Lock()
	c.opts.Session = session
	c.mu.Unlock()
	c.closer.SetClosingMessage(session.ClosingMessage)
}

// OnEvent registers a handler for domain events. The returned function
// removes the subscription.
func (c *Client) OnEvent(handler EventHandler) func() {
	return c.dispatcher.subscribe(handler)
}

// Connect opens the microphone, negotiates a peer connection with the given
// ephemeral token, and starts both audio directions. On failure everything
// acquired so far is released and an error status is emitted.
func (c *Client) Connect(ctx context.Context, token string) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.connected = true
	c.closing = false
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.emit(Event{Type: EventStatus, Status: StatusConnecting})

	if err := c.connect(ctx, token); err != nil {
		c.teardown()
		c.emit(Event{Type: EventError, Message: userMessage(err)})
		c.emit(Event{Type: EventStatus, Status: StatusError})
		return err
	}
	return nil
}

func (c *Client) connect(ctx context.Context, token string) error {
	mic, err := c.opts.Microphone()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
	}

	speaker, err := c.opts.Speaker()
	if err != nil {
		mic.Close()
		return fmt.Errorf("opening playback device: %w", err)
	}

	c.mu.Lock()
	c.mic = mic
	c.speaker = speaker
	c.mu.Unlock()

	engine := &webrtc.MediaEngine{}
	err = engine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypePCMU,
			ClockRate: sampleRate,
			Channels:  1,
		},
		PayloadType: 0,
	}, webrtc.RTPCodecTypeAudio)
	if err != nil {
		return fmt.Errorf("registering audio codec: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(engine))
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("creating peer connection: %w", err)
	}

	c.mu.Lock()
	c.pc = pc
	c.mu.Unlock()

	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypePCMU,
		ClockRate: sampleRate,
		Channels:  1,
	}, "audio", "microphone")
	if err != nil {
		return fmt.Errorf("creating local track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fmt.Errorf("adding local track: %w", err)
	}

	dc, err := pc.CreateDataChannel("oai-events", nil)
	if err != nil {
		return fmt.Errorf("creating data channel: %w", err)
	}

	interp := newInterpreter(c.opts.Session, dc.Send, c.emit, c.closer)

	c.mu.Lock()
	c.dc = dc
	c.interp = interp
	done := c.done
	c.mu.Unlock()

	dc.OnOpen(func() {
		if err := interp.configureSession(); err != nil {
			log.Printf("realtime: failed to configure session: %v", err)
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		interp.handleMessage(msg.Data)
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		go c.renderRemote(remote, done)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			c.emit(Event{Type: EventStatus, Status: StatusConnected})
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			c.handleTransportLoss()
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("creating offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return ctx.Err()
	}

	answerSDP, err := negotiate(ctx, c.httpClient, c.baseURL, c.model, token, pc.LocalDescription().SDP)
	if err != nil {
		return err
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answerSDP}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}

	if err := mic.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
	}
	go c.pumpMicrophone(mic, track, done)

	return nil
}

// pumpMicrophone reads capture frames, encodes them to G.711 and writes them
// to the outbound track. Muted frames are replaced with u-law silence so the
// remote VAD sees a continuous stream.
func (c *Client) pumpMicrophone(mic Microphone, track *webrtc.TrackLocalStaticSample, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		frame, err := mic.ReadFrame()
		if err != nil {
			select {
			case <-done:
			default:
				log.Printf("realtime: microphone read failed: %v", err)
			}
			return
		}
		if len(frame) == 0 {
			continue
		}
		if c.opts.AudioSink != nil {
			c.opts.AudioSink(frame)
		}

		encoded := g711.EncodeUlaw(frame)
		if c.isMicMuted() {
			for i := range encoded {
				encoded[i] = 0xFF
			}
		}

		duration := time.Duration(len(frame)/2) * time.Second / sampleRate
		if err := track.WriteSample(media.Sample{Data: encoded, Duration: duration}); err != nil {
			select {
			case <-done:
			default:
				log.Printf("realtime: failed to write audio sample: %v", err)
			}
			return
		}
	}
}

// renderRemote decodes inbound G.711 audio and hands it to the speaker.
func (c *Client) renderRemote(remote *webrtc.TrackRemote, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		packet, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		if len(packet.Payload) == 0 {
			continue
		}

		pcm := g711.DecodeUlaw(packet.Payload)
		if c.opts.AudioSink != nil {
			c.opts.AudioSink(pcm)
		}

		c.mu.Lock()
		speaker := c.speaker
		c.mu.Unlock()
		if speaker == nil {
			return
		}
		if err := speaker.Play(pcm); err != nil {
			log.Printf("realtime: playback failed: %v", err)
			return
		}
	}
}

// handleTransportLoss reacts to the peer connection dropping out from under
// us. A locally initiated Disconnect is not a loss.
func (c *Client) handleTransportLoss() {
	c.mu.Lock()
	if !c.connected || c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	c.mu.Unlock()

	log.Printf("realtime: connection lost")
	c.teardown()
	c.emit(Event{Type: EventError, Message: msgConnectionLost})
	c.emit(Event{Type: EventStatus, Status: StatusDisconnected})
}

// Disconnect tears the session down. It is safe to call at any time and more
// than once; every call emits exactly one disconnected status, connected or
// not, so callers can always rely on the terminal event.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if !c.connected || c.closing {
		c.mu.Unlock()
		c.emit(Event{Type: EventStatus, Status: StatusDisconnected})
		return
	}
	c.closing = true
	c.mu.Unlock()

	c.teardown()
	c.emit(Event{Type: EventStatus, Status: StatusDisconnected})
}

// teardown releases every resource the session holds and resets per-session
// state. Buffers and pending detections do not survive a disconnect.
func (c *Client) teardown() {
	c.mu.Lock()
	if c.done != nil {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
	mic := c.mic
	speaker := c.speaker
	dc := c.dc
	pc := c.pc
	c.mic = nil
	c.speaker = nil
	c.dc = nil
	c.pc = nil
	c.interp = nil
	c.connected = false
	c.mu.Unlock()

	c.closer.Reset()

	if mic != nil {
		if err := mic.Close(); err != nil {
			log.Printf("realtime: failed to close microphone: %v", err)
		}
	}
	if dc != nil {
		if err := dc.Close(); err != nil {
			log.Printf("realtime: failed to close data channel: %v", err)
		}
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			log.Printf("realtime: failed to close peer connection: %v", err)
		}
	}
	if speaker != nil {
		if err := speaker.Close(); err != nil {
			log.Printf("realtime: failed to close playback device: %v", err)
		}
	}
}

// SendText injects a typed participant message into the conversation.
func (c *Client) SendText(text string) error {
	c.mu.Lock()
	interp := c.interp
	c.mu.Unlock()

	if interp == nil {
		return fmt.Errorf("not connected")
	}
	if !interp.sessionConfigured() {
		return fmt.Errorf("session not configured yet")
	}
	return interp.sendUserText(text)
}

// SetMicrophoneMuted silences outbound audio without stopping the stream.
func (c *Client) SetMicrophoneMuted(muted bool) {
	c.mu.Lock()
	c.micMuted = muted
	c.mu.Unlock()
}

func (c *Client) isMicMuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.micMuted
}

// SetOutputMuted silences playback.
func (c *Client) SetOutputMuted(muted bool) {
	c.mu.Lock()
	speaker := c.speaker
	c.mu.Unlock()
	if speaker != nil {
		speaker.SetMuted(muted)
	}
}

// SetOutputVolume adjusts playback gain. Level is clamped to [0, 1] by the
// speaker implementation.
func (c *Client) SetOutputVolume(level float64) {
	c.mu.Lock()
	speaker := c.speaker
	c.mu.Unlock()
	if speaker != nil {
		speaker.SetVolume(level)
	}
}

// Connected reports whether a session is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.closing
}

func (c *Client) emit(event Event) {
	c.dispatcher.emit(event)
}
