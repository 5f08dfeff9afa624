package realtime

import (
	"strings"
	"sync"
	"time"
)

const (
	// closingMatchLength limits the configured closing message to a prefix so
	// small spoken variations still match.
	closingMatchLength = 20

	// closingDelay lets the closing audio finish rendering before the
	// detection is surfaced.
	closingDelay = 3 * time.Second
)

// defaultClosingKeywords are generic Dutch sign-off phrases that signal the
// interview is wrapping up even when no closing message is configured.
var defaultClosingKeywords = []string{
	"bedankt voor",
	"fijne dag",
	"succes",
	"tot ziens",
	"prettige dag",
	"veel succes",
}

// ClosingDetector scans finalized AI transcripts for the configured closing
// message or a generic closing keyword and fires a callback once per match
// window, after a debounce delay.
type ClosingDetector struct {
	prefix   string
	keywords []string
	delay    time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	onDetected func()
}

// NewClosingDetector builds a detector for the given closing message. An
// empty message disables the prefix check; keyword matching always applies.
func NewClosingDetector(closingMessage string, delay time.Duration) *ClosingDetector {
	if delay <= 0 {
		delay = closingDelay
	}

	prefix := strings.ToLower(strings.TrimSpace(closingMessage))
	if len(prefix) > closingMatchLength {
		prefix = prefix[:closingMatchLength]
	}

	return &ClosingDetector{
		prefix:   prefix,
		keywords: defaultClosingKeywords,
		delay:    delay,
	}
}

// SetClosingMessage swaps the prefix the detector watches for.
func (d *ClosingDetector) SetClosingMessage(closingMessage string) {
	prefix := strings.ToLower(strings.TrimSpace(closingMessage))
	if len(prefix) > closingMatchLength {
		prefix = prefix[:closingMatchLength]
	}
	d.mu.Lock()
	d.prefix = prefix
	d.mu.Unlock()
}

// OnDetected registers the callback invoked when a closing phrase fires.
func (d *ClosingDetector) OnDetected(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDetected = callback
}

// Scan checks a finalized AI transcript fragment. Partial fragments must not
// be passed here. A pending detection window suppresses further matches.
func (d *ClosingDetector) Scan(transcript string) {
	if !d.matches(transcript) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		return
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		callback := d.onDetected
		d.timer = nil
		d.mu.Unlock()

		if callback != nil {
			callback()
		}
	})
}

// Reset cancels any pending detection. Called on disconnect.
func (d *ClosingDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *ClosingDetector) matches(transcript string) bool {
	lower := strings.ToLower(transcript)

	d.mu.Lock()
	prefix := d.prefix
	d.mu.Unlock()

	if prefix != "" && strings.Contains(lower, prefix) {
		return true
	}

	for _, keyword := range d.keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
