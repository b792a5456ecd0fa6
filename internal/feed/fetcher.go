package feed

import (
	"log"
	"time"

	"BarSentinel/internal/model"
)

// HistoryFetcher fetches complete historical bars for one timeframe. One
// instance exists per timeframe; they differ only in the Timeframe value
// they carry.
type HistoryFetcher struct {
	transport Transport
	tf        Timeframe
	align     LabelAlignment

	now func() time.Time // overridable in tests
}

// NewHistoryFetcher creates a fetcher for the given timeframe. The label
// alignment is applied to both the request and the completeness rule.
func NewHistoryFetcher(transport Transport, tf Timeframe, align LabelAlignment) *HistoryFetcher {
	return &HistoryFetcher{
		transport: transport,
		tf:        tf,
		align:     align,
		now:       time.Now,
	}
}

// Timeframe returns the timeframe this fetcher serves.
func (f *HistoryFetcher) Timeframe() Timeframe { return f.tf }

// Fetch retrieves up to barCount complete bars for the symbol, newest-first.
// Any failure along the way (no session, send failure, empty response,
// vendor error, zero complete bars) returns (nil, false); there is never a
// partially filled result on failure.
func (f *HistoryFetcher) Fetch(symbol string, barCount int) ([]model.Bar, bool) {
	if f.transport == nil || !f.transport.IsReady() {
		log.Printf("[ERROR] %s fetch for %s: transport not ready", f.tf.Name, symbol)
		return nil, false
	}

	log.Printf("[INFO] fetching %d %s bars for %s", barCount, f.tf.Name, symbol)

	conn, err := f.transport.OpenSession()
	if err != nil {
		log.Printf("[ERROR] %s fetch for %s: open session: %v", f.tf.Name, symbol, err)
		return nil, false
	}

	command := BuildRequest(symbol, f.tf, barCount, f.align)
	if !f.transport.Send(conn, command) {
		f.transport.CloseSession(conn)
		return nil, false
	}

	response := f.transport.ReadUntilEnd(conn)
	f.transport.CloseSession(conn)

	if response == "" {
		log.Printf("[ERROR] %s fetch for %s: no response received", f.tf.Name, symbol)
		return nil, false
	}

	raw, err := ParseResponse(response, f.tf)
	if err != nil {
		log.Printf("[ERROR] %s fetch for %s: %v", f.tf.Name, symbol, err)
		return nil, false
	}

	bars, filtered := Normalize(raw, f.tf, f.align, f.now())
	if filtered > 0 {
		log.Printf("[INFO] %s fetch for %s: filtered %d incomplete bars", f.tf.Name, symbol, filtered)
	}
	if len(bars) == 0 {
		log.Printf("[ERROR] %s fetch for %s: no complete bars in response", f.tf.Name, symbol)
		return nil, false
	}

	log.Printf("[INFO] %s fetch for %s: %d complete bars (latest %s)",
		f.tf.Name, symbol, len(bars), bars[0].DateTime())
	return bars, true
}
