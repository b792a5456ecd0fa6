package feed

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"BarSentinel/internal/model"
)

// LabelAlignment selects which end of the interval an intraday bar's
// timestamp refers to. The feed is asked for the matching convention and the
// normalizer's completeness margin depends on it, so the same value must be
// used for both.
type LabelAlignment int

const (
	// LabelStart requests timestamps at the start of each interval.
	LabelStart LabelAlignment = iota
	// LabelEnd requests timestamps at the end of each interval.
	LabelEnd
)

// ParseLabelAlignment resolves "start" or "end".
func ParseLabelAlignment(s string) (LabelAlignment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "start":
		return LabelStart, nil
	case "end":
		return LabelEnd, nil
	}
	return LabelStart, fmt.Errorf("unknown label alignment: %q", s)
}

func (a LabelAlignment) String() string {
	if a == LabelEnd {
		return "end"
	}
	return "start"
}

// flag is the wire value of the HIX LabelAtBeginning field.
func (a LabelAlignment) flag() string {
	if a == LabelEnd {
		return "0"
	}
	return "1"
}

const (
	// endMarker terminates every historical response.
	endMarker = "!ENDMSG!"
	// errorMarker anywhere in a response means the feed rejected the request.
	errorMarker = "E,"
)

// BuildRequest produces the wire command for one historical data request.
// Daily data uses the HDX bulk-history command with the partial datapoint
// excluded; intraday data uses HIX with the interval length in seconds.
func BuildRequest(symbol string, tf Timeframe, barCount int, align LabelAlignment) string {
	id := requestID(symbol, tf)
	if tf.IsDaily() {
		return fmt.Sprintf("HDX,%s,%d,0,%s,100,0\r\n", symbol, barCount, id)
	}
	// HIX: Symbol,Interval,MaxDatapoints,DataDirection,RequestID,DatapointsPerSend,IntervalType,LabelAtBeginning
	return fmt.Sprintf("HIX,%s,%s,%d,0,%s,100,s,%s\r\n", symbol, tf.IntervalCode, barCount, id, align.flag())
}

func requestID(symbol string, tf Timeframe) string {
	return "HIST_" + symbol + "_" + tf.Name
}

// ParseResponse converts a raw multi-line feed reply into bars. The feed
// returns rows newest-first and ParseResponse preserves that order; callers
// must not assume chronological order without an explicit reverse. A vendor
// error marker anywhere in the text fails the whole parse; a malformed
// individual row is skipped.
func ParseResponse(raw string, tf Timeframe) ([]model.Bar, error) {
	if strings.Contains(raw, errorMarker) {
		return nil, fmt.Errorf("feed error in response: %s", strings.TrimSpace(firstLine(raw)))
	}

	var bars []model.Bar
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.Contains(line, endMarker) || strings.HasPrefix(line, "S,") {
			continue
		}

		fields := splitCSV(line)
		if len(fields) < 8 {
			continue
		}

		bar, err := parseRow(fields, tf)
		if err != nil {
			log.Printf("[WARN] skipping unparsable row %q: %v", line, err)
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseRow decodes one CSV row. Daily layout:
// RequestID,LH,Date,High,Low,Open,Close,Volume[,OpenInterest]
// Intraday layout:
// RequestID,LH,DateTime,High,Low,Open,Close,Volume
func parseRow(fields []string, tf Timeframe) (model.Bar, error) {
	var bar model.Bar

	if tf.IsDaily() {
		bar.Date = fields[2]
	} else {
		date, tod, _ := strings.Cut(fields[2], " ")
		bar.Date = date
		bar.Time = tod
	}

	var err error
	if bar.High, err = strconv.ParseFloat(fields[3], 64); err != nil {
		return bar, fmt.Errorf("high: %w", err)
	}
	if bar.Low, err = strconv.ParseFloat(fields[4], 64); err != nil {
		return bar, fmt.Errorf("low: %w", err)
	}
	if bar.Open, err = strconv.ParseFloat(fields[5], 64); err != nil {
		return bar, fmt.Errorf("open: %w", err)
	}
	if bar.Close, err = strconv.ParseFloat(fields[6], 64); err != nil {
		return bar, fmt.Errorf("close: %w", err)
	}
	if bar.Volume, err = strconv.ParseInt(fields[7], 10, 64); err != nil {
		return bar, fmt.Errorf("volume: %w", err)
	}
	if tf.IsDaily() && len(fields) > 8 {
		if oi, err := strconv.ParseInt(fields[8], 10, 64); err == nil {
			bar.OpenInterest = oi
		}
	}
	return bar, nil
}

// splitCSV splits a comma-separated line with quoted-field support: a quote
// toggles the in-quotes state and commas inside quotes are not delimiters.
func splitCSV(line string) []string {
	var fields []string
	var field strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		case c != '\r' && c != '\n':
			field.WriteByte(c)
		}
	}
	if field.Len() > 0 {
		fields = append(fields, field.String())
	}
	return fields
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
