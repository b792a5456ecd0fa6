package feed

import (
	"log"
	"time"

	"BarSentinel/internal/model"
)

const (
	barDateLayout = "2006-01-02"
	barTimeLayout = "2006-01-02 15:04:05"

	// startLabelMargin gives the feed time to finish a bar before we trust
	// it as closed, when timestamps label the interval start.
	startLabelMargin = time.Minute
	// endLabelMargin is the smaller margin used when the timestamp already
	// represents the bar's close.
	endLabelMargin = 30 * time.Second
)

// Normalize filters a newest-first parsed bar list down to complete bars,
// applying the timeframe's timestamp correction where required. It returns
// the kept bars (still newest-first) and the number of bars filtered out.
//
// Daily bars need no correction: a daily bar is complete iff its date is
// strictly before today's local calendar date.
//
// Intraday bars with start-of-interval labeling arrive with the first two
// rows misaligned against each other: row 0 carries the newest interval's
// correct timestamp but row 1 carries its correct OHLCV. The first emitted
// bar is synthesized from row 0's timestamp and row 1's values, then rows
// from index 2 onward are used unmodified. With end-of-interval labeling no
// row shift is needed.
func Normalize(raw []model.Bar, tf Timeframe, align LabelAlignment, now time.Time) ([]model.Bar, int) {
	if tf.IsDaily() {
		return normalizeDaily(raw, now)
	}
	return normalizeIntraday(raw, tf, align, now)
}

func normalizeDaily(raw []model.Bar, now time.Time) ([]model.Bar, int) {
	today := now.Format(barDateLayout)
	kept := make([]model.Bar, 0, len(raw))
	filtered := 0

	for _, bar := range raw {
		if bar.Date < today {
			kept = append(kept, bar)
		} else {
			filtered++
		}
	}
	return kept, filtered
}

func normalizeIntraday(raw []model.Bar, tf Timeframe, align LabelAlignment, now time.Time) ([]model.Bar, int) {
	var all []model.Bar
	if align == LabelStart {
		if len(raw) < 2 {
			return nil, len(raw)
		}
		corrected := raw[1]
		corrected.Date = raw[0].Date
		corrected.Time = raw[0].Time
		all = append(all, corrected)
		all = append(all, raw[2:]...)
	} else {
		all = raw
	}

	kept := make([]model.Bar, 0, len(all))
	filtered := 0
	for _, bar := range all {
		if isCompleteIntraday(bar, tf, align, now) {
			kept = append(kept, bar)
		} else {
			filtered++
		}
	}
	return kept, filtered
}

// isCompleteIntraday decides whether an intraday bar's interval has fully
// elapsed. An unparsable timestamp counts as incomplete.
func isCompleteIntraday(bar model.Bar, tf Timeframe, align LabelAlignment, now time.Time) bool {
	ts, err := time.ParseInLocation(barTimeLayout, bar.DateTime(), now.Location())
	if err != nil {
		log.Printf("[WARN] completeness check: bad timestamp %q: %v", bar.DateTime(), err)
		return false
	}

	if align == LabelStart {
		// Timestamp marks the interval start; the bar closes one full
		// interval later.
		return !now.Before(ts.Add(tf.Interval + startLabelMargin))
	}
	return !now.Before(ts.Add(endLabelMargin))
}
