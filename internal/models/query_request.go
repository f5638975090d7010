package models

import "time"

// MaxHistorySpan caps any history query.
const MaxHistorySpan = 31 * 24 * time.Hour

// HistoryWindow is a resolved query window, both bounds inclusive, in unix seconds.
// Minutes is set for relative windows; Start/End hold the requested dates for
// absolute ones.
type HistoryWindow struct {
	Minutes int
	Start   string
	End     string
	From    int64
	To      int64
}

// Contains reports whether ts lies within the window.
func (w HistoryWindow) Contains(ts int64) bool {
	return ts >= w.From && ts <= w.To
}
