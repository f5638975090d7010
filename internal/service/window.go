package service

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"plantlab/internal/models"
)

const dateLayout = "2006-01-02"

// ParseHistoryWindow resolves the history query parameters against now.
// start and end (UTC dates, inclusive) take precedence over minutes; an
// absent minutes uses defaultMinutes. Windows longer than
// models.MaxHistorySpan are rejected, not clamped.
func ParseHistoryWindow(q url.Values, defaultMinutes int, now time.Time) (models.HistoryWindow, error) {
	start := strings.TrimSpace(q.Get("start"))
	end := strings.TrimSpace(q.Get("end"))
	maxSpan := int64(models.MaxHistorySpan / time.Second)

	if start != "" || end != "" {
		if start == "" || end == "" {
			return models.HistoryWindow{}, fmt.Errorf("%w: start and end must be given together", ErrInvalidWindow)
		}
		startDay, err := time.ParseInLocation(dateLayout, start, time.UTC)
		if err != nil {
			return models.HistoryWindow{}, fmt.Errorf("%w: invalid start date %q, expected YYYY-MM-DD", ErrInvalidWindow, start)
		}
		endDay, err := time.ParseInLocation(dateLayout, end, time.UTC)
		if err != nil {
			return models.HistoryWindow{}, fmt.Errorf("%w: invalid end date %q, expected YYYY-MM-DD", ErrInvalidWindow, end)
		}
		w := models.HistoryWindow{
			Start: start,
			End:   end,
			From:  startDay.Unix(),
			To:    endDay.Unix() + 24*3600 - 1,
		}
		if w.To < w.From {
			return models.HistoryWindow{}, fmt.Errorf("%w: end must be >= start", ErrInvalidWindow)
		}
		if w.To-w.From > maxSpan {
			return models.HistoryWindow{}, fmt.Errorf("%w: max %d days", ErrRangeTooLarge, maxSpan/86400)
		}
		return w, nil
	}

	minutes := defaultMinutes
	if raw := strings.TrimSpace(q.Get("minutes")); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil {
			return models.HistoryWindow{}, fmt.Errorf("%w: minutes must be an integer, got %q", ErrInvalidWindow, raw)
		}
		minutes = m
	}
	if minutes <= 0 {
		return models.HistoryWindow{}, fmt.Errorf("%w: minutes must be positive", ErrInvalidWindow)
	}
	if int64(minutes)*60 > maxSpan {
		return models.HistoryWindow{}, fmt.Errorf("%w: max %d minutes", ErrRangeTooLarge, maxSpan/60)
	}
	to := now.Unix()
	return models.HistoryWindow{
		Minutes: minutes,
		From:    to - int64(minutes)*60,
		To:      to,
	}, nil
}
