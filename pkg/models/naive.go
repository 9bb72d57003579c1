package models

import (
	"context"
	"sync"
	"time"
)

// NaiveModel predicts the training mean for the requested hour of day,
// falling back to the global training mean for hours never observed.
// It exists as a cheap reference point next to the additive regressor.
type NaiveModel struct {
	mu         sync.RWMutex
	fitted     bool
	hourMeans  map[int]float64
	globalMean float64
}

// NewNaiveModel creates an hour-of-day mean model.
func NewNaiveModel() *NaiveModel {
	return &NaiveModel{}
}

func (m *NaiveModel) Name() string { return "naive" }

// Fit computes per-hour and global means of the training values.
func (m *NaiveModel) Fit(ctx context.Context, series Series) error {
	if err := validate(series); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	hourSums := make(map[int]float64)
	hourCounts := make(map[int]int)
	total := 0.0

	for i, t := range series.Times {
		h := t.UTC().Hour()
		hourSums[h] += series.Values[i]
		hourCounts[h]++
		total += series.Values[i]
	}

	hourMeans := make(map[int]float64, len(hourSums))
	for h, sum := range hourSums {
		hourMeans[h] = sum / float64(hourCounts[h])
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fitted = true
	m.hourMeans = hourMeans
	m.globalMean = total / float64(series.Len())

	return nil
}

// Predict returns the hour-of-day mean for each timestamp.
func (m *NaiveModel) Predict(ctx context.Context, at []time.Time) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.fitted {
		return nil, ErrNotFitted
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	out := make([]float64, len(at))
	for i, t := range at {
		if mean, ok := m.hourMeans[t.UTC().Hour()]; ok {
			out[i] = mean
		} else {
			out[i] = m.globalMean
		}
	}
	return out, nil
}
