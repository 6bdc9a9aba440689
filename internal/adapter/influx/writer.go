// Package influx archives observation series to InfluxDB 1.x.
package influx

import (
	"context"
	"fmt"
	"time"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	client "github.com/influxdata/influxdb/client/v2"
)

// DefaultMeasurement is the measurement name written when none is configured.
const DefaultMeasurement = "well_rainfall"

// Options configures the InfluxDB connection.
type Options struct {
	Addr        string
	Username    string
	Password    string
	Database    string
	Measurement string
	Timeout     time.Duration
}

// Writer writes each series position as one point tagged by location.
type Writer struct {
	client      client.Client
	database    string
	measurement string
	timeout     time.Duration
}

// NewWriter creates an InfluxDB HTTP writer.
func NewWriter(opts Options) (*Writer, error) {
	if opts.Measurement == "" {
		opts.Measurement = DefaultMeasurement
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		Timeout:  opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create influx client: %w", err)
	}
	return &Writer{
		client:      c,
		database:    opts.Database,
		measurement: opts.Measurement,
		timeout:     opts.Timeout,
	}, nil
}

// WriteSeries pings the server and writes every point in one batch.
// It returns the number of points written.
func (w *Writer) WriteSeries(ctx context.Context, series []domain.LocationSeries) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  w.database,
		Precision: "s",
	})
	if err != nil {
		return 0, fmt.Errorf("create batch: %w", err)
	}
	pts, err := toPoints(w.measurement, series)
	if err != nil {
		return 0, err
	}
	if len(pts) == 0 {
		return 0, nil
	}
	bp.AddPoints(pts)

	if _, _, err := w.client.Ping(w.timeout); err != nil {
		return 0, fmt.Errorf("ping influx: %w", err)
	}
	if err := w.client.Write(bp); err != nil {
		return 0, fmt.Errorf("write %d points: %w", len(pts), err)
	}
	return len(pts), nil
}

// Close releases client resources.
func (w *Writer) Close() error {
	return w.client.Close()
}

// toPoints skips positions where both values are missing; a point needs a field.
func toPoints(measurement string, series []domain.LocationSeries) ([]*client.Point, error) {
	var pts []*client.Point
	for _, s := range series {
		tags := map[string]string{
			"twp_id": s.Location.ID,
			"name":   s.Location.Name,
		}
		for _, f := range s.Features {
			fields := map[string]interface{}{}
			if f.Rainfall.Valid {
				fields["rainfall"] = f.Rainfall.Value
			}
			if f.Rolling7d.Valid {
				fields["rolling_7d_rainfall"] = f.Rolling7d.Value
			}
			if len(fields) == 0 {
				continue
			}
			p, err := client.NewPoint(measurement, tags, fields, f.Date)
			if err != nil {
				return nil, fmt.Errorf("point for %s on %s: %w", s.Location.ID, f.Date.Format(domain.DateFormat), err)
			}
			pts = append(pts, p)
		}
	}
	return pts, nil
}
