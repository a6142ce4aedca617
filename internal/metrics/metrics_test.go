package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
}

func (r *recorder) ReportLatency(metric string, _ time.Time, tag string, _ int) {
	r.calls = append(r.calls, metric+"|"+tag)
}

func TestSampler(t *testing.T) {
	rec := &recorder{}
	s := NewSampler(rec)
	s.roll = func() int { return 50 }

	s.ReportLatency("m", time.Now(), "t", 100)
	s.ReportLatency("m", time.Now(), "t", 51)
	s.ReportLatency("m", time.Now(), "t", 50)
	s.ReportLatency("m", time.Now(), "t", 0)

	assert.Len(t, rec.calls, 2)

	NewSampler(nil).ReportLatency("m", time.Now(), "t", 100)
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, nil, b}.ReportLatency("postgres_query_ms", time.Now(), "public.accounts", 100)

	assert.Equal(t, []string{"postgres_query_ms|public.accounts"}, a.calls)
	assert.Equal(t, a.calls, b.calls)

	Noop{}.ReportLatency("m", time.Now(), "t", 100)
}

func TestPrometheusReporter(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheusReporter(reg, "remat", nil)
	require.NoError(t, err)

	p.ReportLatency("sqlite_query_ms", time.Now().Add(-5*time.Millisecond), "main.accounts", 100)
	p.ReportLatency("sqlite_query_ms", time.Now(), "main.accounts", 100)
	p.ReportLatency("sqlite_query_ms", time.Now(), "main.users", 100)

	assert.Equal(t, 2, testutil.CollectAndCount(p.hist, "remat_query_latency_milliseconds"))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	var total uint64
	for _, m := range families[0].GetMetric() {
		total += m.GetHistogram().GetSampleCount()
	}
	assert.Equal(t, uint64(3), total)

	again, err := NewPrometheusReporter(reg, "remat", nil)
	require.NoError(t, err)
	assert.Same(t, p.hist, again.hist)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaReporter(t *testing.T) {
	w := &fakeWriter{}
	var logs bytes.Buffer
	k := &KafkaReporter{writer: w, logger: log.New(&logs, "", 0)}

	k.ReportLatency("mysql_query_ms", time.Now().Add(-2*time.Millisecond), "bank.accounts", 100)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "bank.accounts", string(w.msgs[0].Key))

	var ev LatencyEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "mysql_query_ms", ev.Metric)
	assert.GreaterOrEqual(t, ev.Millis, 2.0)

	w.err = errors.New("queue full")
	k.ReportLatency("mysql_query_ms", time.Now(), "bank.accounts", 100)
	assert.Contains(t, logs.String(), "[METRICS] WARNING")
	require.NoError(t, k.Close())
}

func TestNewKafkaReporter_Validation(t *testing.T) {
	_, err := NewKafkaReporter(KafkaReporterConfig{Topic: "t"})
	assert.Error(t, err)

	_, err = NewKafkaReporter(KafkaReporterConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	k, err := NewKafkaReporter(KafkaReporterConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Logger: log.New(&bytes.Buffer{}, "", 0)})
	require.NoError(t, err)
	require.NoError(t, k.Close())
}
