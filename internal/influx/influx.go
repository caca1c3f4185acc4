package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/emberwatch/firecommand/internal/config"
	"github.com/emberwatch/firecommand/internal/session"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// BackupFileName is the gzip line-protocol file used while InfluxDB is
// unreachable.
const BackupFileName = "influx_backup.lp.gz"

// Manager handles InfluxDB connections and writes. It implements
// session.Observer.
type Manager struct {
	Client      influxdb2.Client
	Writers     map[string]influxdb2_api.WriteAPI
	IsValid     bool
	BucketNames []string
	Logger      zerolog.Logger
	BackupPath  string

	cfg config.InfluxConfig

	mu           sync.Mutex
	backupFile   *os.File
	BackupWriter *gzip.Writer
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		IsValid:     false,
		BucketNames: []string{cfg.Bucket, StatusBucket(cfg)},
		Logger:      log.With().Str("component", "influx").Logger(),
		BackupPath:  filepath.Join(cfg.BackupDir, BackupFileName),
		cfg:         cfg,
	}
}

// RunsBucket is the bucket receiving run points.
func RunsBucket(cfg config.InfluxConfig) string { return cfg.Bucket }

// StatusBucket is the bucket receiving periodic session status points.
func StatusBucket(cfg config.InfluxConfig) string { return cfg.Bucket + "_status" }

// Connect establishes a connection to InfluxDB, falling back to the gzip
// backup file when the server does not answer.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)

	if err != nil || !running {
		m.IsValid = false
		if err := m.openBackup(); err != nil {
			return err
		}
		m.Logger.Warn().Err(err).Str("backupPath", m.BackupPath).
			Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBuckets(ctx); err != nil {
		return err
	}
	m.CreateWriters()
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.BackupPath), 0o755); err != nil {
		return fmt.Errorf("error creating backup dir: %w", err)
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBuckets(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure buckets exist with 30 day retention
	for _, bucket := range m.BucketNames {
		if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 30,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	for _, bucket := range m.BucketNames {
		m.Writers[bucket] = m.Client.WriteAPI(m.cfg.Org, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)
	}

	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := strings.TrimRight(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending writes and closes the backup file.
func (m *Manager) Close() error {
	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return nil
	}
	err := errors.Join(m.BackupWriter.Close(), m.backupFile.Close())
	m.BackupWriter = nil
	m.backupFile = nil
	return err
}

// RunPoint builds the measurement for an installed run.
func RunPoint(r session.RunReport) *influxdb2_write.Point {
	p := r.Request.Parameters
	point := influxdb2_write.NewPointWithMeasurement("simulation_run").
		AddTag("session", r.SessionID.String()).
		AddTag("wind_direction", string(p.WindDirection)).
		AddField("sequence", int64(r.Request.Sequence)).
		AddField("frames", r.Frames).
		AddField("points", r.Points).
		AddField("landmarks", r.Landmarks).
		AddField("risks", len(r.Risks)).
		AddField("duration_ms", r.Duration().Milliseconds()).
		AddField("wind_speed", p.WindSpeed).
		AddField("moisture", p.FuelMoisture).
		AddField("humidity", p.Humidity).
		AddField("temperature", p.Temperature).
		AddField("slope", p.Slope).
		AddField("duration_hours", p.DurationHours).
		AddField("origin_lat", r.Request.Origin.Lat).
		AddField("origin_lon", r.Request.Origin.Lon).
		SetTime(r.CompletedAt)
	if r.Summary.EarliestHours != nil {
		point.AddField("earliest_impact_hours", *r.Summary.EarliestHours)
	}
	for t, n := range r.Summary.ByType {
		point.AddField("risks_"+string(t), n)
	}
	return point
}

// FailurePoint builds the measurement for a failed run.
func FailurePoint(f session.RunFailure) *influxdb2_write.Point {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return influxdb2_write.NewPointWithMeasurement("simulation_failure").
		AddTag("session", f.SessionID.String()).
		AddField("sequence", int64(f.Request.Sequence)).
		AddField("error", msg).
		SetTime(f.FailedAt)
}

// StateChanged is a no-op; status is sampled by the monitor.
func (m *Manager) StateChanged(session.Snapshot) {}

// RunCompleted writes a run point.
func (m *Manager) RunCompleted(r session.RunReport) {
	if err := m.WritePoint(RunsBucket(m.cfg), RunPoint(r)); err != nil {
		m.Logger.Error().Err(err).Msg("Failed to write run point")
	}
}

// RunFailed writes a failure point.
func (m *Manager) RunFailed(f session.RunFailure) {
	if err := m.WritePoint(RunsBucket(m.cfg), FailurePoint(f)); err != nil {
		m.Logger.Error().Err(err).Msg("Failed to write failure point")
	}
}

// StatusPoint builds the periodic session status measurement.
func StatusPoint(s session.Snapshot, inbox int, at time.Time) *influxdb2_write.Point {
	queued := 0
	if s.Queue.Pending {
		queued = 1
	}
	pending := 0
	if s.RisksPending {
		pending = 1
	}
	return influxdb2_write.NewPointWithMeasurement("session_status").
		AddTag("session", s.SessionID).
		AddTag("gate", string(s.Gate)).
		AddTag("request_state", string(s.Request.State)).
		AddField("epoch", int64(s.Epoch)).
		AddField("in_flight", s.Request.InFlight).
		AddField("queued", queued).
		AddField("frames", s.Frames).
		AddField("frame_index", s.Playback.FrameIndex).
		AddField("playing", s.Playback.IsPlaying).
		AddField("landmarks", s.Landmarks).
		AddField("risks", len(s.Risks)).
		AddField("risks_pending", pending).
		AddField("inbox", inbox).
		SetTime(at)
}

// WriteStatus writes a status point for s.
func (m *Manager) WriteStatus(s session.Snapshot, inbox int) error {
	return m.WritePoint(StatusBucket(m.cfg), StatusPoint(s, inbox, time.Now()))
}
