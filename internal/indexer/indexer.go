package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/clustering"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
)

// Extractor turns a path into a catalog record.
type Extractor interface {
	Extract(ctx context.Context, path string) (*catalog.MediaRecord, error)
}

// FaceDetector finds faces in an image. Returned faces have no ID.
type FaceDetector interface {
	Detect(ctx context.Context, path, mediaID string) ([]catalog.Face, error)
}

// Clusterer places newly stored faces into groups.
type Clusterer interface {
	Incremental(ctx context.Context) (clustering.AssignResult, int, error)
}

// Throttle holds back extraction, e.g. under memory pressure. Wait returns
// when work may proceed or ctx is done.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Store is the catalog surface the scanner writes through.
type Store interface {
	catalog.MediaStore
	DeleteFaces(ctx context.Context, mediaID string) error
	InsertFace(ctx context.Context, face *catalog.Face) error
	CreateScanSession(ctx context.Context, s *catalog.ScanSession) error
	UpdateScanSession(ctx context.Context, s *catalog.ScanSession) error
}

// ScanStats are the counters of one scan. FilesScanned counts successful
// extractions; ErrorCount counts extraction and persistence failures.
type ScanStats struct {
	FilesScanned int `json:"filesScanned"`
	FilesAdded   int `json:"filesAdded"`
	FilesUpdated int `json:"filesUpdated"`
	ErrorCount   int `json:"errorCount"`
}

func (st ScanStats) applyTo(s *catalog.ScanSession) {
	s.FilesScanned = st.FilesScanned
	s.FilesAdded = st.FilesAdded
	s.FilesUpdated = st.FilesUpdated
	s.ErrorCount = st.ErrorCount
}

// Scanner ingests directory trees into the catalog. Extraction runs on a
// pool of producers; the goroutine calling Scan performs every catalog
// write. Several scans may run at once; the store keeps upserts safe.
type Scanner struct {
	store     Store
	extractor Extractor
	cfg       Config

	detector  FaceDetector
	clusterer Clusterer
	sink      ProgressSink
	throttle  Throttle

	mu         sync.Mutex
	active     int
	lastScan   time.Time
	lastStatus catalog.ScanStatus
	lastStats  ScanStats
}

// New creates a Scanner. Zero fields of cfg take their defaults.
func New(store Store, extractor Extractor, cfg Config) *Scanner {
	return &Scanner{
		store:     store,
		extractor: extractor,
		cfg:       cfg.withDefaults(),
		sink:      LogSink{},
	}
}

// SetDetector enables face detection for images. Call before scanning.
func (s *Scanner) SetDetector(d FaceDetector) {
	s.detector = d
}

// SetClusterer enables incremental clustering after faces are stored.
// Call before scanning.
func (s *Scanner) SetClusterer(c Clusterer) {
	s.clusterer = c
}

// SetProgressSink replaces the default LogSink. Call before scanning.
func (s *Scanner) SetProgressSink(sink ProgressSink) {
	if sink == nil {
		sink = DiscardSink{}
	}
	s.sink = sink
}

// SetThrottle makes every producer wait on t before extracting a file.
// Call before scanning.
func (s *Scanner) SetThrottle(t Throttle) {
	s.throttle = t
}

// Config returns the effective pipeline configuration.
func (s *Scanner) Config() Config {
	return s.cfg
}

// Scan catalogs every media file under root. A missing or non-directory
// root returns ErrInvalidRoot before a session is created. Per-file
// failures are counted, not returned. On cancellation the session is
// finalized as cancelled and the partial stats are returned with ctx.Err().
func (s *Scanner) Scan(ctx context.Context, root string) (ScanStats, error) {
	var stats ScanStats
	start := time.Now()

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	paths, err := Enumerate(ctx, root, s.cfg.SkipHidden)
	if err != nil {
		if errors.Is(err, ErrInvalidRoot) {
			metrics.ScanRunsTotal.WithLabelValues("invalid_root").Inc()
		}
		return stats, err
	}

	sess := &catalog.ScanSession{
		RootPath:  root,
		Status:    catalog.ScanRunning,
		StartedAt: start,
	}
	if err := s.store.CreateScanSession(ctx, sess); err != nil {
		return stats, fmt.Errorf("create scan session: %w", err)
	}

	s.begin()
	metrics.ScansInProgress.Inc()
	metrics.ScanEnumeratedFiles.Set(float64(len(paths)))
	metrics.ScanWorkers.Set(float64(s.cfg.Workers))

	logging.Info("Starting scan of %s: %d candidates, %d workers", root, len(paths), s.cfg.Workers)
	s.sink.Publish(Event{
		Kind:      EventScanStarted,
		SessionID: sess.ID,
		RootPath:  root,
		Status:    string(catalog.ScanRunning),
		Total:     len(paths),
		Time:      time.Now(),
	})

	results := s.produce(ctx, paths)
	processed := 0
	for res := range results {
		if ctx.Err() != nil {
			break
		}

		s.consume(ctx, res, &stats)
		processed++

		if processed%s.cfg.CheckpointEvery == 0 {
			s.checkpoint(ctx, sess, stats)
			s.sink.Publish(Event{
				Kind:      EventScanProgress,
				SessionID: sess.ID,
				RootPath:  root,
				Status:    string(catalog.ScanRunning),
				Total:     len(paths),
				Processed: processed,
				Stats:     stats,
				Time:      time.Now(),
			})
		}
	}
	// Producers exit on cancellation; drain whatever they already queued.
	for range results {
	}

	scanErr := ctx.Err()
	status := catalog.ScanCompleted
	if scanErr != nil {
		status = catalog.ScanCancelled
	}

	completed := time.Now()
	stats.applyTo(sess)
	sess.Status = status
	sess.CompletedAt = &completed
	if err := s.store.UpdateScanSession(context.WithoutCancel(ctx), sess); err != nil {
		logging.Error("Failed to finalize scan session %s: %v", sess.ID, err)
	}

	metrics.ScansInProgress.Dec()
	metrics.ScanRunsTotal.WithLabelValues(string(status)).Inc()
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	if status == catalog.ScanCompleted {
		metrics.ScanLastRunTimestamp.SetToCurrentTime()
	}
	s.finish(status, stats)

	s.sink.Publish(Event{
		Kind:      EventScanCompleted,
		SessionID: sess.ID,
		RootPath:  root,
		Status:    string(status),
		Total:     len(paths),
		Processed: processed,
		Stats:     stats,
		Time:      completed,
	})
	logging.Info("Scan of %s %s in %v", root, status, time.Since(start).Round(time.Millisecond))

	return stats, scanErr
}

// consume records one producer result. It runs on the scanning goroutine.
func (s *Scanner) consume(ctx context.Context, res extractResult, stats *ScanStats) {
	if res.err != nil {
		stats.ErrorCount++
		metrics.ScanFilesTotal.WithLabelValues("error").Inc()
		logging.Warn("Skipping %s: %v", res.path, res.err)
		return
	}
	stats.FilesScanned++

	added, err := s.persist(ctx, res.rec)
	if err != nil {
		stats.ErrorCount++
		metrics.ScanFilesTotal.WithLabelValues("error").Inc()
		logging.Warn("Failed to store %s: %v", res.path, err)
		return
	}
	if added {
		stats.FilesAdded++
		metrics.ScanFilesTotal.WithLabelValues("added").Inc()
	} else {
		stats.FilesUpdated++
		metrics.ScanFilesTotal.WithLabelValues("updated").Inc()
	}

	// Upsert keeps FacesProcessedAt only while the content hash is unchanged.
	if res.rec.Kind == mediatypes.KindImage && s.detector != nil && res.rec.FacesProcessedAt == nil {
		_, _ = s.processFaces(ctx, res.rec)
	}
}

// persist looks rec up by path to classify it, then upserts it.
func (s *Scanner) persist(ctx context.Context, rec *catalog.MediaRecord) (added bool, err error) {
	_, err = s.store.GetByPath(ctx, rec.Path)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		added = true
	case err != nil:
		return false, fmt.Errorf("lookup: %w", err)
	}

	if err := s.store.Upsert(ctx, rec); err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}
	return added, nil
}

// processFaces replaces the stored faces of rec with a fresh detection and
// clusters them. A detection failure leaves the stored faces untouched and
// the record unmarked, so the next scan retries it.
func (s *Scanner) processFaces(ctx context.Context, rec *catalog.MediaRecord) (int, error) {
	found, err := s.detector.Detect(ctx, rec.Path, rec.ID)
	if err != nil {
		logging.Warn("Face detection failed for %s: %v", rec.Path, err)
		return 0, fmt.Errorf("detect faces: %w", err)
	}

	if err := s.store.DeleteFaces(ctx, rec.ID); err != nil {
		logging.Warn("Failed to delete stale faces for %s: %v", rec.Path, err)
		return 0, fmt.Errorf("delete stale faces: %w", err)
	}

	inserted, failed := 0, 0
	for i := range found {
		found[i].ID = ""
		found[i].MediaID = rec.ID
		if err := s.store.InsertFace(ctx, &found[i]); err != nil {
			logging.Warn("Failed to store face %d of %s: %v", i, rec.Path, err)
			failed++
			continue
		}
		inserted++
	}

	if failed == 0 {
		if err := s.store.MarkFacesProcessed(ctx, rec.ID, time.Now()); err != nil {
			logging.Warn("Failed to mark faces processed for %s: %v", rec.Path, err)
		}
	}

	s.sink.Publish(Event{
		Kind:    EventFacesDetected,
		MediaID: rec.ID,
		Path:    rec.Path,
		Faces:   inserted,
		Time:    time.Now(),
	})

	if inserted > 0 && s.clusterer != nil {
		assigned, merged, err := s.clusterer.Incremental(ctx)
		if err != nil {
			logging.Warn("Clustering after %s failed: %v", rec.Path, err)
		} else {
			logging.Debug("Clustered %s: %d joined, %d new groups, %d merges",
				rec.Path, assigned.Assigned, assigned.Created, merged)
		}
	}

	if failed > 0 {
		return inserted, fmt.Errorf("%d of %d faces not stored", failed, len(found))
	}
	return inserted, nil
}

// checkpoint writes the running counters to the session.
func (s *Scanner) checkpoint(ctx context.Context, sess *catalog.ScanSession, stats ScanStats) {
	stats.applyTo(sess)
	if err := s.store.UpdateScanSession(ctx, sess); err != nil {
		logging.Warn("Failed to checkpoint scan session %s: %v", sess.ID, err)
	}
}

// Reprocess re-extracts one catalogued file, replaces its faces and
// re-clusters. Unlike a scan it always re-runs detection and returns
// detection failures.
func (s *Scanner) Reprocess(ctx context.Context, mediaID string) error {
	rec, err := s.store.GetByID(ctx, mediaID)
	if err != nil {
		return fmt.Errorf("lookup media %s: %w", mediaID, err)
	}

	fresh, err := s.extractOne(ctx, rec.Path)
	if err != nil {
		return err
	}
	if err := s.store.Upsert(ctx, fresh); err != nil {
		return fmt.Errorf("store %s: %w", rec.Path, err)
	}

	if fresh.Kind != mediatypes.KindImage || s.detector == nil {
		return nil
	}

	n, err := s.processFaces(ctx, fresh)
	if err != nil {
		return err
	}
	logging.Info("Reprocessed %s: %d faces", fresh.Path, n)
	return nil
}

// Status is a snapshot of scanner activity.
type Status struct {
	Scanning   bool      `json:"scanning"`
	Active     int       `json:"active"`
	LastScan   time.Time `json:"lastScan,omitempty"`
	LastStatus string    `json:"lastStatus,omitempty"`
	LastStats  ScanStats `json:"lastStats"`
}

// Status reports running scans and the outcome of the last finished one.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Scanning:   s.active > 0,
		Active:     s.active,
		LastScan:   s.lastScan,
		LastStatus: string(s.lastStatus),
		LastStats:  s.lastStats,
	}
}

// IsScanning reports whether any scan is in progress.
func (s *Scanner) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active > 0
}

func (s *Scanner) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active++
}

func (s *Scanner) finish(status catalog.ScanStatus, stats ScanStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	s.lastScan = time.Now()
	s.lastStatus = status
	s.lastStats = stats
}
