package basestation

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/grassroots/internal/datalog"
	"github.com/danmuck/grassroots/internal/dispatch"
	"github.com/danmuck/grassroots/internal/imaging"
	"github.com/danmuck/grassroots/internal/ingest"
	"github.com/danmuck/grassroots/internal/logging"
	"github.com/danmuck/grassroots/internal/series"
	"github.com/danmuck/grassroots/internal/transport"
	"github.com/google/uuid"
)

var ErrAlreadyRunning = errors.New("basestation: service already started")

const heartbeatInterval = 30 * time.Second

// Frontend runs alongside the service until ctx is cancelled.
type Frontend interface {
	Serve(ctx context.Context) error
}

// Status is a point-in-time summary of the service.
type Status struct {
	Name        string    `json:"name"`
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	Uptime      string    `json:"uptime"`
	Transport   string    `json:"transport"`
	ReaderState string    `json:"reader_state"`
	ReaderError string    `json:"reader_error,omitempty"`
	FramesRead  uint64    `json:"frames_read"`
	QueueDepth  int       `json:"queue_depth"`
	QueueFull   uint64    `json:"queue_full"`
	Fragments   uint64    `json:"fragments"`
	Dropped     uint64    `json:"fragments_dropped"`
	LogRecords  uint64    `json:"log_records"`
	Diagnostics uint64    `json:"diagnostics"`
}

type Option func(*Service)

// WithOpener replaces the transport opener derived from config.
func WithOpener(open ingest.Opener) Option {
	return func(s *Service) {
		s.open = open
	}
}

// WithClock overrides the time source used to stamp readings.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service runs one basestation: reader goroutine, consumer tick, data log
// and any attached frontends.
type Service struct {
	cfg       ServiceConfig
	runID     string
	startedAt atomic.Int64
	open      ingest.Opener
	now       func() time.Time

	pipe     *ingest.Pipe
	reader   *ingest.Reader
	registry *Registry
	consumer *Consumer
	datalog  atomic.Pointer[datalog.Writer]

	mu        sync.Mutex
	frontends []Frontend
	started   atomic.Bool
}

func NewService(cfg ServiceConfig, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Transport = cfg.Transport.WithDefaults()
	s := &Service{
		cfg:   cfg,
		runID: uuid.NewString(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.open == nil {
		s.open = transport.Opener(cfg.Transport)
	}

	images, err := imaging.NewAssembler(cfg.Image)
	if err != nil {
		return nil, err
	}
	s.pipe = ingest.NewPipe(context.Background(), cfg.QueueCapacity)
	s.reader = ingest.NewReader(s.pipe, s.open, ingest.ReaderConfig{
		Name:         cfg.Name,
		Limits:       cfg.limits(),
		DropWhenFull: cfg.DropWhenFull,
	})
	s.registry = NewRegistry(cfg.NoticeCapacity)
	s.registry.now = s.now
	s.consumer = NewConsumer(
		s.pipe.Queue(),
		s.registry,
		images,
		series.NewTracker(cfg.SeriesCapacity),
		logSink{s},
		dispatch.WithClock(s.now),
	)
	return s, nil
}

// Attach adds a frontend started by Run after bootstrap.
func (s *Service) Attach(f Frontend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frontends = append(s.frontends, f)
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext blocks until ctx is cancelled or a frontend fails.
func (s *Service) RunContext(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if err := s.bootstrap(); err != nil {
		return err
	}
	defer s.shutdown()
	return s.serve(ctx)
}

func (s *Service) bootstrap() error {
	s.startedAt.Store(s.now().UnixNano())
	if s.cfg.DataLogPath != "" {
		w, err := datalog.Create(s.cfg.DataLogPath, s.cfg.DataLogAppend)
		if err != nil {
			return err
		}
		s.datalog.Store(w)
	}
	s.reader.Start()
	logging.Infof(
		"basestation.Service.bootstrap ready name=%q run_id=%s transport=%q length_mode=%s image=%dx%dx%d data_log=%q",
		s.cfg.Name,
		s.runID,
		s.cfg.Transport.Describe(),
		s.cfg.LengthMode,
		s.cfg.Image.Width,
		s.cfg.Image.Height,
		s.cfg.Image.Depth,
		s.cfg.DataLogPath,
	)
	return nil
}

func (s *Service) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	tick := time.NewTicker(s.cfg.TickInterval)
	defer tick.Stop()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	s.mu.Lock()
	frontends := append([]Frontend(nil), s.frontends...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	frontErr := make(chan error, len(frontends))
	for _, f := range frontends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			frontErr <- f.Serve(ctx)
		}()
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			logging.Infof("basestation.Service.serve shutdown run_id=%s", s.runID)
			return nil
		case err := <-frontErr:
			if err != nil {
				logging.Errorf("basestation.Service.serve frontend failed err=%v", err)
				return err
			}
		case <-tick.C:
			s.consumer.Poll()
		case <-heartbeat.C:
			st := s.Status()
			logging.Infof(
				"basestation.Service.heartbeat run_id=%s reader=%s frames=%d queue=%d records=%d diagnostics=%d",
				st.RunID,
				st.ReaderState,
				st.FramesRead,
				st.QueueDepth,
				st.LogRecords,
				st.Diagnostics,
			)
		}
	}
}

func (s *Service) shutdown() {
	s.pipe.Close()
	s.reader.Wait()
	if w := s.datalog.Swap(nil); w != nil {
		if err := w.Close(); err != nil {
			logging.Warnf("basestation.Service.shutdown data log close err=%v", err)
		}
	}
	logging.Infof("basestation.Service.shutdown done run_id=%s frames=%d", s.runID, s.reader.Frames())
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

func (s *Service) RunID() string {
	return s.runID
}

func (s *Service) Status() Status {
	q := s.pipe.Queue()
	accepted, dropped := s.consumer.FragmentStats()
	st := Status{
		Name:        s.cfg.Name,
		RunID:       s.runID,
		Transport:   s.cfg.Transport.Describe(),
		ReaderState: s.reader.State().String(),
		FramesRead:  s.reader.Frames(),
		QueueDepth:  q.Len(),
		QueueFull:   q.Refused(),
		Fragments:   accepted,
		Dropped:     dropped,
		Diagnostics: s.registry.Diagnostics(),
	}
	if ns := s.startedAt.Load(); ns != 0 {
		st.StartedAt = time.Unix(0, ns)
		st.Uptime = s.now().Sub(st.StartedAt).Round(time.Second).String()
	}
	if err := s.reader.Err(); err != nil {
		st.ReaderError = err.Error()
	}
	if w := s.datalog.Load(); w != nil {
		st.LogRecords = w.Count()
	}
	return st
}

func (s *Service) Registry() *Registry {
	return s.registry
}

func (s *Service) Identities() Identities {
	return s.registry.Identities()
}

// SelectCamera switches the active camera; the image resets right away.
func (s *Service) SelectCamera(id string) error {
	if err := s.registry.SelectCamera(id); err != nil {
		return err
	}
	s.consumer.Apply()
	return nil
}

// SelectSensor switches the active sensor; the window resets right away.
func (s *Service) SelectSensor(key string) error {
	if err := s.registry.SelectSensor(key); err != nil {
		return err
	}
	s.consumer.Apply()
	return nil
}

func (s *Service) Image() (imaging.Buffer, bool) {
	return s.consumer.Image()
}

func (s *Service) Dims() imaging.Dims {
	return s.consumer.Dims()
}

func (s *Service) Series() SeriesSnapshot {
	return s.consumer.Series()
}

func (s *Service) Notices() []Notice {
	return s.registry.Notices()
}

func (s *Service) Subscribe(buf int) (<-chan Event, func()) {
	return s.registry.Subscribe(buf)
}

// logSink forwards readings to the data log once it is open.
type logSink struct {
	s *Service
}

func (l logSink) Record(key, raw string, at time.Time) error {
	w := l.s.datalog.Load()
	if w == nil {
		return nil
	}
	return w.Record(key, raw, at)
}
