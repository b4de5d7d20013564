package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/robfig/cron/v3"
)

var (
	// ErrJobExists 任务名重复
	ErrJobExists = errors.New("scheduler: job already exists")
	// ErrJobNotFound 任务不存在
	ErrJobNotFound = errors.New("scheduler: job not found")
)

// Job 带名字的任务
type Job interface {
	Name() string
	Run() error
}

// JobInfo 任务快照
type JobInfo struct {
	ID        cron.EntryID
	Name      string
	Spec      string
	NextRun   time.Time
	PrevRun   time.Time
	RunCount  int64
	FailCount int64
}

type jobEntry struct {
	id        cron.EntryID
	name      string
	spec      string
	runCount  atomic.Int64
	failCount atomic.Int64
}

// Scheduler 基于 robfig/cron 的任务调度器
type Scheduler struct {
	cfg    *Config
	cron   *cron.Cron
	logger logger.Logger

	mu   sync.RWMutex
	jobs map[string]*jobEntry
}

// Option 调度器选项
type Option func(*Scheduler)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New 创建调度器
func New(cfg *Config, opts ...Option) (*Scheduler, error) {
	newCfg, err := mergeConfig(cfg)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:    newCfg,
		logger: logger.NewNoop(),
		jobs:   make(map[string]*jobEntry),
	}
	for _, opt := range opts {
		opt(s)
	}

	loc := time.Local
	if newCfg.Timezone != "" {
		if loc, err = time.LoadLocation(newCfg.Timezone); err != nil {
			return nil, fmt.Errorf("scheduler: invalid timezone %q: %w", newCfg.Timezone, err)
		}
	}

	cl := cronLogger{l: s.logger}
	wrappers := []cron.JobWrapper{cron.Recover(cl)}
	if newCfg.SkipIfStillRunning {
		wrappers = append(wrappers, cron.SkipIfStillRunning(cl))
	}

	cronOpts := []cron.Option{
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(wrappers...),
	}
	if newCfg.WithSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	s.cron = cron.New(cronOpts...)
	return s, nil
}

// AddFunc 按 cron 表达式注册函数任务
func (s *Scheduler) AddFunc(name, spec string, fn func() error, opts ...JobOption) (cron.EntryID, error) {
	return s.add(name, spec, fn, opts, func(job cron.Job) (cron.EntryID, error) {
		return s.cron.AddJob(spec, job)
	})
}

// AddJob 按 cron 表达式注册 Job
func (s *Scheduler) AddJob(spec string, job Job, opts ...JobOption) (cron.EntryID, error) {
	return s.AddFunc(job.Name(), spec, job.Run, opts...)
}

// AddSchedule 使用自定义 cron.Schedule 注册任务
func (s *Scheduler) AddSchedule(name string, schedule cron.Schedule, fn func() error, opts ...JobOption) (cron.EntryID, error) {
	return s.add(name, fmt.Sprintf("%T", schedule), fn, opts, func(job cron.Job) (cron.EntryID, error) {
		return s.cron.Schedule(schedule, job), nil
	})
}

func (s *Scheduler) add(name, spec string, fn func() error, opts []JobOption, register func(cron.Job) (cron.EntryID, error)) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return 0, fmt.Errorf("%w: %s", ErrJobExists, name)
	}

	jo := s.cfg.DefaultJobOptions
	for _, opt := range opts {
		opt(&jo)
	}

	entry := &jobEntry{name: name, spec: spec}
	id, err := register(cron.FuncJob(func() { s.run(entry, fn, jo) }))
	if err != nil {
		return 0, fmt.Errorf("scheduler: add job %s: %w", name, err)
	}
	entry.id = id
	s.jobs[name] = entry

	s.logger.Debug("job registered", "name", name, "spec", spec, "id", id)
	return id, nil
}

// run 执行任务，失败时按退避策略重试
func (s *Scheduler) run(e *jobEntry, fn func() error, jo JobOptions) {
	e.runCount.Add(1)

	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return
		}
		if attempt >= jo.MaxRetries {
			break
		}
		s.logger.Warn("job failed, retrying", "name", e.name, "attempt", attempt+1, "error", err)
		time.Sleep(jo.backoff(attempt + 1))
	}

	e.failCount.Add(1)
	s.logger.Error("job failed", "name", e.name, "error", err)
}

// Remove 移除任务
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	s.cron.Remove(e.id)
	delete(s.jobs, name)
	return nil
}

// ListJobs 列出所有任务，按名称排序
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]JobInfo, 0, len(s.jobs))
	for _, e := range s.jobs {
		ce := s.cron.Entry(e.id)
		list = append(list, JobInfo{
			ID:        e.id,
			Name:      e.name,
			Spec:      e.spec,
			NextRun:   ce.Next,
			PrevRun:   ce.Prev,
			RunCount:  e.runCount.Load(),
			FailCount: e.failCount.Load(),
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Start 启动调度器（非阻塞）
func (s *Scheduler) Start() error {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop 停止调度器并等待正在执行的任务结束
func (s *Scheduler) Stop() error {
	<-s.StopContext().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// StopContext 停止调度器，返回的 context 在运行中的任务结束后关闭
func (s *Scheduler) StopContext() context.Context {
	return s.cron.Stop()
}

// cronLogger 适配 cron.Logger
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
