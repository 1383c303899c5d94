package health

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"ordercore/config"

	"github.com/gin-gonic/gin"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	pingTimeout = 2 * time.Second
)

// Pinger storage or cache dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Dependency 一个被探测的外部依赖。
// 非关键依赖（幂等键缓存）故障时服务仍可下单，只报 degraded。
type Dependency struct {
	Name     string
	Pinger   Pinger
	Critical bool
}

func Critical(name string, p Pinger) Dependency { return Dependency{Name: name, Pinger: p, Critical: true} }
func Optional(name string, p Pinger) Dependency { return Dependency{Name: name, Pinger: p} }

type Controller struct {
	config    *config.Config
	deps      []Dependency
	startTime time.Time
}

// NewController nil Pinger 的依赖被忽略
func NewController(cfg *config.Config, deps ...Dependency) *Controller {
	c := &Controller{config: cfg, startTime: time.Now()}
	for _, d := range deps {
		if d.Pinger != nil {
			c.deps = append(c.deps, d)
		}
	}
	return c
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", c.Health)
	router.GET("/health/live", c.Liveness)
	router.GET("/health/ready", c.Readiness)
}

type HealthResponse struct {
	Status    string           `json:"status"`
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
	System    *SystemInfo      `json:"system,omitempty"`
}

type Check struct {
	Status   string `json:"status"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
}

// Health GET /health 探测全部依赖
func (c *Controller) Health(ctx *gin.Context) {
	checks := c.probe(ctx.Request.Context(), c.deps)
	status := overall(checks)

	resp := HealthResponse{
		Status:    status,
		Version:   c.config.App.Version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if c.config.IsDevelopment() {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		resp.System = &SystemInfo{
			GoVersion:    runtime.Version(),
			NumCPU:       runtime.NumCPU(),
			NumGoroutine: runtime.NumGoroutine(),
			MemAlloc:     mem.Alloc,
		}
	}

	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, resp)
}

// Liveness 进程存活即可
func (c *Controller) Liveness(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Readiness 只看关键依赖
func (c *Controller) Readiness(ctx *gin.Context) {
	var critical []Dependency
	for _, d := range c.deps {
		if d.Critical {
			critical = append(critical, d)
		}
	}
	for name, check := range c.probe(ctx.Request.Context(), critical) {
		if check.Status != StatusHealthy {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "message": name + " not available"})
			return
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// probe 并发探测，每个依赖各自限时
func (c *Controller) probe(ctx context.Context, deps []Dependency) map[string]Check {
	checks := make(map[string]Check, len(deps))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, d := range deps {
		wg.Add(1)
		go func(d Dependency) {
			defer wg.Done()
			check := ping(ctx, d)
			mu.Lock()
			checks[d.Name] = check
			mu.Unlock()
		}(d)
	}
	wg.Wait()
	return checks
}

func ping(ctx context.Context, d Dependency) Check {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	err := d.Pinger.Ping(ctx)
	check := Check{Status: StatusHealthy, Critical: d.Critical, Latency: time.Since(start).String()}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}

func overall(checks map[string]Check) string {
	status := StatusHealthy
	for _, check := range checks {
		if check.Status == StatusHealthy {
			continue
		}
		if check.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}
