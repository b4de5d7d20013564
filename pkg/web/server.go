package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/lk2023060901/shardbazaar/pkg/app"
	"github.com/lk2023060901/shardbazaar/pkg/config"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/web/middleware"
)

var _ app.Server = (*Server)(nil)

var tagNameOnce sync.Once

// useJSONTagNames 校验错误信息显示 json tag 而非结构体字段名
func useJSONTagNames() {
	tagNameOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(fld reflect.StructField) string {
				name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
				if name == "-" {
					return ""
				}
				return name
			})
		}
	})
}

// Server Web 服务核心结构
type Server struct {
	engine *gin.Engine
	config *Config
	logger logger.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer 创建 Web 服务
func NewServer(cfg *Config, l logger.Logger) (*Server, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge web config: %w", err)
	}
	if err := config.NewValidator().Validate(newCfg); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.NewNoop()
	}

	gin.SetMode(newCfg.Mode)
	useJSONTagNames()

	engine := gin.New()

	// 挂载基础中间件
	engine.Use(middleware.Logger(l.Named("web.access"), newCfg.SkipLogPaths...))
	engine.Use(middleware.Recovery(l.Named("web.recovery")))

	return &Server{
		engine: engine,
		config: newCfg,
		logger: l.Named("web.server"),
	}, nil
}

// Router 返回 Gin 引擎，用于注册路由
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Handler 返回 http.Handler 接口
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr 实际监听地址，未启动时为空
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start 监听端口并在后台提供服务
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return ErrServerAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:        s.engine,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	srv := s.server
	go func() {
		s.logger.Info("starting http server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server exited", "error", err)
		}
	}()
	return nil
}

// Stop 优雅关闭，等待进行中的请求结束
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return ErrServerNotStarted
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}
