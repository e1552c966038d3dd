package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path"
	"reflect"
	"runtime"
	"syscall"
	"time"

	"github.com/encodeous/dodag/perf"
	"github.com/encodeous/dodag/state"
	"github.com/encodeous/tint"
	slogmulti "github.com/samber/slog-multi"
)

// NewLogger builds the logger of a node: a console handler, plus a text file handler
// when logPath is set.
func NewLogger(id state.NodeId, logLevel slog.Level, logPath string) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: string(id),
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if logPath != "" {
		err := os.MkdirAll(path.Dir(logPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0700)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}).WithAttrs([]slog.Attr{slog.String("node", string(id))}))
	}

	return slog.New(
		slogmulti.Fanout(handlers...)), nil
}

// ServeDebug exposes expvar counters, /debug/metrics and pprof on addr until the process exits.
func ServeDebug(addr string) {
	if addr == "" {
		return
	}
	go func() {
		slog.Error("debug server stopped", "error", http.ListenAndServe(addr, nil))
	}()
}

// Setup builds the state of a node and initializes its modules. The node does nothing
// until MainLoop runs.
func Setup(ncfg state.NodeCfg, timing state.TimingCfg, logger *slog.Logger, aux map[string]any) (*state.State, <-chan func(*state.State) error, error) {
	ctx, cancel := context.WithCancelCause(context.Background())

	dispatch := make(chan func(env *state.State) error, 128)

	s := &state.State{
		Modules: make(map[string]state.NyModule),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			NodeCfg:         ncfg,
			Timing:          timing,
			Log:             logger,
			AuxConfig:       aux,
		},
	}

	s.Log.Debug("init modules")
	err := initModules(s)
	if err != nil {
		cancel(err)
		return nil, nil, err
	}
	s.Log.Debug("init modules complete")
	return s, dispatch, nil
}

// Start runs a single node until it is cancelled or receives SIGINT/SIGTERM.
func Start(ncfg state.NodeCfg, timing state.TimingCfg, logLevel slog.Level, logPath string, aux map[string]any) error {
	logger, err := NewLogger(ncfg.Id, logLevel, logPath)
	if err != nil {
		return err
	}
	s, dispatch, err := Setup(ncfg, timing, logger, aux)
	if err != nil {
		return err
	}

	s.Log.Info("node has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case _ = <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-s.Context.Done():
			return
		}
	}()

	return MainLoop(s, dispatch)
}

func initModules(s *state.State) error {
	var modules []state.NyModule
	modules = append(modules, &Trace{})
	modules = append(modules, &Node{})

	for _, module := range modules {
		s.Modules[moduleName(module)] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > state.DispatchSlowThreshold {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Debug("stopped main loop", "reason", context.Cause(s.Context).Error())
	Stop(s)
	return nil
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Debug("cleaning up modules")
	for name, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", name, "error", err)
		}
	}
	s.Log.Debug("stopped")
}
