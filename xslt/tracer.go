package xslt

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Tracer is the logging facade for a transform run, modeled the same
// way the teacher pairs a narrow interface with a no-op implementation
// and a slog-backed one.
type Tracer interface {
	Start()
	Done()
	Enter(*Context)
	Leave(*Context)
	Error(*Context, error)
	Query(*Context, string)
}

func NoopTracer() Tracer { return discardTracer{} }

type discardTracer struct{}

func (discardTracer) Start()                 {}
func (discardTracer) Done()                  {}
func (discardTracer) Enter(*Context)         {}
func (discardTracer) Leave(*Context)         {}
func (discardTracer) Error(*Context, error)  {}
func (discardTracer) Query(*Context, string) {}

type stdioTracer struct {
	logger     *slog.Logger
	when       time.Time
	errCount   int
	instrCount int
	queryCount int
}

func Stdout() Tracer { return &stdioTracer{logger: stdioLogger(os.Stdout), when: time.Now()} }
func Stderr() Tracer { return &stdioTracer{logger: stdioLogger(os.Stderr), when: time.Now()} }

func stdioLogger(w io.Writer) *slog.Logger {
	opts := slog.HandlerOptions{Level: slog.LevelDebug}
	return slog.New(slog.NewTextHandler(w, &opts))
}

func (t *stdioTracer) Start() { t.logger.Info("start") }

func (t *stdioTracer) Done() {
	t.logger.Info("done",
		"elapsed", time.Since(t.when),
		"instructions", t.instrCount,
		"errors", t.errCount,
		"queries", t.queryCount,
	)
}

func (t *stdioTracer) Enter(ctx *Context) {
	t.instrCount++
	t.logger.Debug("start instruction",
		"instruction", instructionName(ctx),
		"node", ctx.ContextNode,
		"depth", ctx.Depth,
	)
}

func (t *stdioTracer) Leave(ctx *Context) {
	t.logger.Debug("done instruction",
		"instruction", instructionName(ctx),
		"node", ctx.ContextNode,
		"depth", ctx.Depth,
	)
}

func (t *stdioTracer) Error(ctx *Context, err error) {
	t.errCount++
	depth := 0
	if ctx != nil {
		depth = ctx.Depth
	}
	t.logger.Error("error while processing instruction",
		"instruction", instructionName(ctx),
		"depth", depth,
		"err", err.Error(),
	)
}

func (t *stdioTracer) Query(ctx *Context, query string) {
	t.queryCount++
	t.logger.Debug("run query", "instruction", instructionName(ctx), "query", query)
}

func instructionName(ctx *Context) string {
	if ctx == nil || ctx.XslNode == nil {
		return ""
	}
	return qualifiedNameOf(ctx.XslNode)
}
