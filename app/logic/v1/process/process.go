package process

import (
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/evergreensystems/evergreen-ai/app/core"
	"github.com/evergreensystems/evergreen-ai/pkg/register"
)

type Process struct {
	cron *cron.Cron
	core *core.Core
}

var p *Process

type ProcessKey struct{}

func NewProcess(core *core.Core) *Process {
	p = &Process{
		cron: cron.New(),
		core: core,
	}

	for _, h := range register.ResolveFuncHandlers[*Process](ProcessKey{}) {
		h(p)
	}

	return p
}

func (p *Process) Core() *core.Core {
	return p.core
}

func (p *Process) Cron() *cron.Cron {
	return p.cron
}

func (p *Process) Start() {
	p.cron.Start()
	slog.Info("background process started", slog.Int("jobs", len(p.cron.Entries())))
}

func (p *Process) Stop() {
	<-p.cron.Stop().Done()
}
