package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"roadplan/internal/repository/artifact"
)

// PromptSaver implements llm.PromptHook and records each prompt with its
// raw response under prompts/<phase>-<seq>.txt of the run found in ctx.
// Calls outside a run are ignored.
type PromptSaver struct {
	Store  artifact.Store
	Logger *log.Logger

	mu      sync.Mutex
	seq     map[string]int
	pending map[context.Context]*bytes.Buffer
}

func (p *PromptSaver) Before(ctx context.Context, phase, prompt string, input any) {
	if p.Store == nil || RunIDFrom(ctx) == "" {
		return
	}
	var buf bytes.Buffer
	buf.WriteString("==== ")
	buf.WriteString(time.Now().Format(time.RFC3339))
	buf.WriteString(" ====\n")
	buf.WriteString(prompt)
	buf.WriteString("\n\n[INPUT JSON]\n")
	jb, _ := json.MarshalIndent(input, "", "  ")
	buf.Write(jb)
	buf.WriteString("\n\n")

	p.mu.Lock()
	if p.pending == nil {
		p.pending = map[context.Context]*bytes.Buffer{}
	}
	p.pending[ctx] = &buf
	p.mu.Unlock()
}

func (p *PromptSaver) After(ctx context.Context, phase string, raw json.RawMessage, err error) {
	runID := RunIDFrom(ctx)
	if p.Store == nil || runID == "" {
		return
	}
	if phase == "" {
		phase = "unknown"
	}
	p.mu.Lock()
	buf := p.pending[ctx]
	delete(p.pending, ctx)
	if p.seq == nil {
		p.seq = map[string]int{}
	}
	p.seq[runID+"/"+phase]++
	n := p.seq[runID+"/"+phase]
	p.mu.Unlock()
	if buf == nil {
		buf = &bytes.Buffer{}
	}

	buf.WriteString("[RESPONSE]\n")
	if err != nil {
		buf.WriteString("ERROR: " + err.Error() + "\n")
	} else {
		buf.Write(raw)
		buf.WriteString("\n")
	}
	path := fmt.Sprintf("prompts/%s-%03d.txt", phase, n)
	if perr := p.Store.Put(context.WithoutCancel(ctx), runID, path, buf.Bytes()); perr != nil {
		loggerOr(p.Logger).Printf("prompt saver: run=%s %s: %v", runID, path, perr)
	}
}
