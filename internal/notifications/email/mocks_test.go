package email

import (
	"context"
	"sync"
	"time"

	"daypass/internal/types"
)

type fakeProvider struct {
	mu   sync.Mutex
	sent []types.SendInput
	err  error
}

func (p *fakeProvider) Send(_ context.Context, in types.SendInput) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.sent = append(p.sent, in)
	return "msg-1", nil
}

func (p *fakeProvider) last() types.SendInput {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[len(p.sent)-1]
}

type fakeTemplates map[types.TemplateKey]*types.EmailTemplate

func (f fakeTemplates) Get(_ context.Context, key types.TemplateKey) (*types.EmailTemplate, error) {
	if t, ok := f[key]; ok {
		return t, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundTemplate, "missing", nil)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
