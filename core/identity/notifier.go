package identity

import (
	"context"
	"sync"
)

// Notifier tracks the signed-in principal over a session and tells
// subscribers when it changes, so dependent state can be rebuilt on
// login and cleared on logout. A nil principal means signed out.
type Notifier struct {
	mu      sync.Mutex
	current *Principal
	subs    []func(*Principal)
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Current(ctx context.Context) (Principal, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil {
		return Principal{}, ErrNoPrincipal
	}
	return *n.current, nil
}

func (n *Notifier) Subscribe(fn func(*Principal)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, fn)
}

func (n *Notifier) Login(p Principal) {
	n.notify(&p)
}

func (n *Notifier) Logout() {
	n.notify(nil)
}

func (n *Notifier) notify(p *Principal) {
	n.mu.Lock()
	n.current = p
	subs := make([]func(*Principal), len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, fn := range subs {
		fn(p)
	}
}
