package application

import (
	"sync"

	"sasapp-gateway/sasapp/domain"
)

// Notifier acorda quem está aguardando a assinatura de um documento.
//
// Substitui, do lado do servidor, os eventos storage/focus que o browser
// usava para reconsultar o status.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.SignatureStatus]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[chan domain.SignatureStatus]struct{})}
}

// Subscribe devolve um canal com buffer 1 e a função que cancela a inscrição.
func (n *Notifier) Subscribe(docToken string) (<-chan domain.SignatureStatus, func()) {
	ch := make(chan domain.SignatureStatus, 1)

	n.mu.Lock()
	set, ok := n.subs[docToken]
	if !ok {
		set = make(map[chan domain.SignatureStatus]struct{})
		n.subs[docToken] = set
	}
	set[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[docToken], ch)
			if len(n.subs[docToken]) == 0 {
				delete(n.subs, docToken)
			}
		})
	}
}

// Publish nunca bloqueia: se o buffer do inscrito estiver cheio, o valor
// mais novo substitui o antigo.
func (n *Notifier) Publish(st domain.SignatureStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs[st.DocToken] {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}

func (n *Notifier) Subscribers(docToken string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[docToken])
}
