package medications

import "sync"

// Broker reparte snapshots completos por owner a los watchers conectados.
// Cada publicación reemplaza lo que el suscriptor tuviera pendiente: si un
// consumidor va lento solo pierde snapshots intermedios, nunca el último.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan []Medication]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []Medication]struct{}),
	}
}

// Subscribe registra un watcher para un owner. El cancel devuelto es
// idempotente y cierra el canal; omitirlo es el leak clásico a testear.
func (b *Broker) Subscribe(ownerUserID string) (<-chan []Medication, func()) {
	ch := make(chan []Medication, 1)

	b.mu.Lock()
	if b.subs[ownerUserID] == nil {
		b.subs[ownerUserID] = make(map[chan []Medication]struct{})
	}
	b.subs[ownerUserID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[ownerUserID], ch)
			if len(b.subs[ownerUserID]) == 0 {
				delete(b.subs, ownerUserID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish entrega el snapshot a todos los watchers del owner.
func (b *Broker) Publish(ownerUserID string, snapshot []Medication) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[ownerUserID] {
		// latest-wins: drena lo pendiente antes de encolar
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Subscribers devuelve la cantidad de watchers activos del owner (para tests).
func (b *Broker) Subscribers(ownerUserID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[ownerUserID])
}
