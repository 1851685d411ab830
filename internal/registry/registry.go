// Package registry mantiene la metadata estática de venues y chains.
// Read-mostly: las lecturas son concurrentes y el reload (raro) toma un
// write lock breve. Ningún otro componente muta los descriptors.
package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/swaproute/internal/domain"
)

// Registry expone los venues configurados y los tokens nativos por chain.
type Registry struct {
	mu     sync.RWMutex
	venues map[string]domain.VenueDescriptor
	native map[uint64]domain.Token // chainID → token nativo (para coste de gas)
}

// New crea un Registry con los descriptors y tokens nativos dados.
func New(venues []domain.VenueDescriptor, native map[uint64]domain.Token) (*Registry, error) {
	r := &Registry{}
	if err := r.Reload(venues, native); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload reemplaza la configuración completa bajo write lock. Valida antes
// de aplicar: un reload inválido deja el estado anterior intacto.
func (r *Registry) Reload(venues []domain.VenueDescriptor, native map[uint64]domain.Token) error {
	byID := make(map[string]domain.VenueDescriptor, len(venues))
	for _, v := range venues {
		if v.ID == "" {
			return fmt.Errorf("registry.Reload: venue without id")
		}
		if _, dup := byID[v.ID]; dup {
			return fmt.Errorf("registry.Reload: duplicate venue %q", v.ID)
		}
		if len(v.Chains) == 0 {
			return fmt.Errorf("registry.Reload: venue %q has no chains", v.ID)
		}
		byID[v.ID] = v
	}

	nat := make(map[uint64]domain.Token, len(native))
	for id, tok := range native {
		nat[id] = tok
	}

	r.mu.Lock()
	r.venues = byID
	r.native = nat
	r.mu.Unlock()

	slog.Info("venue registry loaded", "venues", len(byID), "chains", len(nat))
	return nil
}

// Eligible devuelve los venues activos que soportan la chain dada.
func (r *Registry) Eligible(chainID uint64) []domain.VenueDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.VenueDescriptor, 0, len(r.venues))
	for _, v := range r.venues {
		if v.Active && v.SupportsChain(chainID) {
			out = append(out, v)
		}
	}
	return out
}

// Venue devuelve el descriptor de un venue por ID.
func (r *Registry) Venue(id string) (domain.VenueDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.venues[id]
	return v, ok
}

// All devuelve todos los descriptors (para observabilidad/CLI).
func (r *Registry) All() []domain.VenueDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.VenueDescriptor, 0, len(r.venues))
	for _, v := range r.venues {
		out = append(out, v)
	}
	return out
}

// NativeToken devuelve el token nativo de la chain (para convertir coste
// de gas a términos del token de salida).
func (r *Registry) NativeToken(chainID uint64) (domain.Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.native[chainID]
	return t, ok
}
