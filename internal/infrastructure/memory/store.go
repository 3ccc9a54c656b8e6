// Package memory implementa los puertos de persistencia en proceso. Lo usan los tests y el modo
// sin base de datos del motor.
package memory

import "github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"

// Store agrupa todos los repositorios en memoria de una instancia del motor.
type Store struct {
	Items       *ItemStore
	Policies    *PolicyHistoryStore
	Ledger      *LedgerStore
	Projections *ProjectionStore
	Alerts      *AlertStore
	Snapshots   *SnapshotStore
	Tasks       *TaskStore
	Directory   *Directory
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		Items:       NewItemStore(),
		Policies:    NewPolicyHistoryStore(),
		Ledger:      NewLedgerStore(),
		Projections: NewProjectionStore(),
		Alerts:      NewAlertStore(),
		Snapshots:   NewSnapshotStore(),
		Tasks:       NewTaskStore(),
		Directory:   NewDirectory(),
	}
}

func key(tenantID, id string) string { return tenantID + "/" + id }

func cloneEntry(e *entity.LedgerEntry) *entity.LedgerEntry {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
