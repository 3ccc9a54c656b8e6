package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Store repositorios sobre el pool, con la misma forma que memory.Store.
type Store struct {
	Tx          *TxRunner
	Items       *ItemRepo
	Policies    *PolicyHistoryRepo
	Ledger      *LedgerRepo
	Projections *ProjectionRepo
	Alerts      *AlertRepo
	Snapshots   *SnapshotRepo
	Tasks       *TaskRepo
	Directory   *DirectoryRepo
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Tx:          NewTxRunner(pool),
		Items:       NewItemRepository(pool),
		Policies:    NewPolicyHistoryRepository(pool),
		Ledger:      NewLedgerRepository(pool),
		Projections: NewProjectionRepository(pool),
		Alerts:      NewAlertRepository(pool),
		Snapshots:   NewSnapshotRepository(pool),
		Tasks:       NewTaskRepository(pool),
		Directory:   NewDirectoryRepository(pool),
	}
}
