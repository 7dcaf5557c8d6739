package domain

// BalanceSnapshotRecord bundles a stored portfolio snapshot with its run and WAL index.
type BalanceSnapshotRecord struct {
	Index    uint64            `json:"index"`
	RunID    string            `json:"runId"`
	Snapshot PortfolioSnapshot `json:"snapshot"`
}
