package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"
	"time"
)

// Transaction is one payment record in the dataset under investigation.
type Transaction struct {
	ID           string    `json:"id"`
	Account      string    `json:"account"`
	Counterparty string    `json:"counterparty"`
	Device       string    `json:"device,omitempty"`
	Merchant     string    `json:"merchant,omitempty"`
	Country      string    `json:"country,omitempty"`
	Amount       float64   `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
}

// Dataset is the in-memory transaction set the analytics tools run over.
// It is read-mostly; a mutex guards the rare reload.
type Dataset struct {
	mu  sync.RWMutex
	txs []Transaction
}

// LoadDataset reads a JSON array of transactions from path.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	var txs []Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}
	return &Dataset{txs: txs}, nil
}

// NewDataset wraps an already-loaded transaction slice.
func NewDataset(txs []Transaction) *Dataset {
	return &Dataset{txs: txs}
}

// All returns a copy of every transaction.
func (d *Dataset) All() []Transaction {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Transaction, len(d.txs))
	copy(out, d.txs)
	return out
}

// ByAccount returns the transactions for one account, oldest first.
func (d *Dataset) ByAccount(account string) []Transaction {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Transaction
	for _, tx := range d.txs {
		if tx.Account == account {
			out = append(out, tx)
		}
	}
	return out
}

// Len returns the number of transactions.
func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.txs)
}

// amountStats computes mean and population standard deviation.
func amountStats(txs []Transaction) Benchmark {
	if len(txs) == 0 {
		return Benchmark{}
	}

	var sum float64
	for _, tx := range txs {
		sum += tx.Amount
	}
	mean := sum / float64(len(txs))

	var variance float64
	for _, tx := range txs {
		d := tx.Amount - mean
		variance += d * d
	}
	variance /= float64(len(txs))

	return Benchmark{Mean: mean, StdDev: math.Sqrt(variance), Count: len(txs)}
}
