package store

import (
	"database/sql"
	"fmt"
)

// WalletStore tracks each user's in-app currency balance. Rows are created
// lazily on first credit; a user with no row has a zero balance.
type WalletStore struct {
	db *sql.DB
}

func NewWalletStore(db *sql.DB) *WalletStore {
	return &WalletStore{db: db}
}

func (s *WalletStore) Credit(userID int64, amount int) error {
	_, err := s.db.Exec(
		`INSERT INTO wallets (user_id, balance) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET balance = balance + excluded.balance, updated_at = CURRENT_TIMESTAMP`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}

func (s *WalletStore) Balance(userID int64) (int, error) {
	var balance int
	err := s.db.QueryRow(`SELECT balance FROM wallets WHERE user_id = ?`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}
