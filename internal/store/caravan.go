package store

import (
	"database/sql"
	"fmt"

	"github.com/karavan-app/karavan/internal/model"
)

type CaravanStore struct {
	db *sql.DB
}

func NewCaravanStore(db *sql.DB) *CaravanStore {
	return &CaravanStore{db: db}
}

// Create inserts the caravan and registers the creator as its first member.
func (s *CaravanStore) Create(c *model.Caravan) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO caravans (id, goal_id, title, created_by) VALUES (?, ?, ?, ?)`,
		c.ID, c.GoalID, c.Title, c.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert caravan: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO caravan_members (caravan_id, user_id) VALUES (?, ?)`,
		c.ID, c.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert creator membership: %w", err)
	}
	return tx.Commit()
}

func (s *CaravanStore) GetByID(id string) (*model.Caravan, error) {
	var c model.Caravan
	err := s.db.QueryRow(
		`SELECT id, goal_id, title, created_by, created_at FROM caravans WHERE id = ?`, id,
	).Scan(&c.ID, &c.GoalID, &c.Title, &c.CreatedBy, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get caravan: %w", err)
	}
	return &c, nil
}

func (s *CaravanStore) ListByUser(userID int64) ([]model.Caravan, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.goal_id, c.title, c.created_by, c.created_at
		 FROM caravans c
		 JOIN caravan_members m ON m.caravan_id = c.id
		 WHERE m.user_id = ?
		 ORDER BY c.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list caravans: %w", err)
	}
	defer rows.Close()

	var caravans []model.Caravan
	for rows.Next() {
		var c model.Caravan
		if err := rows.Scan(&c.ID, &c.GoalID, &c.Title, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan caravan: %w", err)
		}
		caravans = append(caravans, c)
	}
	return caravans, rows.Err()
}

// AddMember is idempotent: joining a caravan twice is a no-op.
func (s *CaravanStore) AddMember(caravanID string, userID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO caravan_members (caravan_id, user_id) VALUES (?, ?)
		 ON CONFLICT(caravan_id, user_id) DO NOTHING`,
		caravanID, userID,
	)
	if err != nil {
		return fmt.Errorf("add caravan member: %w", err)
	}
	return nil
}

func (s *CaravanStore) IsMember(caravanID string, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM caravan_members WHERE caravan_id = ? AND user_id = ?`,
		caravanID, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check caravan membership: %w", err)
	}
	return true, nil
}

func (s *CaravanStore) ListMembers(caravanID string) ([]model.CaravanMember, error) {
	rows, err := s.db.Query(
		`SELECT caravan_id, user_id, joined_at FROM caravan_members WHERE caravan_id = ? ORDER BY joined_at ASC`,
		caravanID,
	)
	if err != nil {
		return nil, fmt.Errorf("list caravan members: %w", err)
	}
	defer rows.Close()

	var members []model.CaravanMember
	for rows.Next() {
		var m model.CaravanMember
		if err := rows.Scan(&m.CaravanID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan caravan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
