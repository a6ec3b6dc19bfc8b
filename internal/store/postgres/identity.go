package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"storepos/backend/internal/domain"
	"storepos/backend/internal/store"
)

const managerColumns = `id, email, full_name, phone_number, password_hash, store_id, store_name, created_at`
const cashierColumns = `id, full_name, phone_number, password_hash, store_id, is_active, created_at`
const joinRequestColumns = `id, store_id, user_kind, user_id, user_name, user_phone, user_email, status, requested_at, reviewed_by, reviewed_at`

func (s *Store) CreateStoreWithManager(ctx context.Context, st domain.Store, manager domain.Manager) (*domain.Store, *domain.Manager, error) {
	if manager.ID == uuid.Nil {
		manager.ID = uuid.New()
	}
	st.CreatedBy = manager.ID

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &st, `
			INSERT INTO stores (store_code, store_name, created_by, created_at)
			VALUES ($1, $2, $3, now())
			RETURNING id, store_code, store_name, created_by, created_at
		`, st.StoreCode, st.StoreName, st.CreatedBy)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrStoreCodeTaken
			}
			return err
		}

		err = tx.GetContext(ctx, &manager, `
			INSERT INTO managers (id, email, full_name, phone_number, password_hash, store_id, store_name, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			RETURNING `+managerColumns,
			manager.ID, manager.Email, manager.FullName, manager.PhoneNumber, manager.PasswordHash, st.ID, st.StoreName)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicate
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &st, &manager, nil
}

func (s *Store) CreateManagerWithJoinRequest(ctx context.Context, manager domain.Manager, storeID int64, at time.Time) (*domain.Manager, *domain.JoinRequest, error) {
	if manager.ID == uuid.Nil {
		manager.ID = uuid.New()
	}
	var jr domain.JoinRequest

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM stores WHERE id = $1)`, storeID); err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}

		err := tx.GetContext(ctx, &manager, `
			INSERT INTO managers (id, email, full_name, phone_number, password_hash, store_id, store_name, created_at)
			VALUES ($1, $2, $3, $4, $5, NULL, '', $6)
			RETURNING `+managerColumns,
			manager.ID, manager.Email, manager.FullName, manager.PhoneNumber, manager.PasswordHash, at)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicate
			}
			return err
		}

		return tx.GetContext(ctx, &jr, `
			INSERT INTO join_requests (store_id, user_kind, user_id, user_name, user_phone, user_email, status, requested_at)
			VALUES ($1, 'manager', $2, $3, $4, $5, 'pending', $6)
			RETURNING `+joinRequestColumns,
			storeID, manager.ID.String(), manager.FullName, manager.PhoneNumber, manager.Email, at)
	})
	if err != nil {
		return nil, nil, err
	}
	return &manager, &jr, nil
}

func (s *Store) CreateCashierWithJoinRequest(ctx context.Context, cashier domain.CashierAccount, storeID int64, at time.Time) (*domain.CashierAccount, *domain.JoinRequest, error) {
	var jr domain.JoinRequest

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM stores WHERE id = $1)`, storeID); err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}

		err := tx.GetContext(ctx, &cashier, `
			INSERT INTO cashier_accounts (full_name, phone_number, password_hash, store_id, is_active, created_at)
			VALUES ($1, $2, $3, NULL, false, $4)
			RETURNING `+cashierColumns,
			cashier.FullName, cashier.PhoneNumber, cashier.PasswordHash, at)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicate
			}
			return err
		}

		return tx.GetContext(ctx, &jr, `
			INSERT INTO join_requests (store_id, user_kind, user_id, user_name, user_phone, user_email, status, requested_at)
			VALUES ($1, 'cashier', $2, $3, $4, '', 'pending', $5)
			RETURNING `+joinRequestColumns,
			storeID, domain.CashierActor(cashier.ID).Key(), cashier.FullName, cashier.PhoneNumber, at)
	})
	if err != nil {
		return nil, nil, err
	}
	return &cashier, &jr, nil
}

func (s *Store) GetStoreByID(ctx context.Context, storeID int64) (*domain.Store, error) {
	var st domain.Store
	err := s.db.GetContext(ctx, &st, `
		SELECT id, store_code, store_name, created_by, created_at
		FROM stores
		WHERE id = $1
	`, storeID)
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (s *Store) GetStoreByCode(ctx context.Context, code string) (*domain.Store, error) {
	var st domain.Store
	err := s.db.GetContext(ctx, &st, `
		SELECT id, store_code, store_name, created_by, created_at
		FROM stores
		WHERE upper(store_code) = upper($1)
	`, strings.TrimSpace(code))
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (s *Store) getManager(ctx context.Context, where string, arg any) (*domain.Manager, error) {
	var manager domain.Manager
	err := s.db.GetContext(ctx, &manager, `
		SELECT `+managerColumns+`
		FROM managers
		WHERE `+where+`
		ORDER BY created_at ASC
		LIMIT 1
	`, arg)
	if err != nil {
		return nil, notFound(err)
	}
	return &manager, nil
}

func (s *Store) GetManagerByID(ctx context.Context, id uuid.UUID) (*domain.Manager, error) {
	return s.getManager(ctx, `id = $1`, id)
}

func (s *Store) GetManagerByEmail(ctx context.Context, email string) (*domain.Manager, error) {
	return s.getManager(ctx, `lower(email) = lower($1)`, email)
}

func (s *Store) GetManagerByPhone(ctx context.Context, phone string) (*domain.Manager, error) {
	return s.getManager(ctx, `phone_number = $1`, phone)
}

func (s *Store) FindManagerByNameOrPhone(ctx context.Context, identifier string) (*domain.Manager, error) {
	return s.getManager(ctx, `(lower(full_name) = lower($1) OR phone_number = $1)`, identifier)
}

func (s *Store) GetCashierByID(ctx context.Context, id int64) (*domain.CashierAccount, error) {
	var cashier domain.CashierAccount
	err := s.db.GetContext(ctx, &cashier, `SELECT `+cashierColumns+` FROM cashier_accounts WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &cashier, nil
}

func (s *Store) GetCashierByPhone(ctx context.Context, phone string) (*domain.CashierAccount, error) {
	var cashier domain.CashierAccount
	err := s.db.GetContext(ctx, &cashier, `SELECT `+cashierColumns+` FROM cashier_accounts WHERE phone_number = $1`, phone)
	if err != nil {
		return nil, notFound(err)
	}
	return &cashier, nil
}

func (s *Store) ListJoinRequests(ctx context.Context, storeID int64, status string) ([]domain.JoinRequest, error) {
	requests := make([]domain.JoinRequest, 0)
	err := s.db.SelectContext(ctx, &requests, `
		SELECT `+joinRequestColumns+`
		FROM join_requests
		WHERE store_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY requested_at DESC, id DESC
	`, storeID, status)
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *Store) ReviewJoinRequest(ctx context.Context, storeID int64, requestID int64, status string, reviewer uuid.UUID, at time.Time) (*domain.JoinRequest, error) {
	if status != domain.JoinApproved && status != domain.JoinRejected {
		return nil, store.ErrInvalid
	}

	var jr domain.JoinRequest
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &jr, `
			SELECT `+joinRequestColumns+`
			FROM join_requests
			WHERE id = $1 AND store_id = $2
			FOR UPDATE
		`, requestID, storeID)
		if err != nil {
			return notFound(err)
		}
		if jr.Status != domain.JoinPending {
			return store.ErrConflict
		}

		if status == domain.JoinApproved {
			actor, err := domain.ParseActor(jr.UserKind, jr.UserID)
			if err != nil {
				return store.ErrInvalid
			}
			var res sql.Result
			switch actor.Kind {
			case domain.ActorManager:
				res, err = tx.ExecContext(ctx, `
					UPDATE managers
					SET store_id = $2, store_name = (SELECT store_name FROM stores WHERE id = $2)
					WHERE id = $1
				`, actor.ManagerID, storeID)
			default:
				res, err = tx.ExecContext(ctx, `
					UPDATE cashier_accounts
					SET store_id = $2, is_active = true
					WHERE id = $1
				`, actor.CashierID, storeID)
			}
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return store.ErrNotFound
			}
		}

		return tx.GetContext(ctx, &jr, `
			UPDATE join_requests
			SET status = $2, reviewed_by = $3, reviewed_at = $4
			WHERE id = $1
			RETURNING `+joinRequestColumns,
			requestID, status, reviewer, at)
	})
	if err != nil {
		return nil, err
	}
	return &jr, nil
}

type storeUserRow struct {
	Kind        string        `db:"kind"`
	ManagerID   uuid.NullUUID `db:"manager_id"`
	CashierID   *int64        `db:"cashier_id"`
	FullName    string        `db:"full_name"`
	PhoneNumber string        `db:"phone_number"`
	Email       string        `db:"email"`
}

func (s *Store) ListStoreUsers(ctx context.Context, storeID int64) ([]domain.StoreUser, error) {
	rows := make([]storeUserRow, 0)
	err := s.db.SelectContext(ctx, &rows, `
		SELECT 'manager' AS kind, id AS manager_id, NULL::bigint AS cashier_id, full_name, phone_number, email
		FROM managers
		WHERE store_id = $1
		UNION ALL
		SELECT 'cashier' AS kind, NULL::uuid AS manager_id, id AS cashier_id, full_name, phone_number, '' AS email
		FROM cashier_accounts
		WHERE store_id = $1 AND is_active = true
		ORDER BY full_name ASC
	`, storeID)
	if err != nil {
		return nil, err
	}

	users := make([]domain.StoreUser, 0, len(rows))
	for _, row := range rows {
		user := domain.StoreUser{
			FullName:    row.FullName,
			PhoneNumber: row.PhoneNumber,
			Email:       row.Email,
			Role:        row.Kind,
		}
		if row.Kind == string(domain.ActorManager) {
			user.Actor = domain.ManagerActor(row.ManagerID.UUID)
		} else if row.CashierID != nil {
			user.Actor = domain.CashierActor(*row.CashierID)
		}
		users = append(users, user)
	}
	return users, nil
}

type nameRow struct {
	ID       string `db:"id"`
	FullName string `db:"full_name"`
}

func (s *Store) ResolveActorNames(ctx context.Context, actors []domain.ActorID) (map[domain.ActorID]string, error) {
	return resolveActorNames(ctx, s.db, actors)
}

func resolveActorNames(ctx context.Context, q sqlx.QueryerContext, actors []domain.ActorID) (map[domain.ActorID]string, error) {
	names := make(map[domain.ActorID]string, len(actors))
	managerIDs := make([]string, 0)
	cashierIDs := make([]int64, 0)
	for _, actor := range actors {
		switch actor.Kind {
		case domain.ActorManager:
			managerIDs = append(managerIDs, actor.ManagerID.String())
		case domain.ActorCashier:
			cashierIDs = append(cashierIDs, actor.CashierID)
		}
	}

	if len(managerIDs) > 0 {
		query, args, err := sqlx.In(`SELECT id::text AS id, full_name FROM managers WHERE id::text IN (?)`, managerIDs)
		if err != nil {
			return nil, err
		}
		rows := make([]nameRow, 0, len(managerIDs))
		if err := sqlx.SelectContext(ctx, q, &rows, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
			return nil, err
		}
		for _, row := range rows {
			if actor, err := domain.ParseActor(domain.ActorManager, row.ID); err == nil {
				names[actor] = row.FullName
			}
		}
	}

	if len(cashierIDs) > 0 {
		query, args, err := sqlx.In(`SELECT id::text AS id, full_name FROM cashier_accounts WHERE id IN (?)`, cashierIDs)
		if err != nil {
			return nil, err
		}
		rows := make([]nameRow, 0, len(cashierIDs))
		if err := sqlx.SelectContext(ctx, q, &rows, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
			return nil, err
		}
		for _, row := range rows {
			if actor, err := domain.ParseActor(domain.ActorCashier, row.ID); err == nil {
				names[actor] = row.FullName
			}
		}
	}
	return names, nil
}
