package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const accountColumns = `id, email, full_name, company_name, role, plan, used_this_period, period_start,
    notification_state, stripe_customer_id, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (Account, error) {
	var i Account
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.FullName,
		&i.CompanyName,
		&i.Role,
		&i.Plan,
		&i.UsedThisPeriod,
		&i.PeriodStart,
		&i.NotificationState,
		&i.StripeCustomerID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getAccount = `-- name: GetAccount :one
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
`

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, id))
}

const createAccount = `-- name: CreateAccount :one
INSERT INTO accounts (id, email, full_name, company_name, role, plan)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + accountColumns

type CreateAccountParams struct {
	ID          uuid.UUID
	Email       string
	FullName    string
	CompanyName string
	Role        string
	Plan        string
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, createAccount,
		arg.ID,
		arg.Email,
		arg.FullName,
		arg.CompanyName,
		arg.Role,
		arg.Plan,
	))
}

const incrementUsage = `-- name: IncrementUsage :one
UPDATE accounts
SET used_this_period = used_this_period + 1,
    updated_at = NOW()
WHERE id = $1
  AND plan = $2
  AND ($3::int < 0 OR used_this_period < $3::int)
RETURNING used_this_period, period_start, notification_state
`

type IncrementUsageParams struct {
	ID   uuid.UUID
	Plan string
	// Limit is the plan's monthly limit; negative means unlimited.
	Limit int32
}

type IncrementUsageRow struct {
	UsedThisPeriod    int32
	PeriodStart       time.Time
	NotificationState string
}

// IncrementUsage consumes one credit if the account is still on the evaluated
// plan and below its limit. Returns sql.ErrNoRows when either guard fails.
func (q *Queries) IncrementUsage(ctx context.Context, arg IncrementUsageParams) (IncrementUsageRow, error) {
	row := q.db.QueryRowContext(ctx, incrementUsage, arg.ID, arg.Plan, arg.Limit)
	var i IncrementUsageRow
	err := row.Scan(&i.UsedThisPeriod, &i.PeriodStart, &i.NotificationState)
	return i, err
}

const transitionNotificationState = `-- name: TransitionNotificationState :execrows
UPDATE accounts
SET notification_state = $3,
    updated_at = NOW()
WHERE id = $1
  AND notification_state = $2
`

type TransitionNotificationStateParams struct {
	ID        uuid.UUID
	FromState string
	ToState   string
}

func (q *Queries) TransitionNotificationState(ctx context.Context, arg TransitionNotificationStateParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, transitionNotificationState, arg.ID, arg.FromState, arg.ToState)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listAccountsWithUsage = `-- name: ListAccountsWithUsage :many
SELECT id
FROM accounts
WHERE used_this_period > 0
ORDER BY id
`

func (q *Queries) ListAccountsWithUsage(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := q.db.QueryContext(ctx, listAccountsWithUsage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const resetAccountUsage = `-- name: ResetAccountUsage :execrows
UPDATE accounts
SET used_this_period = 0,
    period_start = $2,
    notification_state = 'not_sent',
    updated_at = NOW()
WHERE id = $1
  AND used_this_period > 0
`

type ResetAccountUsageParams struct {
	ID          uuid.UUID
	PeriodStart time.Time
}

func (q *Queries) ResetAccountUsage(ctx context.Context, arg ResetAccountUsageParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, resetAccountUsage, arg.ID, arg.PeriodStart)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateAccountPlan = `-- name: UpdateAccountPlan :one
UPDATE accounts
SET plan = $2,
    updated_at = NOW()
WHERE id = $1
RETURNING ` + accountColumns

type UpdateAccountPlanParams struct {
	ID   uuid.UUID
	Plan string
}

func (q *Queries) UpdateAccountPlan(ctx context.Context, arg UpdateAccountPlanParams) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, updateAccountPlan, arg.ID, arg.Plan))
}

const updateAccountPlanAndResetUsage = `-- name: UpdateAccountPlanAndResetUsage :one
UPDATE accounts
SET plan = $2,
    used_this_period = 0,
    period_start = $3,
    notification_state = 'not_sent',
    updated_at = NOW()
WHERE id = $1
RETURNING ` + accountColumns

type UpdateAccountPlanAndResetUsageParams struct {
	ID          uuid.UUID
	Plan        string
	PeriodStart time.Time
}

func (q *Queries) UpdateAccountPlanAndResetUsage(ctx context.Context, arg UpdateAccountPlanAndResetUsageParams) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, updateAccountPlanAndResetUsage, arg.ID, arg.Plan, arg.PeriodStart))
}

const updateAccountPlanByStripeCustomer = `-- name: UpdateAccountPlanByStripeCustomer :one
UPDATE accounts
SET plan = $2,
    updated_at = NOW()
WHERE stripe_customer_id = $1
RETURNING ` + accountColumns

type UpdateAccountPlanByStripeCustomerParams struct {
	StripeCustomerID sql.NullString
	Plan             string
}

func (q *Queries) UpdateAccountPlanByStripeCustomer(ctx context.Context, arg UpdateAccountPlanByStripeCustomerParams) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, updateAccountPlanByStripeCustomer, arg.StripeCustomerID, arg.Plan))
}
