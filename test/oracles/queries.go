// Package oracles holds the SQL invariants of the credit workflow. Each
// query returns rows only when its invariant is violated.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_status_closed_set",
			SQL: `SELECT id, status FROM applications
                  WHERE status NOT IN ('new','in_review','approved','por_dispersar','completed','expired','rejected','cancelled')`,
		},
		{
			Name: "O2_promotion_requires_both_approvals",
			SQL: `SELECT id FROM applications
                  WHERE status = 'por_dispersar'
                    AND NOT (approved_by_advisor AND approved_by_company)`,
		},
		{
			Name: "O3_promotion_exactly_once",
			SQL: `SELECT application_id, COUNT(*) FROM application_history
                  WHERE status = 'por_dispersar'
                  GROUP BY application_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O4_rejected_has_snapshot",
			SQL: `SELECT id FROM applications
                  WHERE status = 'rejected' AND previous_status = ''`,
		},
		{
			Name: "O5_snapshot_only_while_rejected",
			SQL: `SELECT id FROM applications
                  WHERE status <> 'rejected' AND previous_status <> ''`,
		},
		{
			Name: "O6_shared_lanes_converge",
			SQL: `SELECT id FROM applications
                  WHERE status IN ('por_dispersar','completed')
                    AND (advisor_status <> status OR company_status <> status OR global_status <> status)`,
		},
		{
			Name: "O7_approval_flag_date_pairing",
			SQL: `SELECT id FROM applications
                  WHERE (approved_by_advisor AND approval_date_advisor IS NULL)
                     OR (NOT approved_by_advisor AND approval_date_advisor IS NOT NULL)
                     OR (approved_by_company AND approval_date_company IS NULL)
                     OR (NOT approved_by_company AND approval_date_company IS NOT NULL)`,
		},
		{
			Name: "O8_completed_has_dispersal_date",
			SQL: `SELECT id FROM applications
                  WHERE status = 'completed' AND dispersal_date IS NULL`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
