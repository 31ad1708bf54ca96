package batch

import (
	"fmt"
	"sort"

	"github.com/ksred/klear-bill/internal/types"
	"github.com/ksred/klear-bill/internal/upload"
)

// Group keys
const (
	GroupByAccount = "account_id"
	GroupByUser    = "user_id"
)

// Failure is an account or row the batch could not bill.
type Failure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// GroupColumns records which identifier columns each extract carries.
type GroupColumns struct {
	GroupKey       string
	DaywiseAccount bool
	DaywiseUser    bool
	NetwiseAccount bool
	NetwiseUser    bool
}

// ResolveGroupColumns groups by account when both extracts carry an
// account column, else by user when both carry a user column.
func ResolveGroupColumns(day, net *upload.Table) (GroupColumns, error) {
	cols := GroupColumns{
		DaywiseAccount: day.Has(upload.ColAccount),
		DaywiseUser:    day.Has(upload.ColUser),
		NetwiseAccount: net.Has(upload.ColAccount),
		NetwiseUser:    net.Has(upload.ColUser),
	}

	switch {
	case cols.DaywiseAccount && cols.NetwiseAccount:
		cols.GroupKey = GroupByAccount
	case cols.DaywiseUser && cols.NetwiseUser:
		cols.GroupKey = GroupByUser
	default:
		return cols, types.NewInputError("Admin file must contain Account Id or User Id column.")
	}
	return cols, nil
}

// Groups holds one extract's rows by account key, in first-seen order.
type Groups struct {
	Keys []string
	Rows map[string][]types.TradeRow
}

// GroupRows splits rows by key. In account mode a blank account falls back
// to the user value when the extract has a user column. Rows left without a
// key are reported as failures labelled with the extract name.
func GroupRows(rows []types.TradeRow, groupKey string, hasUser bool, src upload.Source) (Groups, []Failure) {
	groups := Groups{Rows: map[string][]types.TradeRow{}}
	var failures []Failure

	missing := "User Id"
	if groupKey == GroupByAccount {
		missing = "Account Id"
		if hasUser {
			missing = "Account Id or User Id"
		}
	}

	for _, row := range rows {
		key := row.User
		if groupKey == GroupByAccount {
			key = row.Account
			if key == "" && hasUser {
				key = row.User
			}
		}

		if key == "" {
			failures = append(failures, Failure{
				Key:   fmt.Sprintf("%s_row_%d", src.Name, row.Index),
				Error: fmt.Sprintf("%s row missing %s.", src.Name, missing),
			})
			continue
		}

		if _, seen := groups.Rows[key]; !seen {
			groups.Keys = append(groups.Keys, key)
		}
		groups.Rows[key] = append(groups.Rows[key], row)
	}
	return groups, failures
}

// NetwiseOnlyKeys lists accounts that appear in netwise but not daywise.
func NetwiseOnlyKeys(day, net Groups) []string {
	out := []string{}
	for _, key := range net.Keys {
		if _, ok := day.Rows[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
