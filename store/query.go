package store

import (
	"fmt"
	"sort"
	"strings"
)

// Query describes a filtered, sorted, limited read of one table. Filters are
// substring matches on the column's text form; Sorts map column -> asc|desc.
type Query struct {
	Filters map[string]string
	Sorts   map[string]string
	Limit   int
}

const defaultLimit = 100

// HistoryColumns lists the selectable columns of option_history_eod.
func HistoryColumns() []string { return historyColumns }

// ChainColumns lists the selectable columns of option_chain_eod.
func ChainColumns() []string { return chainColumns }

// buildSelect renders one parameterized SELECT for a table. Column names in
// filters and sorts are checked against the table's column list; anything
// else is rejected rather than interpolated.
func buildSelect(table string, cols []string, defaultOrder string, q Query) (string, []interface{}, error) {
	allowed := make(map[string]bool)
	for _, col := range cols {
		allowed[col] = true
	}

	var b strings.Builder
	var args []interface{}

	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), table)

	// Deterministic clause order for a map-typed filter set.
	var filterCols []string
	for col := range q.Filters {
		filterCols = append(filterCols, col)
	}
	sort.Strings(filterCols)

	for i, col := range filterCols {
		if !allowed[col] {
			return "", nil, fmt.Errorf("unknown filter column %s", col)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "%s::text ILIKE '%%' || $%d || '%%'", col, len(args)+1)
		args = append(args, q.Filters[col])
	}

	var orders []string
	var sortCols []string
	for col := range q.Sorts {
		sortCols = append(sortCols, col)
	}
	sort.Strings(sortCols)

	for _, col := range sortCols {
		if !allowed[col] {
			return "", nil, fmt.Errorf("unknown sort column %s", col)
		}
		dir := strings.ToUpper(q.Sorts[col])
		if dir != "ASC" && dir != "DESC" {
			return "", nil, fmt.Errorf("unknown sort direction %s", q.Sorts[col])
		}
		orders = append(orders, col+" "+dir)
	}

	if len(orders) == 0 {
		orders = append(orders, defaultOrder)
	}
	fmt.Fprintf(&b, " ORDER BY %s", strings.Join(orders, ", "))

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	fmt.Fprintf(&b, " LIMIT $%d", len(args)+1)
	args = append(args, limit)

	return b.String(), args, nil
}

// SelectHistory reads option_history_eod per the query.
func (s *Store) SelectHistory(q Query) ([]HistoryRow, error) {
	query, args, err := buildSelect("option_history_eod", historyColumns, "quotedate DESC, expiredate ASC, strike ASC", q)
	if err != nil {
		return nil, err
	}

	var rows []HistoryRow
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("unable to select history rows %s", err)
	}

	return rows, nil
}

// SelectChain reads option_chain_eod per the query.
func (s *Store) SelectChain(q Query) ([]ChainRow, error) {
	query, args, err := buildSelect("option_chain_eod", chainColumns, "quotedate DESC, runtime DESC, expiredate ASC, strike ASC", q)
	if err != nil {
		return nil, err
	}

	var rows []ChainRow
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("unable to select chain rows %s", err)
	}

	return rows, nil
}
