// Package journal persists and exports account ledger state: a versioned
// SQLite store for full save/load round trips and CSV dumps of the trade,
// position and funds-curve lists.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/accountsim/account"
	"github.com/rustyeddy/accountsim/market"
)

// ErrSchemaVersion means the stored schema version is not one this build can
// read. The load fails wholesale rather than truncating.
var ErrSchemaVersion = errors.New("unrecognized journal schema version")

// SQLite stores one ledger snapshot per database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// Save replaces the stored snapshot with st.
func (j *SQLite) Save(st account.LedgerState) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"meta", "trades", "positions", "contracts", "params"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}

	meta := map[string]string{
		"schema_version":    strconv.Itoa(SchemaVersion),
		"name":              st.Name,
		"init_cash":         formatFloat(st.InitCash),
		"current_cash":      formatFloat(st.CurrentCash),
		"precision":         strconv.Itoa(st.Precision),
		"init_time":         strconv.FormatInt(Stamp(st.InitTime), 10),
		"last_time":         strconv.FormatInt(Stamp(st.LastTime), 10),
		"last_weight_time":  strconv.FormatInt(Stamp(st.LastWeightTime), 10),
		"broker_activation": strconv.FormatInt(Stamp(st.BrokerActivation), 10),
		"borrowed_cash":     formatFloat(st.BorrowedCash),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return err
		}
	}

	for _, tr := range st.Trades {
		_, err := tx.Exec(`
			INSERT INTO trades
			(trade_id, sec_market, sec_code, time, kind, plan_price, real_price, goal_price,
			 quantity, cost_commission, cost_stamptax, cost_transfer, cost_other, cost_total,
			 stop_loss, cash_after, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tr.ID, tr.Security.Market, tr.Security.Code, Stamp(tr.Time), int(tr.Kind),
			tr.PlanPrice, tr.RealPrice, tr.GoalPrice, tr.Quantity,
			tr.Cost.Commission, tr.Cost.StampTax, tr.Cost.Transfer, tr.Cost.Other, tr.Cost.Total,
			tr.StopLoss, tr.CashAfter, int(tr.Source),
		)
		if err != nil {
			return err
		}
	}

	if err := savePositions(tx, st.Positions, false); err != nil {
		return err
	}
	if err := savePositions(tx, st.History, true); err != nil {
		return err
	}

	for name, value := range st.Params {
		typ, enc, err := encodeParam(value)
		if err != nil {
			return fmt.Errorf("save param %q: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO params (name, type, value) VALUES (?, ?, ?)`,
			name, typ, enc); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func savePositions(tx *sql.Tx, positions []account.PositionRecord, closed bool) error {
	for _, p := range positions {
		res, err := tx.Exec(`
			INSERT INTO positions
			(closed, sec_market, sec_code, opened_at, closed_at, quantity, stop_loss, goal_price,
			 total_quantity, buy_money, total_cost, total_risk, sell_money,
			 last_settle_time, last_settle_profit, last_settle_close, last_settle_delta)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			boolToInt(closed), p.Security.Market, p.Security.Code,
			Stamp(p.OpenedAt), Stamp(p.ClosedAt),
			p.Quantity, p.StopLoss, p.GoalPrice,
			p.TotalQuantity, p.BuyMoney, p.TotalCost, p.TotalRisk, p.SellMoney,
			Stamp(p.LastSettleTime), p.LastSettleProfit, p.LastSettleClose, p.LastSettleDelta,
		)
		if err != nil {
			return err
		}
		posID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for i, c := range p.Contracts {
			_, err := tx.Exec(`
				INSERT INTO contracts (pos_id, ord, quantity, price, stop_loss, goal_price, cost)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				posID, i, c.Quantity, c.Price, c.StopLoss, c.GoalPrice, c.Cost,
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads the stored snapshot back. A schema version other than
// SchemaVersion fails the whole load.
func (j *SQLite) Load() (account.LedgerState, error) {
	var st account.LedgerState

	meta, err := j.loadMeta()
	if err != nil {
		return st, err
	}
	if v := meta["schema_version"]; v != strconv.Itoa(SchemaVersion) {
		return st, fmt.Errorf("stored version %q: %w", v, ErrSchemaVersion)
	}

	st.Name = meta["name"]
	if st.InitCash, err = parseFloat(meta["init_cash"]); err != nil {
		return st, err
	}
	if st.CurrentCash, err = parseFloat(meta["current_cash"]); err != nil {
		return st, err
	}
	if st.Precision, err = strconv.Atoi(meta["precision"]); err != nil {
		return st, err
	}
	if st.InitTime, err = parseStamp(meta["init_time"]); err != nil {
		return st, err
	}
	if st.LastTime, err = parseStamp(meta["last_time"]); err != nil {
		return st, err
	}
	if st.LastWeightTime, err = parseStamp(meta["last_weight_time"]); err != nil {
		return st, err
	}
	if st.BrokerActivation, err = parseStamp(meta["broker_activation"]); err != nil {
		return st, err
	}
	if st.BorrowedCash, err = parseFloat(meta["borrowed_cash"]); err != nil {
		return st, err
	}

	if st.Trades, err = j.loadTrades(); err != nil {
		return st, err
	}
	if st.Positions, err = j.loadPositions(false); err != nil {
		return st, err
	}
	if st.History, err = j.loadPositions(true); err != nil {
		return st, err
	}
	if st.Params, err = j.loadParams(); err != nil {
		return st, err
	}
	return st, nil
}

func (j *SQLite) loadMeta() (map[string]string, error) {
	rows, err := j.db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (j *SQLite) loadTrades() ([]account.TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, sec_market, sec_code, time, kind, plan_price, real_price, goal_price,
		       quantity, cost_commission, cost_stamptax, cost_transfer, cost_other, cost_total,
		       stop_loss, cash_after, source
		FROM trades ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []account.TradeRecord
	for rows.Next() {
		var tr account.TradeRecord
		var stamp int64
		var kind, source int
		if err := rows.Scan(
			&tr.ID, &tr.Security.Market, &tr.Security.Code, &stamp, &kind,
			&tr.PlanPrice, &tr.RealPrice, &tr.GoalPrice, &tr.Quantity,
			&tr.Cost.Commission, &tr.Cost.StampTax, &tr.Cost.Transfer, &tr.Cost.Other, &tr.Cost.Total,
			&tr.StopLoss, &tr.CashAfter, &source,
		); err != nil {
			return nil, err
		}
		tr.Time = StampTime(stamp)
		tr.Kind = account.BusinessKind(kind)
		tr.Source = account.TradeSource(source)
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (j *SQLite) loadPositions(closed bool) ([]account.PositionRecord, error) {
	rows, err := j.db.Query(`
		SELECT pos_id, sec_market, sec_code, opened_at, closed_at, quantity, stop_loss, goal_price,
		       total_quantity, buy_money, total_cost, total_risk, sell_money,
		       last_settle_time, last_settle_profit, last_settle_close, last_settle_delta
		FROM positions WHERE closed = ? ORDER BY pos_id ASC`, boolToInt(closed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []account.PositionRecord
	var ids []int64
	for rows.Next() {
		var p account.PositionRecord
		var posID int64
		var opened, closedAt, settled int64
		if err := rows.Scan(
			&posID, &p.Security.Market, &p.Security.Code, &opened, &closedAt,
			&p.Quantity, &p.StopLoss, &p.GoalPrice,
			&p.TotalQuantity, &p.BuyMoney, &p.TotalCost, &p.TotalRisk, &p.SellMoney,
			&settled, &p.LastSettleProfit, &p.LastSettleClose, &p.LastSettleDelta,
		); err != nil {
			return nil, err
		}
		p.OpenedAt = StampTime(opened)
		p.ClosedAt = StampTime(closedAt)
		p.LastSettleTime = StampTime(settled)
		out = append(out, p)
		ids = append(ids, posID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, posID := range ids {
		contracts, err := j.loadContracts(posID)
		if err != nil {
			return nil, err
		}
		out[i].Contracts = contracts
	}
	return out, nil
}

func (j *SQLite) loadContracts(posID int64) ([]account.ContractRecord, error) {
	rows, err := j.db.Query(`
		SELECT quantity, price, stop_loss, goal_price, cost
		FROM contracts WHERE pos_id = ? ORDER BY ord ASC`, posID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []account.ContractRecord
	for rows.Next() {
		var c account.ContractRecord
		if err := rows.Scan(&c.Quantity, &c.Price, &c.StopLoss, &c.GoalPrice, &c.Cost); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (j *SQLite) loadParams() (map[string]any, error) {
	rows, err := j.db.Query(`SELECT name, type, value FROM params`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	params := make(map[string]any)
	for rows.Next() {
		var name, typ, enc string
		if err := rows.Scan(&name, &typ, &enc); err != nil {
			return nil, err
		}
		v, err := decodeParam(typ, enc)
		if err != nil {
			return nil, fmt.Errorf("load param %q: %w", name, err)
		}
		params[name] = v
	}
	return params, rows.Err()
}

// TradesBetween returns stored trades with start <= time < end, in ledger
// order.
func (j *SQLite) TradesBetween(start, end time.Time) ([]account.TradeRecord, error) {
	all, err := j.loadTrades()
	if err != nil {
		return nil, err
	}
	var out []account.TradeRecord
	for _, tr := range all {
		if !start.IsZero() && tr.Time.Before(start) {
			continue
		}
		if !end.IsZero() && !tr.Time.Before(end) {
			continue
		}
		out = append(out, tr)
	}
	return out, nil
}

func encodeParam(value any) (string, string, error) {
	switch v := value.(type) {
	case bool:
		return "bool", strconv.FormatBool(v), nil
	case int:
		return "int", strconv.Itoa(v), nil
	case float64:
		return "float", formatFloat(v), nil
	case string:
		return "string", v, nil
	case time.Time:
		return "time", strconv.FormatInt(Stamp(v), 10), nil
	case []time.Time:
		parts := make([]string, len(v))
		for i, t := range v {
			parts[i] = strconv.FormatInt(Stamp(t), 10)
		}
		return "times", strings.Join(parts, ","), nil
	case market.Security:
		return "security", v.Market + "|" + v.Code, nil
	default:
		return "", "", fmt.Errorf("unsupported type %T", value)
	}
}

func decodeParam(typ, enc string) (any, error) {
	switch typ {
	case "bool":
		return strconv.ParseBool(enc)
	case "int":
		return strconv.Atoi(enc)
	case "float":
		return parseFloat(enc)
	case "string":
		return enc, nil
	case "time":
		return parseStamp(enc)
	case "times":
		if enc == "" {
			return []time.Time(nil), nil
		}
		parts := strings.Split(enc, ",")
		out := make([]time.Time, len(parts))
		for i, p := range parts {
			t, err := parseStamp(p)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	case "security":
		m, c, ok := strings.Cut(enc, "|")
		if !ok {
			return nil, fmt.Errorf("bad security param %q", enc)
		}
		return market.Security{Market: m, Code: c}, nil
	default:
		return nil, fmt.Errorf("unsupported type %q", typ)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func parseStamp(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return StampTime(n), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
