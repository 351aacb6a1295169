package market

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSVHeader is the column layout written by WriteCSV and accepted by ReadCSV.
// bid and close_time are optional when reading.
var CSVHeader = []string{"open_time", "open", "high", "low", "close", "volume", "bid", "close_time"}

// LoadCSV reads candles from a CSV file. See ReadCSV for the format.
func LoadCSV(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load csv: %w", err)
	}
	defer f.Close()

	candles, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("load csv %s: %w", path, err)
	}
	return candles, nil
}

// ReadCSV parses open_time,open,high,low,close,volume[,bid][,close_time]
// rows. Times are RFC3339 or unix milliseconds. A header row is skipped when
// its first column is "open_time" or "time". Rows without close_time close
// when the next row opens; the last row reuses the previous spacing.
func ReadCSV(r io.Reader) ([]Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var raws []OHLCV
	var explicitClose []bool

	for first := true; ; first = false {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		// csv skips blank lines, so ask the reader where the row started
		line, _ := cr.FieldPos(0)
		if first {
			h := strings.ToLower(strings.TrimSpace(row[0]))
			if h == "open_time" || h == "time" {
				continue
			}
		}
		if len(row) < 6 {
			return nil, fmt.Errorf("line %d: need at least 6 columns, got %d", line, len(row))
		}

		var v OHLCV
		if v.OpenTime, err = parseTime(row[0]); err != nil {
			return nil, fmt.Errorf("line %d: open_time: %w", line, err)
		}
		nums := []*float64{&v.Open, &v.High, &v.Low, &v.Close, &v.Volume}
		for i, dst := range nums {
			if *dst, err = strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, CSVHeader[i+1], err)
			}
		}
		if len(row) > 6 && strings.TrimSpace(row[6]) != "" {
			if v.Bid, err = strconv.ParseFloat(strings.TrimSpace(row[6]), 64); err != nil {
				return nil, fmt.Errorf("line %d: bid: %w", line, err)
			}
		}
		hasClose := len(row) > 7 && strings.TrimSpace(row[7]) != ""
		if hasClose {
			if v.CloseTime, err = parseTime(row[7]); err != nil {
				return nil, fmt.Errorf("line %d: close_time: %w", line, err)
			}
		}

		raws = append(raws, v)
		explicitClose = append(explicitClose, hasClose)
	}

	fillCloseTimes(raws, explicitClose)
	return build(raws)
}

// WriteCSV writes candles with CSVHeader, times in RFC3339.
func WriteCSV(w io.Writer, candles []Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, c := range candles {
		err := cw.Write([]string{
			c.OpenTime().UTC().Format(time.RFC3339),
			ff(c.Open()),
			ff(c.High()),
			ff(c.Low()),
			ff(c.Close()),
			ff(c.Volume()),
			ff(c.Bid()),
			c.CloseTime().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// kline is one bar of a Binance style JSON export.
type kline struct {
	OpenTime    int64    `json:"open_time"`
	CloseTime   int64    `json:"close_time"`
	Open        *float64 `json:"open"`
	OpenPrice   *float64 `json:"open_price"`
	High        *float64 `json:"high"`
	HighPrice   *float64 `json:"high_price"`
	Low         *float64 `json:"low"`
	LowPrice    *float64 `json:"low_price"`
	Close       *float64 `json:"close"`
	ClosePrice  *float64 `json:"close_price"`
	QuoteVolume float64  `json:"quote_asset_volume"`
	TakerBuy    float64  `json:"taker_buy_quote_volume"`
}

// LoadJSON reads a JSON array of klines (open_time/close_time in unix
// milliseconds, open|open_price, ..., quote_asset_volume,
// taker_buy_quote_volume). Volume is the quote volume and bid is the part of
// it not bought by takers.
func LoadJSON(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load json: %w", err)
	}
	defer f.Close()

	candles, err := ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("load json %s: %w", path, err)
	}
	return candles, nil
}

// ReadJSON is LoadJSON over a reader.
func ReadJSON(r io.Reader) ([]Candle, error) {
	var rows []kline
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, err
	}

	raws := make([]OHLCV, 0, len(rows))
	for i, k := range rows {
		open, high := pick(k.Open, k.OpenPrice), pick(k.High, k.HighPrice)
		low, cls := pick(k.Low, k.LowPrice), pick(k.Close, k.ClosePrice)
		if open == nil || high == nil || low == nil || cls == nil {
			return nil, fmt.Errorf("kline %d: missing price field", i)
		}
		raws = append(raws, OHLCV{
			Open:      *open,
			High:      *high,
			Low:       *low,
			Close:     *cls,
			Volume:    k.QuoteVolume,
			Bid:       k.QuoteVolume - k.TakerBuy,
			OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
			CloseTime: time.UnixMilli(k.CloseTime).UTC(),
		})
	}
	return build(raws)
}

// Load picks the loader from the file extension (.csv or .json).
func Load(path string) ([]Candle, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".json"):
		return LoadJSON(path)
	case strings.HasSuffix(strings.ToLower(path), ".csv"):
		return LoadCSV(path)
	default:
		return nil, fmt.Errorf("load %s: unknown format (want .csv or .json)", path)
	}
}

func build(raws []OHLCV) ([]Candle, error) {
	candles := make([]Candle, 0, len(raws))
	for i, v := range raws {
		c, err := NewCandle(v)
		if err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func fillCloseTimes(raws []OHLCV, explicit []bool) {
	for i := range raws {
		if explicit[i] {
			continue
		}
		switch {
		case i+1 < len(raws):
			raws[i].CloseTime = raws[i+1].OpenTime
		case i > 0:
			raws[i].CloseTime = raws[i].OpenTime.Add(raws[i].OpenTime.Sub(raws[i-1].OpenTime))
		default:
			raws[i].CloseTime = raws[i].OpenTime
		}
	}
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

func pick(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

func ff(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
