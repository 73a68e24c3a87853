package report

import (
	"os"
	"path/filepath"
	"time"

	"github.com/betbot/botdash/internal/api"
	"github.com/betbot/botdash/internal/dashboard"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

var log = logrus.WithField("module", "report")

const (
	SheetSummary    = "Summary"
	SheetPositions  = "Positions"
	SheetTrades     = "Trades"
	SheetStrategies = "Strategies"
	SheetAlerts     = "Alerts"
)

// Workbook 导出的数据，为 nil 的部分不生成对应工作表
type Workbook struct {
	GeneratedAt time.Time
	Overview    *api.Overview
	Strategies  *api.StrategyList
	Positions   *api.PositionList
	Risk        *api.RiskReport
}

// WorkbookFromSnapshot 从看板快照里取出已加载的视图
func WorkbookFromSnapshot(snap dashboard.Snapshot) Workbook {
	wb := Workbook{GeneratedAt: time.Now()}
	for _, st := range snap.Views {
		switch d := st.Data.(type) {
		case *api.Overview:
			wb.Overview = d
		case *api.StrategyList:
			wb.Strategies = d
		case *api.PositionList:
			wb.Positions = d
		case *api.RiskReport:
			wb.Risk = d
		}
	}
	return wb
}

type excelStyles struct {
	header  int
	money   int
	percent int
	text    int
}

// WriteXLSX 写出 .xlsx 文件
func WriteXLSX(wb Workbook, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "create directory %s", dir)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	styles, err := createStyles(fx)
	if err != nil {
		return errors.Wrap(err, "create styles")
	}

	if err := fx.SetSheetName(fx.GetSheetName(0), SheetSummary); err != nil {
		return err
	}
	if err := writeSummary(fx, wb, styles); err != nil {
		return err
	}
	if wb.Positions != nil {
		if err := writePositions(fx, wb.Positions.Positions, styles); err != nil {
			return err
		}
	}
	if wb.Overview != nil && len(wb.Overview.Trades) > 0 {
		if err := writeTrades(fx, wb.Overview.Trades, styles); err != nil {
			return err
		}
	}
	if wb.Strategies != nil {
		if err := writeStrategies(fx, wb.Strategies.Strategies, styles); err != nil {
			return err
		}
	}
	if wb.Risk != nil {
		if err := writeAlerts(fx, wb.Risk.Alerts, styles); err != nil {
			return err
		}
	}

	if err := fx.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	log.Infof("已导出 %s", path)
	return nil
}

func createStyles(fx *excelize.File) (excelStyles, error) {
	var s excelStyles
	var err error
	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	s.header, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return s, err
	}
	// 7: $#,##0.00
	s.money, err = fx.NewStyle(&excelize.Style{NumFmt: 7, Alignment: &excelize.Alignment{Horizontal: "right"}, Border: border})
	if err != nil {
		return s, err
	}
	// 10: 0.00%
	s.percent, err = fx.NewStyle(&excelize.Style{NumFmt: 10, Alignment: &excelize.Alignment{Horizontal: "right"}, Border: border})
	if err != nil {
		return s, err
	}
	s.text, err = fx.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{Horizontal: "left"}, Border: border})
	return s, err
}

// sheetWriter 按行写一个工作表，列样式由 styles 指定
type sheetWriter struct {
	fx     *excelize.File
	sheet  string
	styles []int
	row    int
	err    error
}

func newSheet(fx *excelize.File, sheet string, header []string, widths []float64, styles []int, hs excelStyles) (*sheetWriter, error) {
	if sheet != SheetSummary {
		if _, err := fx.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, hs.header); err != nil {
			return nil, err
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if i < len(widths) {
			if err := fx.SetColWidth(sheet, col, col, widths[i]); err != nil {
				return nil, err
			}
		}
	}
	if err := fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}
	return &sheetWriter{fx: fx, sheet: sheet, styles: styles, row: 1}, nil
}

func (w *sheetWriter) append(values ...any) {
	if w.err != nil {
		return
	}
	w.row++
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, w.row)
		if w.err = w.fx.SetCellValue(w.sheet, cell, v); w.err != nil {
			return
		}
		if i < len(w.styles) && w.styles[i] != 0 {
			if w.err = w.fx.SetCellStyle(w.sheet, cell, cell, w.styles[i]); w.err != nil {
				return
			}
		}
	}
}

func writeSummary(fx *excelize.File, wb Workbook, s excelStyles) error {
	w, err := newSheet(fx, SheetSummary, []string{"Metric", "Value"}, []float64{22, 22}, []int{s.text, 0}, s)
	if err != nil {
		return err
	}
	generated := wb.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	w.append("Generated At", generated.Format("2006-01-02 15:04:05"))
	if o := wb.Overview; o != nil {
		a := o.Account
		w.append("Total Value", a.TotalValue.InexactFloat64())
		w.append("Day PnL", a.DayPnL.InexactFloat64())
		w.append("Day Change", a.DayChange)
		w.append("Risk Level", string(a.RiskLevel))
		w.append("Leverage", a.Leverage)
		w.append("Total Positions", a.TotalPositions)
		w.append("Available Margin", a.AvailableMargin.InexactFloat64())
		if p := o.Performance; p != nil {
			w.append("Total Trades", p.TotalTrades)
			w.append("Win Rate", p.WinRate)
			w.append("Total Profit", p.TotalProfit.InexactFloat64())
		}
	}
	if r := wb.Risk; r != nil {
		w.append("Risk Score", r.Score)
		for _, m := range r.Metrics {
			w.append(m.Category+"."+m.Name, m.Value)
		}
	}
	return w.err
}

func writePositions(fx *excelize.File, positions []api.Position, s excelStyles) error {
	w, err := newSheet(fx, SheetPositions,
		[]string{"ID", "Exchange", "Symbol", "Side", "Amount", "Entry Price", "Current Price", "PnL", "ROI", "Opened At"},
		[]float64{14, 10, 16, 8, 12, 14, 14, 14, 10, 20},
		[]int{s.text, s.text, s.text, s.text, 0, s.money, s.money, s.money, s.percent, s.text}, s)
	if err != nil {
		return err
	}
	for _, p := range positions {
		opened := ""
		if !p.OpenedAt.IsZero() {
			opened = p.OpenedAt.Local().Format("2006-01-02 15:04:05")
		}
		w.append(p.ID, p.Exchange, p.Symbol, p.Side, p.Amount.InexactFloat64(),
			p.EntryPrice.InexactFloat64(), p.CurrentPrice.InexactFloat64(), p.PnL.InexactFloat64(), p.ROI, opened)
	}
	return w.err
}

func writeTrades(fx *excelize.File, trades []api.Trade, s excelStyles) error {
	w, err := newSheet(fx, SheetTrades,
		[]string{"Time", "Symbol", "Side", "Price", "Amount", "Profit"},
		[]float64{20, 16, 8, 14, 12, 14},
		[]int{s.text, s.text, s.text, s.money, 0, s.money}, s)
	if err != nil {
		return err
	}
	for _, t := range trades {
		w.append(t.Time.Local().Format("2006-01-02 15:04:05"), t.Symbol, t.Side,
			t.Price.InexactFloat64(), t.Amount.InexactFloat64(), t.Profit.InexactFloat64())
	}
	return w.err
}

func writeStrategies(fx *excelize.File, strategies []api.Strategy, s excelStyles) error {
	w, err := newSheet(fx, SheetStrategies,
		[]string{"ID", "Name", "Type", "Status", "Trades", "Win Rate", "Profit Rate", "Total PnL"},
		[]float64{14, 18, 12, 10, 8, 10, 12, 14},
		[]int{s.text, s.text, s.text, s.text, 0, s.percent, s.percent, s.money}, s)
	if err != nil {
		return err
	}
	for _, st := range strategies {
		w.append(st.ID, st.Name, st.Type, string(st.Status), st.Stats.Trades,
			st.Stats.WinRate, st.Stats.ProfitRate, st.Stats.TotalPnL.InexactFloat64())
	}
	return w.err
}

func writeAlerts(fx *excelize.File, alerts []api.RiskAlert, s excelStyles) error {
	w, err := newSheet(fx, SheetAlerts,
		[]string{"ID", "Level", "Title", "Message", "Status", "Time"},
		[]float64{10, 8, 18, 40, 10, 20},
		[]int{s.text, s.text, s.text, s.text, s.text, s.text}, s)
	if err != nil {
		return err
	}
	for _, a := range alerts {
		w.append(a.ID, string(a.Level), a.Title, a.Message, a.Status, a.Time.Local().Format("2006-01-02 15:04:05"))
	}
	return w.err
}
