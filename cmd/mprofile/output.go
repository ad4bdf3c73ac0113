package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"github.com/skalibog/mprofile/internal/profile"
	"github.com/skalibog/mprofile/pkg/models"
)

// matrixSessions сколько последних сессий выводить в матрице профиля
const matrixSessions = 5

var titleStyle = lipgloss.NewStyle().Bold(true)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		String()
}

func nullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}

func signed(n int) string {
	return fmt.Sprintf("%+d", n)
}

func printProfile(w io.Writer, res *models.AnalysisResult) {
	p := res.Profile
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("TPO профиль %s %s, брекет %d мин, тик %s",
		res.Symbol, res.Interval, res.BracketMinutes, p.TickSize)))

	var rows [][]string
	for _, s := range p.Sessions {
		rows = append(rows, []string{
			s.Date.Format(models.DateLayout),
			strconv.FormatFloat(s.Open, 'f', -1, 64),
			strconv.FormatFloat(s.High, 'f', -1, 64),
			strconv.FormatFloat(s.Low, 'f', -1, 64),
			strconv.FormatFloat(s.Close, 'f', -1, 64),
			nullDecimal(s.POC),
			nullDecimal(s.ValueAreaHigh),
			nullDecimal(s.ValueAreaLow),
			strconv.Itoa(s.Brackets),
		})
	}
	fmt.Fprintln(w, renderTable([]string{"Дата", "Open", "High", "Low", "Close", "POC", "VAH", "VAL", "Брекеты"}, rows))

	sessions := p.Sessions
	if len(sessions) > matrixSessions {
		sessions = sessions[len(sessions)-matrixSessions:]
	}
	if len(sessions) == 0 {
		return
	}

	headers := []string{"Цена"}
	var blocks []models.TPOBlock
	for _, s := range sessions {
		headers = append(headers, s.Date.Format(models.DateLayout))
		blocks = append(blocks, p.SessionBlocks(s.Date)...)
	}

	rows = nil
	for _, row := range profile.Matrix(blocks) {
		line := []string{row.Price.String()}
		for _, s := range sessions {
			letters := row.Letters[s.Date.Format(models.DateLayout)]
			if letters == "" {
				letters = "."
			}
			line = append(line, letters)
		}
		rows = append(rows, line)
	}
	fmt.Fprintln(w, renderTable(headers, rows))
}

func printRotation(w io.Writer, res *models.AnalysisResult) {
	for _, r := range res.Rotations {
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Ротация %s %s (%d брекетов)",
			res.Symbol, r.Date.Format(models.DateLayout), r.Brackets)))
		if !r.Table.Sufficient {
			fmt.Fprintln(w, "  недостаточно брекетов")
			continue
		}

		var rows [][]string
		for _, row := range r.Table.Rows {
			rows = append(rows, []string{row.Label, signed(row.High), signed(row.Low), signed(row.Net)})
		}
		total := r.Table.Total
		rows = append(rows, []string{total.Label, signed(total.High), signed(total.Low), signed(total.Net)})
		fmt.Fprintln(w, renderTable([]string{"", "High", "Low", "Net"}, rows))
	}

	c := res.Control
	fmt.Fprintf(w, "Контроль: %s (%s), суммарная ротация %s за %d сессий\n",
		c.Side, c.Strength, signed(c.Total), c.Sessions)
}

func printControl(w io.Writer, symbol string, summaries []models.ControlSummary) {
	fmt.Fprintln(w, titleStyle.Render("Контроль рынка "+symbol))
	for _, s := range summaries {
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d дней: %s", s.Days, s.Overall)))

		var rows [][]string
		for _, r := range s.Results {
			if r.Err != "" {
				rows = append(rows, []string{r.Timeframe, string(models.ControlError), "", "", r.Err})
				continue
			}
			rows = append(rows, []string{
				r.Timeframe,
				string(r.Control.Side),
				string(r.Control.Strength),
				signed(r.Control.Total),
				strconv.Itoa(r.Control.Sessions),
			})
		}
		fmt.Fprintln(w, renderTable([]string{"Таймфрейм", "Контроль", "Сила", "Ротация", "Сессий"}, rows))
		fmt.Fprintf(w, "Суммарно: %s. %s\n\n", signed(s.CombinedScore), s.Interpretation)
	}
}

func dayRow(label string, m models.DayMetrics) []string {
	va := "-"
	if m.ValueArea.Valid {
		va = fmt.Sprintf("%s-%s", m.ValueArea.Low, m.ValueArea.High)
	}
	return []string{
		label,
		m.Date.Format(models.DateLayout),
		signed(m.Rotation),
		strconv.Itoa(m.Brackets),
		strconv.FormatFloat(m.Volume, 'f', 0, 64),
		va,
		strconv.FormatFloat(m.VAVolume, 'f', 0, 64),
		strconv.FormatFloat(m.VAPercentage, 'f', 1, 64) + "%",
	}
}

func printDaily(w io.Writer, report *models.DailyReport) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Дневной анализ %s на %s",
		report.Symbol, report.TargetDate.Format(models.DateLayout))))

	for _, tf := range report.Timeframes {
		if tf.Err != "" {
			fmt.Fprintf(w, "%s: ошибка: %s\n", tf.Timeframe, tf.Err)
			continue
		}
		rows := [][]string{
			dayRow("Сегодня", tf.Today),
			dayRow("Вчера", tf.Yesterday),
			dayRow("Позавчера", tf.DayBefore),
		}
		fmt.Fprintln(w, titleStyle.Render(tf.Timeframe))
		fmt.Fprintln(w, renderTable([]string{"", "Дата", "Ротация", "Брекеты", "Объем", "VA", "Объем VA", "Доля VA"}, rows))
		fmt.Fprintf(w, "Контроль: %s, тренд: %s, VA: %s/%s, объем к среднему %.0f: %s\n\n",
			tf.Control, tf.Trend, tf.VAPlacement, tf.VAWidth, tf.VolumeAverage, tf.VolumeVsAverage)
	}
}

func printPOC(w io.Writer, symbol string, m models.POCMovement) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Движение POC %s (режим %s)", symbol, m.Mode)))
	if m.Seed.Valid {
		fmt.Fprintf(w, "POC предыдущей сессии: %s\n", m.Seed.Decimal)
	}

	var rows [][]string
	for _, s := range m.Steps {
		rows = append(rows, []string{
			s.Time.Format("2006-01-02 15:04"),
			s.Previous.String(),
			s.POC.String(),
			s.Change.String(),
			string(s.Direction),
			signed(s.Score),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, renderTable([]string{"Время", "Было", "Стало", "Изменение", "Направление", "Оценка"}, rows))
	}
	fmt.Fprintf(w, "Итог: %s, уклон %s\n", signed(m.Score), m.Bias)
}

func printHistory(w io.Writer, records []models.AnalysisRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "История пуста")
		return
	}

	var rows [][]string
	for _, r := range records {
		rows = append(rows, []string{
			r.AnalysisDate.Format(models.DateLayout),
			r.Symbol,
			r.Interval,
			strconv.Itoa(r.BracketMinutes),
			string(r.Control),
			string(r.Strength),
			signed(r.RotationScore),
			string(r.POCBias),
			signed(r.POCScore),
		})
	}
	fmt.Fprintln(w, renderTable([]string{"Дата", "Символ", "Интервал", "Брекет", "Контроль", "Сила", "Ротация", "POC", "Оценка POC"}, rows))
}
