package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/skalibog/mprofile/internal/config"
	"github.com/skalibog/mprofile/internal/profile"
	"github.com/skalibog/mprofile/pkg/logger"
	"github.com/skalibog/mprofile/pkg/models"
	"go.uber.org/zap"
)

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")
	appStyle       = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1)
	pocStyle = lipgloss.NewStyle().Bold(true).Foreground(warningColor)
	vaStyle  = lipgloss.NewStyle().Foreground(primaryColor)
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// maxProfileRows сколько уровней профиля показывать
const maxProfileRows = 24

// TermUI представляет терминальный интерфейс
type TermUI struct {
	results       map[string]*models.AnalysisResult
	resultsMutex  sync.RWMutex
	logs          []string
	logsMutex     sync.RWMutex
	config        config.UIConfig
	program       *tea.Program
	selectedIndex int
	logFile       string
	updatedAt     time.Time
}

// Сообщения для обновления UI
type refreshMsg struct{}

// bubbleModel - модель для bubbletea
type bubbleModel struct {
	ui *TermUI
}

// NewTermUI создает интерфейс. Логи читаются из logFile, пока жив ctx.
// Отмена ctx завершает и сам интерфейс.
func NewTermUI(ctx context.Context, cfg config.UIConfig, logFile string) *TermUI {
	ui := &TermUI{
		results: make(map[string]*models.AnalysisResult),
		logs:    []string{"mprofile запущен. Ожидание данных..."},
		config:  cfg,
		logFile: logFile,
	}
	ui.program = tea.NewProgram(bubbleModel{ui: ui}, tea.WithAltScreen(), tea.WithContext(ctx))

	if err := ui.loadLogsFromFile(); err != nil {
		ui.logs = append(ui.logs, fmt.Sprintf("Ошибка загрузки логов: %v", err))
	}

	refresh := time.Duration(cfg.RefreshRate) * time.Millisecond
	if refresh <= 0 {
		refresh = time.Second
	}
	go func() {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := ui.loadLogsFromFile(); err != nil {
					logger.Warn("Ошибка загрузки логов", zap.Error(err))
					continue
				}
				ui.refresh()
			case <-ctx.Done():
				return
			}
		}
	}()

	return ui
}

// Start запускает UI и блокирует до выхода или отмены контекста
func (ui *TermUI) Start() error {
	if _, err := ui.program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

// UpdateResults заменяет показываемые результаты анализа
func (ui *TermUI) UpdateResults(results map[string]*models.AnalysisResult) {
	ui.resultsMutex.Lock()
	ui.results = results
	ui.updatedAt = time.Now()
	ui.resultsMutex.Unlock()

	ui.refresh()
}

func (ui *TermUI) refresh() {
	ui.program.Send(refreshMsg{})
}

func (ui *TermUI) loadLogsFromFile() error {
	file, err := os.Open(ui.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	limit := ui.config.LogLines
	if limit <= 0 {
		limit = 10
	}

	var logs []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		logs = append(logs, formatLogLine(scanner.Text()))
		if len(logs) > limit {
			logs = logs[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(logs) > 0 {
		ui.logsMutex.Lock()
		ui.logs = logs
		ui.logsMutex.Unlock()
	}
	return nil
}

// formatLogLine превращает JSON запись zap в короткую строку
func formatLogLine(line string) string {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return line
	}

	level, _ := entry["level"].(string)
	ts, _ := entry["ts"].(string)
	msg, _ := entry["msg"].(string)
	level = ansiRegex.ReplaceAllString(level, "")

	timestamp := ""
	if t, err := time.Parse("02.01.2006 - 15:04:05.000Z07:00", ts); err == nil {
		timestamp = t.Format("15:04:05")
	}

	keys := make([]string, 0, len(entry))
	for k := range entry {
		if k != "level" && k != "ts" && k != "msg" && k != "caller" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", timestamp, level, msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " (%s: %v)", k, entry[k])
	}
	return b.String()
}

func renderLogsSection(logs []string) string {
	var content strings.Builder
	for _, log := range logs {
		switch {
		case strings.Contains(log, "[ERROR]"):
			log = lipgloss.NewStyle().Foreground(errorColor).Render(log)
		case strings.Contains(log, "[WARN]"):
			log = lipgloss.NewStyle().Foreground(warningColor).Render(log)
		case strings.Contains(log, "[INFO]"):
			log = lipgloss.NewStyle().Foreground(successColor).Render(log)
		case strings.Contains(log, "[DEBUG]"):
			log = lipgloss.NewStyle().Foreground(lipgloss.Color("#9999ff")).Render(log)
		}
		content.WriteString("  " + log + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, headerStyle.Render("ЛОГИ"), content.String()))
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return nil
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up":
			m.ui.selectedIndex = max(0, m.ui.selectedIndex-1)
		case "down":
			m.ui.resultsMutex.RLock()
			n := len(m.ui.results)
			m.ui.resultsMutex.RUnlock()
			m.ui.selectedIndex = max(0, min(n-1, m.ui.selectedIndex+1))
		case "r":
			if err := m.ui.loadLogsFromFile(); err != nil {
				logger.Warn("Ошибка загрузки логов", zap.Error(err))
			}
		}
	case refreshMsg:
	}
	return m, nil
}

func (m bubbleModel) View() string {
	m.ui.resultsMutex.RLock()
	m.ui.logsMutex.RLock()
	defer m.ui.resultsMutex.RUnlock()
	defer m.ui.logsMutex.RUnlock()

	title := titleStyle.Render("mprofile - TPO / Market Profile")
	symbols := sortedSymbols(m.ui.results)

	sections := []string{title, "\n", renderResultsSection(m.ui.results, symbols, m.ui.selectedIndex)}
	if len(symbols) > 0 {
		idx := min(m.ui.selectedIndex, len(symbols)-1)
		sections = append(sections, "\n", renderProfileSection(m.ui.results[symbols[idx]]))
	}

	updated := "—"
	if !m.ui.updatedAt.IsZero() {
		updated = m.ui.updatedAt.Format("15:04:05")
	}
	sections = append(sections, "\n", renderLogsSection(m.ui.logs), "\n",
		footerStyle.Render(fmt.Sprintf("Обновлено: %s | Клавиши: ↑/↓ - навигация, R - перезагрузить логи, Q - выход", updated)))

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func renderResultsSection(results map[string]*models.AnalysisResult, symbols []string, selectedIndex int) string {
	var content strings.Builder

	if len(symbols) == 0 {
		content.WriteString("  Ожидание данных...\n")
	}
	for i, symbol := range symbols {
		line := "  " + resultLine(results[symbol])
		if i == selectedIndex {
			line = lipgloss.NewStyle().Background(lipgloss.Color("#222222")).Render("> " + line[2:])
		}
		content.WriteString(line + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, headerStyle.Render("КОНТРОЛЬ"), content.String()))
}

// resultLine строка сводки по символу
func resultLine(res *models.AnalysisResult) string {
	line := fmt.Sprintf("%-10s %s rotation %+d (%d сессий) POC %s %+d",
		res.Symbol, formatControl(res.Control), res.Control.Total, res.Control.Sessions,
		res.POC.Bias, res.POC.Score)

	if res.Profile != nil {
		if s, ok := res.Profile.LastSession(); ok && s.POC.Valid {
			line += fmt.Sprintf(" | POC %s VA %s-%s",
				s.POC.Decimal, s.ValueAreaLow.Decimal, s.ValueAreaHigh.Decimal)
		}
	}
	return line
}

func formatControl(c models.Control) string {
	style := lipgloss.NewStyle().Foreground(warningColor)
	switch c.Side {
	case models.ControlBuyer:
		style = lipgloss.NewStyle().Foreground(successColor)
	case models.ControlSeller, models.ControlError:
		style = lipgloss.NewStyle().Foreground(errorColor)
	}
	if c.Strength == models.StrengthStrong {
		style = style.Bold(true)
	}
	return style.Render(fmt.Sprintf("%-7s %-8s", c.Side, c.Strength))
}

// renderProfileSection последняя сессия выбранного символа буквами TPO
func renderProfileSection(res *models.AnalysisResult) string {
	header := headerStyle.Render("ПРОФИЛЬ " + res.Symbol)
	if res.Profile == nil {
		return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "  нет данных"))
	}
	s, ok := res.Profile.LastSession()
	if !ok {
		return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "  нет данных"))
	}

	date := s.Date.Format(models.DateLayout)
	rows := profile.Matrix(res.Profile.SessionBlocks(s.Date))

	var content strings.Builder
	fmt.Fprintf(&content, "  %s\n", date)
	for i, row := range rows {
		if i >= maxProfileRows {
			fmt.Fprintf(&content, "  ... еще %d уровней\n", len(rows)-maxProfileRows)
			break
		}
		line := fmt.Sprintf("  %12s  %s", row.Price, row.Letters[date])
		switch {
		case s.POC.Valid && row.Price.Equal(s.POC.Decimal):
			line = pocStyle.Render(line + "  ◄ POC")
		case s.ValueAreaLow.Valid && row.Price.GreaterThanOrEqual(s.ValueAreaLow.Decimal) &&
			row.Price.LessThanOrEqual(s.ValueAreaHigh.Decimal):
			line = vaStyle.Render(line)
		}
		content.WriteString(line + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content.String()))
}

func sortedSymbols(results map[string]*models.AnalysisResult) []string {
	symbols := make([]string, 0, len(results))
	for symbol := range results {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
