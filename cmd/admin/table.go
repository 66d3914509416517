package main

import (
	"dilse/backend/internal/models"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	Primary = lipgloss.Color("#22d3ee")
	Success = lipgloss.Color("#10B981")
	Warning = lipgloss.Color("#F59E0B")
	Error   = lipgloss.Color("#EF4444")
	Muted   = lipgloss.Color("#6B7280")

	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)

	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).Padding(0, 1)
	TableRowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Padding(0, 1)
	TableRowAltStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
)

func renderTable(headers []string, rows [][]string) string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func roomRows(rooms []models.ChatRoom) [][]string {
	rows := make([][]string, 0, len(rooms))
	for _, r := range rooms {
		status, ended := "active", "-"
		if !r.IsActive {
			status = "closed"
		}
		if r.EndedAt != nil {
			ended = r.EndedAt.Format(timeLayout)
		}
		rows = append(rows, []string{r.RoomID, r.User1ID, r.User2ID, status, r.StartedAt.Format(timeLayout), ended})
	}
	return rows
}

func roomsTable(rooms []models.ChatRoom) string {
	return renderTable([]string{"Room", "User 1", "User 2", "Status", "Started", "Ended"}, roomRows(rooms))
}

func historyRows(msgs []models.ChatHistory) [][]string {
	rows := make([][]string, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, []string{m.CreatedAt.Format(timeLayout), m.SenderName, m.SenderID, m.Content})
	}
	return rows
}

func historyTable(msgs []models.ChatHistory) string {
	return renderTable([]string{"Time", "From", "Sender", "Text"}, historyRows(msgs))
}

func queueTable(ids []string) string {
	rows := make([][]string, 0, len(ids))
	for i, id := range ids {
		rows = append(rows, []string{fmt.Sprint(i + 1), id})
	}
	return renderTable([]string{"#", "Connection"}, rows)
}

func formatPairEvent(evt models.PairEvent) string {
	line := fmt.Sprintf("%s  %-6s %s  [%s]", evt.At.Local().Format(time.TimeOnly), evt.Kind, evt.RoomID, strings.Join(evt.Users, ", "))
	if evt.Reason != "" {
		line += "  " + evt.Reason
	}
	switch evt.Kind {
	case models.PairOpened:
		return SuccessStyle.Render(line)
	case models.UserBanned:
		return WarningStyle.Render(line)
	default:
		return MutedStyle.Render(line)
	}
}
