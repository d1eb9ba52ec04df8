package main

import "github.com/charmbracelet/lipgloss"

var (
	red         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	yellow      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cyan        = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray        = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
)
